package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory recorder as the global provider for the
// duration of the test and returns it.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return recorder
}

func onlySpan(t *testing.T, recorder *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	return spans[0]
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (string, bool) {
	for _, a := range span.Attributes() {
		if a.Key == key {
			return a.Value.AsString(), true
		}
	}
	return "", false
}

func TestStartDBSpan_NamesAndAttributes(t *testing.T) {
	tests := []struct {
		table     string
		operation DBOperation
		wantName  string
	}{
		{"users", DBOperationQuery, "query users"},
		{"users_relations", DBOperationInsert, "insert users_relations"},
		{"events", DBOperationUpdate, "update events"},
		{"events_attendees", DBOperationDelete, "delete events_attendees"},
		{"", DBOperationExec, "exec"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			recorder := recordSpans(t)

			_, end := StartDBSpan(context.Background(), tt.table, tt.operation)
			end(nil)

			span := onlySpan(t, recorder)
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}

			if got, _ := attrValue(span, "db.system"); got != "postgresql" {
				t.Errorf("db.system = %q, want postgresql", got)
			}
			if got, _ := attrValue(span, "db.operation"); got != string(tt.operation) {
				t.Errorf("db.operation = %q, want %q", got, tt.operation)
			}

			table, present := attrValue(span, "db.sql.table")
			if tt.table == "" && present {
				t.Errorf("db.sql.table = %q on a table-less span", table)
			}
			if tt.table != "" && table != tt.table {
				t.Errorf("db.sql.table = %q, want %q", table, tt.table)
			}
		})
	}
}

func TestEndSpan_ErrorStatus(t *testing.T) {
	t.Run("db span records the error", func(t *testing.T) {
		recorder := recordSpans(t)
		dbErr := errors.New("pq: connection refused")

		_, end := StartDBSpan(context.Background(), "users", DBOperationQuery)
		end(dbErr)

		span := onlySpan(t, recorder)
		if span.Status().Code.String() != "Error" {
			t.Errorf("status = %s, want Error", span.Status().Code)
		}
		if span.Status().Description != dbErr.Error() {
			t.Errorf("description = %q, want %q", span.Status().Description, dbErr.Error())
		}
	})

	t.Run("plain span records the error", func(t *testing.T) {
		recorder := recordSpans(t)

		_, end := StartSpan(context.Background(), "rank_candidates")
		end(errors.New("empty skill set"))

		if got := onlySpan(t, recorder).Status().Code.String(); got != "Error" {
			t.Errorf("status = %s, want Error", got)
		}
	})

	t.Run("nil error leaves status unset", func(t *testing.T) {
		recorder := recordSpans(t)

		_, end := StartSpan(context.Background(), "rank_candidates")
		end(nil)

		span := onlySpan(t, recorder)
		if span.Name() != "rank_candidates" {
			t.Errorf("span name = %q, want rank_candidates", span.Name())
		}
		if code := span.Status().Code.String(); code != "Unset" && code != "Ok" {
			t.Errorf("status = %s, want Unset or Ok", code)
		}
	})
}

func TestAddEvent_OnActiveSpan(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := otel.Tracer("scoring").Start(context.Background(), "rank_candidates")
	AddEvent(ctx, "candidate_scored",
		attribute.String("candidate.id", "u-42"),
		attribute.Int("overlap", 3),
	)
	span.End()

	events := onlySpan(t, recorder).Events()
	if len(events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(events))
	}
	if events[0].Name != "candidate_scored" {
		t.Errorf("event name = %q, want candidate_scored", events[0].Name)
	}
	if len(events[0].Attributes) != 2 {
		t.Errorf("event carries %d attributes, want 2", len(events[0].Attributes))
	}
}

func TestSetAttributes_OnActiveSpan(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := otel.Tracer("scoring").Start(context.Background(), "rank_candidates")
	SetAttributes(ctx,
		attribute.String("subject.id", "user-123"),
		attribute.Int("pool.size", 18),
	)
	span.End()

	ended := onlySpan(t, recorder)
	if got, ok := attrValue(ended, "subject.id"); !ok || got != "user-123" {
		t.Errorf("subject.id = %q (present=%t), want user-123", got, ok)
	}

	var poolSize int64 = -1
	for _, a := range ended.Attributes() {
		if a.Key == "pool.size" {
			poolSize = a.Value.AsInt64()
		}
	}
	if poolSize != 18 {
		t.Errorf("pool.size = %d, want 18", poolSize)
	}
}
