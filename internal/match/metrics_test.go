package match

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// testCounterValue reads the rankings_total counter for a kind/status pair.
func testCounterValue(t *testing.T, m *Metrics, kind, status string) float64 {
	t.Helper()

	counter, err := m.rankingsTotal.GetMetricWithLabelValues(kind, status)
	if err != nil {
		t.Fatalf("failed to get counter: %v", err)
	}

	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if len(m.Collectors()) != 4 {
		t.Errorf("expected 4 collectors, got %d", len(m.Collectors()))
	}
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	m.IncRankingsTotal(KindPeople, StatusSuccess)
	m.ObserveRanking(KindPeople, 100, 10, 0.01)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}

	found := map[string]bool{}
	for _, family := range families {
		found[family.GetName()] = true
	}
	for _, name := range []string{MetricRankingsTotal, MetricRankingDuration, MetricRankingPoolSize, MetricRankingResultsCount} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}

	// Double registration must fail.
	if err := m.Register(reg); err == nil {
		t.Error("expected error on duplicate registration")
	}
}

func TestMetrics_CounterValues(t *testing.T) {
	m := NewMetrics()

	m.IncRankingsTotal(KindEvents, StatusSuccess)
	m.IncRankingsTotal(KindEvents, StatusSuccess)
	m.IncRankingsTotal(KindEvents, StatusFailure)

	if got := testCounterValue(t, m, KindEvents, StatusSuccess); got != 2 {
		t.Errorf("success: got %f, want 2", got)
	}
	if got := testCounterValue(t, m, KindEvents, StatusFailure); got != 1 {
		t.Errorf("failure: got %f, want 1", got)
	}
	if got := testCounterValue(t, m, KindPeople, StatusSuccess); got != 0 {
		t.Errorf("untouched label: got %f, want 0", got)
	}
}
