package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// startServer serves mux on a loopback port and returns the base URL
// plus a shutdown func. Serve errors other than ErrServerClosed fail
// the test.
func startServer(t *testing.T, mux *http.ServeMux) (string, func(context.Context) error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			t.Errorf("serve: %v", err)
		}
	}()

	return "http://" + ln.Addr().String(), srv.Shutdown
}

func TestShutdown_WaitsForInFlightRequests(t *testing.T) {
	var completed atomic.Bool
	inHandler := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/matches/query", func(w http.ResponseWriter, r *http.Request) {
		close(inHandler)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matches":[]}`))
		completed.Store(true)
	})

	base, stop := startServer(t, mux)

	// Launch a request that parks inside the handler.
	type result struct {
		resp *http.Response
		err  error
	}
	requestDone := make(chan result, 1)
	go func() {
		resp, err := http.Get(base + "/matches/query")
		requestDone <- result{resp, err}
	}()

	select {
	case <-inHandler:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never saw the request")
	}

	// Begin shutdown while the request is parked, then let it finish.
	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownDone <- stop(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)

	var res result
	select {
	case res = <-requestDone:
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request never finished")
	}
	select {
	case err := <-shutdownDone:
		if err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("shutdown never finished")
	}

	if !completed.Load() {
		t.Error("handler did not run to completion before shutdown returned")
	}
	if res.err != nil {
		t.Fatalf("request: %v", res.err)
	}
	defer res.resp.Body.Close()
	if res.resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.resp.StatusCode)
	}
	body, _ := io.ReadAll(res.resp.Body)
	var payload map[string][]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Errorf("response %q is not JSON: %v", body, err)
	}
}

func TestShutdown_IdleServerExitsCleanly(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	base, stop := startServer(t, mux)

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("probe request: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		t.Errorf("shutdown of idle server: %v", err)
	}
}

func TestShutdownSignals(t *testing.T) {
	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTERM} {
		t.Run(sig.String(), func(t *testing.T) {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			go func() {
				time.Sleep(50 * time.Millisecond)
				_ = syscall.Kill(syscall.Getpid(), sig)
			}()

			select {
			case got := <-quit:
				if got != sig {
					t.Errorf("received %v, want %v", got, sig)
				}
			case <-time.After(2 * time.Second):
				t.Errorf("%v never arrived", sig)
			}
		})
	}
}
