package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	if c.maxRetries != 5 {
		t.Errorf("expected maxRetries=5, got %d", c.maxRetries)
	}
	if c.baseDelay != 2*time.Second {
		t.Errorf("expected baseDelay=2s, got %v", c.baseDelay)
	}
	if c.strategyFunc == nil {
		t.Error("expected strategyFunc to be set")
	}
}

func TestNew_CustomOptions(t *testing.T) {
	c := New(WithMaxRetries(3), WithBaseDelay(5*time.Second), WithMaxDelay(10*time.Second))
	if c.maxRetries != 3 {
		t.Errorf("expected maxRetries=3, got %d", c.maxRetries)
	}
	if c.baseDelay != 5*time.Second {
		t.Errorf("expected baseDelay=5s, got %v", c.baseDelay)
	}
	if c.maxDelay != 10*time.Second {
		t.Errorf("expected maxDelay=10s, got %v", c.maxDelay)
	}
}

func TestDefaultStrategy(t *testing.T) {
	cases := map[int]RetryStrategy{
		http.StatusOK:                  NoRetry,
		http.StatusTooManyRequests:     SmartRetry,
		http.StatusServiceUnavailable:  SmartRetry,
		http.StatusInternalServerError: ConservativeRetry,
		http.StatusBadGateway:          ConservativeRetry,
		http.StatusBadRequest:          NoRetry,
	}
	for status, want := range cases {
		if got := DefaultStrategy(status); got != want {
			t.Errorf("status %d: expected %v, got %v", status, want, got)
		}
	}
}

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDo_ExhaustsRetriesReturnsRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(1), WithBaseDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := c.Do(req)
	if err == nil {
		t.Fatal("expected an error")
	}
	if _, ok := err.(*RetryableError); !ok {
		t.Errorf("expected *RetryableError, got %T", err)
	}
}

func TestDo_NonRetryableStatusReturnsImmediately(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := c.Do(req)
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a non-retryable status, got %d", attempts)
	}
}

func TestDo_RespectsContextCancellationDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	c := New(WithMaxRetries(5), WithBaseDelay(50*time.Millisecond), WithMaxDelay(50*time.Millisecond))
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req = req.WithContext(ctx)

	_, err := c.Do(req)
	if err == nil {
		t.Fatal("expected an error from context cancellation")
	}
}
