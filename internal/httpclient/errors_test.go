package httpclient

import (
	"errors"
	"testing"
	"time"
)

func TestRetryableError_Error(t *testing.T) {
	e := &RetryableError{StatusCode: 429, Message: "rate limited", RetryAfter: 3 * time.Second}
	want := "HTTP 429: rate limited (retry after 3s)"
	if got := e.Error(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRetryableError_Error_NoRetryAfter(t *testing.T) {
	e := &RetryableError{StatusCode: 500, Message: "server error"}
	want := "HTTP 500: server error"
	if got := e.Error(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	e := &RetryableError{Err: inner}
	if !errors.Is(e, inner) {
		t.Error("expected errors.Is to unwrap to the inner error")
	}
}

func TestRetryableError_IsRetryable(t *testing.T) {
	e := &RetryableError{}
	if !e.IsRetryable() {
		t.Error("expected IsRetryable to always be true")
	}
}
