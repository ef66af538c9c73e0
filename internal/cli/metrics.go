package cli

import (
	"log/slog"
	"net/http"

	"github.com/kadirpekel-labs/lcbench/internal/metrics"
)

// serveMetrics runs a /metrics server for the lifetime of the process. It
// is started in its own goroutine by TestCmd.Run and logs rather than fails
// the run if the listener cannot start, since metrics are observability,
// not correctness.
func serveMetrics(addr string, recorder *metrics.Recorder) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("cli: metrics server stopped", "error", err)
	}
}
