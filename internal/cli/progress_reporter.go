package cli

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/kadirpekel-labs/lcbench/internal/pipeline"
)

// progressReporter periodically writes a Progress snapshot to stderr while a
// run is in flight. When stderr is a terminal it overwrites a single line
// with a carriage return; otherwise (piped to a file or CI log) it appends a
// plain line every tick instead, since a terminal-only \r is invisible there.
type progressReporter struct {
	done    chan struct{}
	stopped chan struct{}
}

// startProgressReporter launches the reporter goroutine. Call stop() once
// the run finishes to print a final snapshot and block until the goroutine
// has exited, so nothing else writes to stderr mid-line.
func startProgressReporter(p *pipeline.Progress, interval time.Duration) *progressReporter {
	r := &progressReporter{done: make(chan struct{}), stopped: make(chan struct{})}
	interactive := term.IsTerminal(int(os.Stderr.Fd()))

	go func() {
		defer close(r.stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.printSnapshot(p, interactive)
			case <-r.done:
				r.printSnapshot(p, interactive)
				if interactive {
					fmt.Fprintln(os.Stderr)
				}
				return
			}
		}
	}()
	return r
}

func (r *progressReporter) stop() {
	close(r.done)
	<-r.stopped
}

func (r *progressReporter) printSnapshot(p *pipeline.Progress, interactive bool) {
	s := p.Snapshot()
	line := fmt.Sprintf("completed %d/%d (failed %d, in flight %d, elapsed %s)",
		s.Completed, s.Total, s.Failed, s.InFlight, s.Elapsed.Round(time.Second))
	if interactive {
		fmt.Fprintf(os.Stderr, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(os.Stderr, line)
	}
}
