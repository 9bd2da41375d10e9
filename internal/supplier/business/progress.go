package business

import (
	"fmt"
	"io"
	"sync"

	"suppliersync/metrics"
)

// ProgressReporter rewrites one status line after every identifier.
type ProgressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	metrics *metrics.SyncMetrics
}

func NewProgressReporter(out io.Writer, m *metrics.SyncMetrics) *ProgressReporter {
	if m == nil {
		m = &metrics.SyncMetrics{}
	}
	return &ProgressReporter{out: out, metrics: m}
}

func (p *ProgressReporter) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.Reset(total)
	p.print()
}

func (p *ProgressReporter) Done(success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics.Processed.Add(1)
	if success {
		p.metrics.Successful.Add(1)
	} else {
		p.metrics.Failed.Add(1)
	}
	p.print()
}

// Finish ends the status line.
func (p *ProgressReporter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out != nil {
		fmt.Fprintln(p.out)
	}
}

func (p *ProgressReporter) Line() string {
	return fmt.Sprintf("Progress: %d/%d | Success: %d",
		p.metrics.Processed.Load(), p.metrics.Total.Load(), p.metrics.Successful.Load())
}

func (p *ProgressReporter) print() {
	if p.out != nil {
		fmt.Fprintf(p.out, "\r%s", p.Line())
	}
}
