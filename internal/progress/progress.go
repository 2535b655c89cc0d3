// Package progress shows a spinner on stderr while a request is in flight.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Indicator renders a single-line activity spinner. It is single use:
// Start it at most once.
type Indicator struct {
	writer      io.Writer
	label       string
	startTime   time.Time
	mu          sync.Mutex
	showSpinner bool
	spinnerIdx  int
	stopChan    chan struct{}
	done        chan struct{}
	stopOnce    sync.Once
	started     bool
	interval    time.Duration
}

// Config holds configuration for progress indicator
type Config struct {
	Writer      io.Writer
	ShowSpinner bool
	IsCI        bool // Set to true in CI/CD environments to disable fancy output

	// Interval between frames; defaults to 100ms
	Interval time.Duration
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewIndicator creates a new progress indicator
func NewIndicator(cfg Config) *Indicator {
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}

	// Auto-detect CI environment
	if !cfg.IsCI {
		cfg.IsCI = os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
	}

	return &Indicator{
		writer:      cfg.Writer,
		showSpinner: cfg.ShowSpinner && !cfg.IsCI,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		interval:    cfg.Interval,
	}
}

// Start begins animating label. It is a no-op when the spinner is disabled.
func (p *Indicator) Start(label string) {
	p.mu.Lock()
	p.label = label
	p.startTime = time.Now()
	p.started = true
	p.mu.Unlock()

	if p.showSpinner {
		go p.spinnerLoop()
	} else {
		close(p.done)
	}
}

// Stop stops the spinner and clears its line. Safe to call more than once.
func (p *Indicator) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)

		p.mu.Lock()
		started := p.started
		p.mu.Unlock()
		if !started {
			return
		}

		<-p.done
		if p.showSpinner {
			fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", p.lineWidth()))
		}
	})
}

// Run shows label while fn runs.
func (p *Indicator) Run(label string, fn func() error) error {
	p.Start(label)
	defer p.Stop()
	return fn()
}

func (p *Indicator) spinnerLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.mu.Lock()
			p.render()
			p.spinnerIdx = (p.spinnerIdx + 1) % len(spinnerFrames)
			p.mu.Unlock()
		}
	}
}

// render must be called with mu held
func (p *Indicator) render() {
	fmt.Fprintf(p.writer, "\r%s %s (%s)", spinnerFrames[p.spinnerIdx], p.label, formatDuration(time.Since(p.startTime)))
}

func (p *Indicator) lineWidth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.label) + 16
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
