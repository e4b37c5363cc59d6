// Package progress renders terminal progress bars for long-running jobs.
package progress

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter receives progress updates.
type Reporter interface {
	Start(total int, desc string)
	Add(n int)
	Finish()
}

// Bar draws a progressbar on the given writer.
type Bar struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// New returns a terminal bar when enabled, otherwise a no-op reporter.
func New(enabled bool) Reporter {
	if !enabled {
		return Nop{}
	}
	return &Bar{out: os.Stderr}
}

// Start creates the bar. A non-positive total is ignored.
func (p *Bar) Start(total int, desc string) {
	if total <= 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWidth(32),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Add advances the bar by n.
func (p *Bar) Add(n int) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(n)
}

// Finish completes the bar.
func (p *Bar) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int, string) {}
func (Nop) Add(int)           {}
func (Nop) Finish()           {}

// DefaultEnabled reports whether stderr is a terminal.
func DefaultEnabled() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
