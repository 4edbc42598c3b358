// Package tui renders download progress for a terminal.
package tui

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/canvas-sync/canvas-sync/internal/download/limiter"
	"github.com/canvas-sync/canvas-sync/internal/engine/events"
	"github.com/canvas-sync/canvas-sync/internal/engine/types"
	"github.com/canvas-sync/canvas-sync/internal/tui/colors"
)

const (
	DefaultStatsInterval = time.Second
	SparklineWidth       = 24
	maxSpeedHistory      = 512
)

// ProgressReporter prints task transitions and throttled aggregate progress lines.
// It satisfies download.Observer.
type ProgressReporter struct {
	out      io.Writer
	renderer *lipgloss.Renderer
	interval time.Duration

	mu        sync.Mutex
	lastStats time.Time
	speeds    speedHistory

	dim   lipgloss.Style
	value lipgloss.Style
}

func NewProgressReporter(out io.Writer, interval time.Duration) *ProgressReporter {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	r := lipgloss.NewRenderer(out)
	return &ProgressReporter{
		out:      out,
		renderer: r,
		interval: interval,
		dim:      r.NewStyle().Foreground(colors.LightGray),
		value:    r.NewStyle().Foreground(colors.NeonCyan).Bold(true),
	}
}

func (p *ProgressReporter) Notify(msg any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m := msg.(type) {
	case events.TaskStartedMsg:
		line := fmt.Sprintf("%s %s", renderStatus(p.renderer, lookupStatus(types.StateReceiving)), name(m.DestPath))
		if m.ResumeFrom > 0 {
			line = fmt.Sprintf("%s %s", renderStatus(p.renderer, lookupStatus(types.StateResuming)), name(m.DestPath))
			line += p.dim.Render(" from " + humanize.Bytes(uint64(m.ResumeFrom)))
		}
		if m.Total > 0 {
			line += p.dim.Render(" of " + humanize.Bytes(uint64(m.Total)))
		}
		fmt.Fprintln(p.out, line)

	case events.TaskSkippedMsg:
		fmt.Fprintf(p.out, "%s %s\n", renderStatus(p.renderer, lookupStatus(types.StateSkipped)), name(m.DestPath))

	case events.TaskCompleteMsg:
		line := fmt.Sprintf("%s %s", renderStatus(p.renderer, lookupStatus(types.StateCompleted)), name(m.DestPath))
		line += p.dim.Render(fmt.Sprintf(" %s in %s", humanize.Bytes(uint64(m.Received)), m.Elapsed.Round(time.Millisecond)))
		if m.ContentKind != "" {
			line += p.dim.Render(" [" + m.ContentKind + "]")
		}
		fmt.Fprintln(p.out, line)

	case events.TaskErrorMsg:
		var rl *limiter.RateLimitError
		status := renderStatus(p.renderer, lookupStatus(types.StateFailed))
		if errors.As(m.Err, &rl) {
			status = renderRateLimited(p.renderer, rl.WaitDuration)
		}
		fmt.Fprintf(p.out, "%s %s: %v\n", status, name(m.DestPath), m.Err)

	case events.StatsMsg:
		p.speeds.record(m.Speed)
		if !m.Final && m.Time.Sub(p.lastStats) < p.interval {
			return
		}
		p.lastStats = m.Time
		if m.Final {
			fmt.Fprintln(p.out, p.summary(m))
			return
		}
		fmt.Fprintln(p.out, p.progressLine(m))
	}
}

// speedHistory keeps recent aggregate speeds and the peak for the summary sparkline
type speedHistory struct {
	values []float64
	peak   float64
}

func (h *speedHistory) record(speed float64) {
	if speed > h.peak {
		h.peak = speed
	}
	h.values = append(h.values, speed)
	if len(h.values) > maxSpeedHistory {
		h.values = h.values[len(h.values)-maxSpeedHistory:]
	}
}

func (p *ProgressReporter) progressLine(m events.StatsMsg) string {
	loaded := humanize.Bytes(uint64(m.Loaded))
	if m.Total > 0 {
		pct := float64(m.Loaded) * 100 / float64(m.Total)
		loaded = fmt.Sprintf("%s / %s (%.0f%%)", loaded, humanize.Bytes(uint64(m.Total)), pct)
	}
	return fmt.Sprintf("%s %s %s %s",
		p.dim.Render("progress"),
		p.value.Render(loaded),
		p.value.Render(humanize.Bytes(uint64(m.Speed))+"/s"),
		p.dim.Render(fmt.Sprintf("active %d, done %d/%d", m.Active, m.Completed+m.Skipped+m.Failed, m.Submitted)),
	)
}

func (p *ProgressReporter) summary(m events.StatsMsg) string {
	return renderSummary(p.renderer, m, p.speeds)
}

// renderSummary renders the closing counts and, when anything moved, a speed sparkline
func renderSummary(r *lipgloss.Renderer, m events.StatsMsg, speeds speedHistory) string {
	dim := r.NewStyle().Foreground(colors.LightGray)
	line := fmt.Sprintf("%s %d completed, %d up to date, %d failed, %s received",
		r.NewStyle().Foreground(colors.NeonPink).Bold(true).Render("done"),
		m.Completed, m.Skipped, m.Failed,
		humanize.Bytes(uint64(m.Loaded)))
	if speeds.peak > 0 {
		line += fmt.Sprintf("\n%s %s %s",
			dim.Render("speed"),
			sparkline(r, speeds.values, SparklineWidth),
			dim.Render("peak "+humanize.Bytes(uint64(speeds.peak))+"/s"))
	}
	return line
}

func name(path string) string {
	return filepath.Base(path)
}
