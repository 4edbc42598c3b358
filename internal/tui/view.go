package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/canvas-sync/canvas-sync/internal/engine/types"
	"github.com/canvas-sync/canvas-sync/internal/tui/colors"
)

var (
	TitleStyle = lipgloss.NewStyle().Foreground(colors.NeonPink).Bold(true)
	DimStyle   = lipgloss.NewStyle().Foreground(colors.LightGray)
	ValueStyle = lipgloss.NewStyle().Foreground(colors.NeonCyan).Bold(true)
	NameStyle  = lipgloss.NewStyle().Width(nameWidth).MaxWidth(nameWidth)
)

func (m RootModel) View() string {
	r := lipgloss.DefaultRenderer()
	if m.done {
		return renderSummary(r, m.stats, m.speeds) + "\n"
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render("canvas-sync"))
	b.WriteString(DimStyle.Render(" → " + m.outDir))
	b.WriteString("\n\n")

	finished := m.stats.Completed + m.stats.Skipped + m.stats.Failed
	var pct float64
	if m.stats.Submitted > 0 {
		pct = float64(finished) / float64(m.stats.Submitted)
	}
	m.overall.Width = max(m.width-HeaderWidthOffset, 20)
	b.WriteString(m.overall.ViewAs(pct))
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("%s %s %s\n\n",
		ValueStyle.Render(humanize.Bytes(uint64(m.stats.Loaded))),
		ValueStyle.Render(humanize.Bytes(uint64(m.stats.Speed))+"/s"),
		DimStyle.Render(fmt.Sprintf("%d/%d files, %d active, %d failed", finished, m.stats.Submitted, m.stats.Active, m.stats.Failed)),
	))

	for _, t := range m.visibleTasks() {
		b.WriteString(m.renderRow(r, t))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(DimStyle.Render("q quit, partial downloads resume on the next run"))
	return b.String()
}

// visibleTasks keeps unfinished rows first, then the most recently added finished ones
func (m RootModel) visibleTasks() []*TaskModel {
	limit := m.getVisibleRows()
	var active, finished []*TaskModel
	for _, t := range m.tasks {
		if t.done() {
			finished = append(finished, t)
		} else {
			active = append(active, t)
		}
	}
	rows := active
	for i := len(finished) - 1; i >= 0 && len(rows) < limit; i-- {
		rows = append(rows, finished[i])
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (m RootModel) renderRow(r *lipgloss.Renderer, t *TaskModel) string {
	var status string
	if t.state == types.StateFailed && t.rateLimit > 0 {
		status = renderRateLimited(r, t.rateLimit)
	} else {
		status = renderStatus(r, lookupStatus(t.state))
	}

	name := NameStyle.Render(t.Name)

	switch t.state {
	case types.StateFailed:
		return fmt.Sprintf("%s %s %s", name, status, DimStyle.Render(fmt.Sprint(t.err)))
	case types.StateSkipped:
		return fmt.Sprintf("%s %s", name, status)
	}

	barWidth := max(m.width-nameWidth-ProgressBarWidthOffset-36, 10)
	t.progress.Width = barWidth

	info := humanize.Bytes(uint64(t.Resumed + t.Received))
	if t.Total > 0 {
		info += " / " + humanize.Bytes(uint64(t.Total))
	}
	if t.Speed > 0 {
		info += "  " + humanize.Bytes(uint64(t.Speed)) + "/s"
	}
	return fmt.Sprintf("%s %s %s %s", name, t.progress.ViewAs(t.percent()), status, DimStyle.Render(info))
}
