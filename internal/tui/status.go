package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/canvas-sync/canvas-sync/internal/engine/types"
	"github.com/canvas-sync/canvas-sync/internal/tui/colors"
)

// statusInfo holds the display properties for each task state
type statusInfo struct {
	icon  string
	label string
	color lipgloss.Color
}

var statusMap = map[types.TaskState]statusInfo{
	types.StatePending:   {"⋯", "Queued", colors.StatePending},
	types.StateSkipped:   {"=", "Up to date", colors.StateSkipped},
	types.StateResuming:  {"↻", "Resuming", colors.StateReceiving},
	types.StateFresh:     {"⬇", "Starting", colors.StateReceiving},
	types.StateReceiving: {"⬇", "Receiving", colors.StateReceiving},
	types.StateCompleted: {"✔", "Completed", colors.StateCompleted},
	types.StateFailed:    {"✖", "Failed", colors.StateFailed},
}

// rateLimited is shown in place of Failed when the host answered 429
var rateLimited = statusInfo{"⚠", "Rate limited", colors.Warning}

func lookupStatus(s types.TaskState) statusInfo {
	if info, ok := statusMap[s]; ok {
		return info
	}
	return statusInfo{"?", "Unknown", colors.Gray}
}

// renderStatus returns the styled icon and label
func renderStatus(r *lipgloss.Renderer, info statusInfo) string {
	return r.NewStyle().Foreground(info.color).Render(info.icon + " " + info.label)
}

// renderRateLimited returns the rate limited status with the block countdown
func renderRateLimited(r *lipgloss.Renderer, wait time.Duration) string {
	label := rateLimited.label
	if wait > 0 {
		label = fmt.Sprintf("%s (wait %s)", label, wait.Round(time.Second))
	}
	return r.NewStyle().Foreground(rateLimited.color).Render(rateLimited.icon + " " + label)
}
