package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/canvas-sync/canvas-sync/internal/tui/colors"
)

var blocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// sparkline renders data as a single row of block characters, scaled to the
// largest value and resampled to at most width columns
func sparkline(r *lipgloss.Renderer, data []float64, width int) string {
	if width < 1 || len(data) == 0 {
		return ""
	}
	data = resample(data, width)

	maxVal := 0.0
	for _, v := range data {
		if v > maxVal {
			maxVal = v
		}
	}

	styles := make([]lipgloss.Style, len(colors.Gradient))
	for i, c := range colors.Gradient {
		styles[i] = r.NewStyle().Foreground(c)
	}

	var b strings.Builder
	for _, v := range data {
		if v < 0 {
			v = 0
		}
		level := 0
		if maxVal > 0 {
			level = int(v / maxVal * float64(len(blocks)-1))
		}
		colorIdx := level * len(styles) / len(blocks)
		b.WriteString(styles[colorIdx].Render(string(blocks[level])))
	}
	return b.String()
}

// resample averages data into width buckets when it is longer than width
func resample(data []float64, width int) []float64 {
	if len(data) <= width {
		return data
	}
	out := make([]float64, width)
	per := float64(len(data)) / float64(width)
	for i := range out {
		start := int(float64(i) * per)
		end := int(float64(i+1) * per)
		if end <= start {
			end = start + 1
		}
		if end > len(data) {
			end = len(data)
		}
		var sum float64
		for _, v := range data[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}
