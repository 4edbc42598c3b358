package colors

import "github.com/charmbracelet/lipgloss"

// === Color Palette ===
var (
	NeonPurple = lipgloss.Color("#bd93f9")
	NeonPink   = lipgloss.Color("#ff79c6")
	NeonCyan   = lipgloss.Color("#8be9fd")
	Gray       = lipgloss.Color("#44475a")
	LightGray  = lipgloss.Color("#a9b1d6") // secondary text
)

// === Task State Colors ===
var (
	StateFailed    = lipgloss.Color("#ff5555")
	StatePending   = lipgloss.Color("#ffb86c")
	StateReceiving = lipgloss.Color("#50fa7b")
	StateCompleted = lipgloss.Color("#bd93f9")
	StateSkipped   = lipgloss.Color("#6272a4")
	Warning        = lipgloss.Color("#f1fa8c") // rate limited
)

// Sparkline gradient, low to high
var Gradient = []lipgloss.Color{
	lipgloss.Color("#5f005f"),
	lipgloss.Color("#8700af"),
	lipgloss.Color("#af00d7"),
	lipgloss.Color("#ff00ff"),
}
