package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/canvas-sync/canvas-sync/internal/download/limiter"
	"github.com/canvas-sync/canvas-sync/internal/engine/events"
	"github.com/canvas-sync/canvas-sync/internal/engine/types"
)

func (m RootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case events.TaskStartedMsg:
		t := m.task(msg.TaskID, msg.DestPath)
		t.Total = msg.Total
		t.Resumed = msg.ResumeFrom
		t.Worker = msg.WorkerIndex
		t.state = types.StateReceiving
		if msg.ResumeFrom > 0 {
			t.state = types.StateResuming
		}
		return m, listenForActivity(m.progressChan)

	case events.TaskSkippedMsg:
		m.task(msg.TaskID, msg.DestPath).state = types.StateSkipped
		return m, listenForActivity(m.progressChan)

	case events.TaskCompleteMsg:
		t := m.task(msg.TaskID, msg.DestPath)
		t.state = types.StateCompleted
		t.Received = msg.Received
		t.Speed = 0
		return m, listenForActivity(m.progressChan)

	case events.TaskErrorMsg:
		t := m.task(msg.TaskID, msg.DestPath)
		t.state = types.StateFailed
		t.err = msg.Err
		t.Speed = 0
		var rl *limiter.RateLimitError
		if errors.As(msg.Err, &rl) {
			t.rateLimit = rl.WaitDuration
		}
		return m, listenForActivity(m.progressChan)

	case events.StatsMsg:
		m.stats = msg
		m.speeds.record(msg.Speed)
		for _, p := range msg.Tasks {
			// Rows for finished tasks keep their final numbers
			if t, ok := m.byID[p.TaskID]; ok && !t.done() {
				t.Received = p.Received
				t.Speed = p.Speed
			}
		}
		if msg.Final {
			m.done = true
			return m, tea.Quit
		}
		return m, listenForActivity(m.progressChan)

	case eventsClosedMsg:
		m.done = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Staging files stay on disk; the next run resumes them
			m.interrupted = true
			return m, tea.Quit
		}
	}
	return m, nil
}
