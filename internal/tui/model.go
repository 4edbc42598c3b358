package tui

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/canvas-sync/canvas-sync/internal/engine/events"
	"github.com/canvas-sync/canvas-sync/internal/engine/types"
)

const (
	// EventBuffer sizes the channel between the download observer and the dashboard
	EventBuffer = 256

	defaultWidth  = 80
	defaultHeight = 24
	nameWidth     = 28
	HeaderHeight  = 5 // title, overall bar, stats line and spacing
	FooterHeight  = 2

	HeaderWidthOffset      = 2
	ProgressBarWidthOffset = 4
)

// TaskModel is one dashboard row
type TaskModel struct {
	ID       string
	Name     string
	Total    int64
	Resumed  int64 // staging bytes kept from an earlier run
	Received int64 // bytes received by this run
	Speed    float64
	Worker   int

	state     types.TaskState
	err       error
	rateLimit time.Duration
	progress  progress.Model
}

func newTaskModel(id, dest string) *TaskModel {
	return &TaskModel{
		ID:       id,
		Name:     filepath.Base(dest),
		state:    types.StatePending,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// percent is the share of the whole file on disk, counting resumed bytes
func (t *TaskModel) percent() float64 {
	if t.state == types.StateCompleted || t.state == types.StateSkipped {
		return 1
	}
	if t.Total <= 0 {
		return 0
	}
	return min(float64(t.Resumed+t.Received)/float64(t.Total), 1)
}

func (t *TaskModel) done() bool {
	return t.state.Done()
}

// RootModel is the interactive dashboard for one sync run. It reads the
// events a download.ChannelObserver forwards and quits after the final
// stats snapshot.
type RootModel struct {
	progressChan <-chan any
	outDir       string

	tasks []*TaskModel
	byID  map[string]*TaskModel

	stats   events.StatsMsg
	speeds  speedHistory
	overall progress.Model

	width  int
	height int

	done        bool
	interrupted bool
}

func NewRootModel(ch <-chan any, outDir string) RootModel {
	return RootModel{
		progressChan: ch,
		outDir:       outDir,
		byID:         make(map[string]*TaskModel),
		overall:      progress.New(progress.WithDefaultGradient()),
		width:        defaultWidth,
		height:       defaultHeight,
	}
}

func (m RootModel) Init() tea.Cmd {
	return listenForActivity(m.progressChan)
}

// Done reports whether the final stats snapshot (or the end of the event stream) was seen
func (m RootModel) Done() bool { return m.done }

// Interrupted reports whether the user quit before the run finished
func (m RootModel) Interrupted() bool { return m.interrupted }

// task returns the row for id, adding it on first sight
func (m *RootModel) task(id, dest string) *TaskModel {
	if t, ok := m.byID[id]; ok {
		return t
	}
	t := newTaskModel(id, dest)
	m.byID[id] = t
	m.tasks = append(m.tasks, t)
	return t
}

// getVisibleRows returns how many task rows fit under the header
func (m RootModel) getVisibleRows() int {
	rows := m.height - HeaderHeight - FooterHeight
	if rows < 1 {
		rows = 1
	}
	return rows
}

// eventsClosedMsg is delivered once the observer channel is closed
type eventsClosedMsg struct{}

func listenForActivity(sub <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return eventsClosedMsg{}
		}
		return msg
	}
}
