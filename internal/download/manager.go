// Package download schedules DownloadTasks over a worker pool and reports
// aggregate progress.
package download

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canvas-sync/canvas-sync/internal/download/limiter"
	"github.com/canvas-sync/canvas-sync/internal/engine/concurrent"
	"github.com/canvas-sync/canvas-sync/internal/engine/events"
	"github.com/canvas-sync/canvas-sync/internal/engine/types"
	"github.com/canvas-sync/canvas-sync/internal/utils"
)

var (
	ErrAlreadyStarted = errors.New("download manager already started")
	ErrStopped        = errors.New("download manager stopped")
	ErrDuplicateTask  = errors.New("task already submitted")
)

// Options configures a Manager. Zero values use the engine defaults.
type Options struct {
	Runtime  *types.RuntimeConfig
	Client   *http.Client
	Observer Observer
}

// Manager owns the task queue, the worker pool and the stats sampler.
// Tasks may be submitted before or after Start.
type Manager struct {
	runtime  *types.RuntimeConfig
	queue    *concurrent.TaskQueue
	pool     *WorkerPool
	sampler  *Sampler
	limiters *limiter.Registry

	tasksMu sync.RWMutex
	tasks   []*types.DownloadTask
	seen    map[string]struct{} // task IDs, guarded by lifecycle

	submitted atomic.Int64

	// lifecycle guards started/stopped and orders Submit against Stop
	lifecycle sync.Mutex
	started   bool
	stopped   bool
}

func NewManager(opts Options) *Manager {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	m := &Manager{
		runtime:  opts.Runtime,
		queue:    concurrent.NewTaskQueue(),
		limiters: limiter.NewRegistry(),
		seen:     make(map[string]struct{}),
	}
	m.pool = NewWorkerPool(m.queue, opts.Runtime, opts.Client, m.limiters, opts.Observer)
	m.sampler = NewSampler(opts.Runtime, m.Tasks, m.Stats, opts.Observer)
	return m
}

// NewTask builds a task without submitting it. An empty dest names the file after the URL.
func (m *Manager) NewTask(url, dest string, expectedSize int64, modTime time.Time) (*types.DownloadTask, error) {
	if url == "" {
		return nil, errors.New("empty url")
	}
	if dest == "" || strings.HasSuffix(dest, string(filepath.Separator)) {
		name, err := utils.FilenameFromURL(url)
		if err != nil {
			return nil, err
		}
		dest = filepath.Join(dest, name)
	}
	return types.NewTask(url, dest, m.runtime.GetTmpSuffix(), expectedSize, modTime), nil
}

// Add builds a task and submits it
func (m *Manager) Add(url, dest string, expectedSize int64, modTime time.Time) (*types.DownloadTask, error) {
	task, err := m.NewTask(url, dest, expectedSize, modTime)
	if err != nil {
		return nil, err
	}
	if err := m.Submit(task); err != nil {
		return nil, err
	}
	return task, nil
}

// Submit records the task and queues it for the workers.
// A task runs at most once: submitting the same task again returns ErrDuplicateTask.
func (m *Manager) Submit(task *types.DownloadTask) error {
	if task == nil {
		return errors.New("nil task")
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if _, ok := m.seen[task.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task)
	}
	m.seen[task.ID] = struct{}{}

	m.submitted.Add(1)
	m.tasksMu.Lock()
	m.tasks = append(m.tasks, task)
	m.tasksMu.Unlock()

	m.queue.Push(concurrent.TaskItem(task))
	utils.Debug("Manager: submitted %s", task)
	return nil
}

// Start launches the workers and the sampler
func (m *Manager) Start() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	utils.Logger("manager").Info().
		Int("workers", m.pool.Workers()).
		Int64("queued", m.submitted.Load()).
		Msg("starting")

	m.pool.Start()
	m.sampler.Start()
	return nil
}

// Stop lets the workers drain every task queued before the call, joins them,
// then stops the sampler after its final tick. Calling Stop more than once is safe.
func (m *Manager) Stop() {
	m.lifecycle.Lock()
	if m.stopped {
		m.lifecycle.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.lifecycle.Unlock()

	if !started {
		return
	}

	m.pool.Stop()
	m.sampler.Stop()

	stats := m.Stats(time.Now())
	utils.Logger("manager").Info().
		Int("completed", stats.Completed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int64("loaded", stats.Loaded).
		Msg("stopped")
}

// Tasks returns a snapshot of every submitted task in submission order
func (m *Manager) Tasks() []*types.DownloadTask {
	m.tasksMu.RLock()
	defer m.tasksMu.RUnlock()
	out := make([]*types.DownloadTask, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// Submitted returns the number of accepted submissions
func (m *Manager) Submitted() int64 {
	return m.submitted.Load()
}

// Loaded returns bytes received by all tasks in this run
func (m *Manager) Loaded() int64 {
	var total int64
	for _, t := range m.Tasks() {
		total += t.Received()
	}
	return total
}

// Total returns the sum of expected sizes; unknown sizes count as 0
func (m *Manager) Total() int64 {
	var total int64
	for _, t := range m.Tasks() {
		total += t.ExpectedSize
	}
	return total
}

// Speed returns the aggregate bytes/sec over the speed window
func (m *Manager) Speed() float64 {
	now := time.Now()
	window := m.runtime.GetSpeedWindow()
	var speed float64
	for _, t := range m.Tasks() {
		speed += t.Speed(now, window)
	}
	return speed
}

// Stats builds an aggregate snapshot at now
func (m *Manager) Stats(now time.Time) events.StatsMsg {
	tasks := m.Tasks()
	window := m.runtime.GetSpeedWindow()
	msg := events.StatsMsg{
		Time:      now,
		Submitted: m.submitted.Load(),
	}
	for _, t := range tasks {
		received := t.Received()
		speed := t.Speed(now, window)
		msg.Loaded += received
		msg.Total += t.ExpectedSize
		msg.Speed += speed
		switch t.State() {
		case types.StateResuming, types.StateFresh:
			msg.Active++
		case types.StateReceiving:
			msg.Active++
			msg.Tasks = append(msg.Tasks, events.TaskProgress{TaskID: t.ID, Received: received, Speed: speed})
		case types.StateCompleted:
			msg.Completed++
		case types.StateSkipped:
			msg.Skipped++
		case types.StateFailed:
			msg.Failed++
		}
	}
	return msg
}

// String lists every task with its state
func (m *Manager) String() string {
	var b strings.Builder
	for _, t := range m.Tasks() {
		fmt.Fprintf(&b, "[%s] %s\n", t.State(), t)
	}
	return b.String()
}
