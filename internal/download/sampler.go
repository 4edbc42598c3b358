package download

import (
	"sync"
	"time"

	"github.com/canvas-sync/canvas-sync/internal/engine/events"
	"github.com/canvas-sync/canvas-sync/internal/engine/types"
)

// Sampler periodically records received-bytes history for active tasks and
// publishes an aggregate snapshot to the observer.
type Sampler struct {
	interval  time.Duration
	retention time.Duration
	tasks     func() []*types.DownloadTask
	snapshot  func(now time.Time) events.StatsMsg
	observer  Observer

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewSampler(runtime *types.RuntimeConfig, tasks func() []*types.DownloadTask, snapshot func(time.Time) events.StatsMsg, observer Observer) *Sampler {
	if observer == nil {
		observer = nopObserver{}
	}
	retention := 2 * runtime.GetSpeedWindow()
	if retention < types.HistoryRetention {
		retention = types.HistoryRetention
	}
	return &Sampler{
		interval:  runtime.GetSampleInterval(),
		retention: retention,
		tasks:     tasks,
		snapshot:  snapshot,
		observer:  observer,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sampling loop in its own goroutine
func (s *Sampler) Start() {
	go s.run()
}

// Stop signals the loop and waits for its final tick
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Sampler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.Tick(time.Now(), true)
			return
		case now := <-ticker.C:
			s.Tick(now, false)
		}
	}
}

// Tick samples every receiving task at now and publishes a snapshot
func (s *Sampler) Tick(now time.Time, final bool) {
	for _, t := range s.tasks() {
		if t.State() != types.StateReceiving {
			continue
		}
		t.AddSample(types.Sample{Time: now, Bytes: t.Received()}, s.retention)
	}

	if s.snapshot == nil {
		return
	}
	msg := s.snapshot(now)
	msg.Final = final
	s.observer.Notify(msg)
}
