package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/canvas-sync/canvas-sync/internal/download/limiter"
	"github.com/canvas-sync/canvas-sync/internal/engine/concurrent"
	"github.com/canvas-sync/canvas-sync/internal/engine/events"
	"github.com/canvas-sync/canvas-sync/internal/engine/single"
	"github.com/canvas-sync/canvas-sync/internal/engine/types"
	"github.com/canvas-sync/canvas-sync/internal/utils"
)

// WorkerPool runs a fixed number of workers that pop tasks from a shared queue
// until each receives a terminate item.
type WorkerPool struct {
	queue    *concurrent.TaskQueue
	workers  int
	runtime  *types.RuntimeConfig
	client   *http.Client
	limiters *limiter.Registry
	observer Observer

	// dirMu serializes directory creation across workers
	dirMu sync.Mutex

	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

func NewWorkerPool(queue *concurrent.TaskQueue, runtime *types.RuntimeConfig, client *http.Client, limiters *limiter.Registry, observer Observer) *WorkerPool {
	if client == nil {
		client = single.NewClient(runtime)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &WorkerPool{
		queue:    queue,
		workers:  runtime.GetWorkers(),
		runtime:  runtime,
		client:   client,
		limiters: limiters,
		observer: observer,
	}
}

// Workers returns the number of workers the pool runs
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Start launches the workers. Calling it again has no effect.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop queues one terminate per worker behind any pending tasks and waits for
// every worker to exit.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.queue.PushTerminate(p.workers)
	p.wg.Wait()
}

func (p *WorkerPool) worker(index int) {
	defer p.wg.Done()

	log := utils.Logger("worker").With().Int("worker", index).Logger()
	log.Debug().Msg("worker started")
	defer func() { log.Debug().Msg("worker exiting") }()

	d := single.NewDownloader(p.client, p.runtime, p.limiters)
	d.OnStart = func(task *types.DownloadTask, resumeFrom int64) {
		p.observer.Notify(events.TaskStartedMsg{
			TaskID:      task.ID,
			URL:         task.URL,
			DestPath:    task.FinalPath,
			ResumeFrom:  resumeFrom,
			Total:       task.ExpectedSize,
			WorkerIndex: index,
		})
	}

	for {
		item := p.queue.Pop()
		if item.IsTerminate() {
			return
		}
		task, ok := item.Task()
		if !ok {
			continue
		}
		p.run(d, index, task)
	}
}

// run executes one task. Failures are reported and never stop the worker.
func (p *WorkerPool) run(d *single.Downloader, index int, task *types.DownloadTask) {
	log := utils.Logger("worker")

	for _, dir := range []string{filepath.Dir(task.FinalPath), filepath.Dir(task.TempPath)} {
		if err := p.ensureDir(dir); err != nil {
			terr := &single.TaskError{URL: task.URL, Dest: task.FinalPath, Err: err}
			task.SetState(types.StateFailed)
			task.SetError(terr)
			log.Error().Int("worker", index).Err(terr).Msg("task failed")
			p.observer.Notify(events.TaskErrorMsg{TaskID: task.ID, URL: task.URL, DestPath: task.FinalPath, Err: terr})
			return
		}
	}

	start := time.Now()
	res, err := d.Download(context.Background(), task)
	switch {
	case err != nil:
		var rl *limiter.RateLimitError
		if errors.As(err, &rl) {
			log.Warn().Int("worker", index).Err(err).Msg("task rate limited")
		} else {
			log.Error().Int("worker", index).Err(err).Msg("task failed")
		}
		p.observer.Notify(events.TaskErrorMsg{TaskID: task.ID, URL: task.URL, DestPath: task.FinalPath, Err: err})
	case res.Skipped:
		log.Debug().Int("worker", index).Str("dest", task.FinalPath).Msg("task skipped")
		p.observer.Notify(events.TaskSkippedMsg{TaskID: task.ID, DestPath: task.FinalPath})
	default:
		elapsed := time.Since(start)
		log.Info().
			Int("worker", index).
			Str("dest", task.FinalPath).
			Int64("bytes", res.Bytes).
			Dur("elapsed", elapsed).
			Msg("task completed")
		p.observer.Notify(events.TaskCompleteMsg{
			TaskID:      task.ID,
			DestPath:    task.FinalPath,
			Received:    res.Bytes,
			Elapsed:     elapsed,
			ContentKind: res.ContentKind,
		})
	}
}

// ensureDir creates dir and its parents while holding the pool's directory lock
func (p *WorkerPool) ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	p.dirMu.Lock()
	defer p.dirMu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
