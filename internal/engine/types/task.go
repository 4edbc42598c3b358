package types

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TaskState is the lifecycle position of a DownloadTask
type TaskState int32

const (
	StatePending TaskState = iota
	StateSkipped
	StateResuming
	StateFresh
	StateReceiving
	StateCompleted
	StateFailed
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSkipped:
		return "skipped"
	case StateResuming:
		return "resuming"
	case StateFresh:
		return "fresh"
	case StateReceiving:
		return "receiving"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Done reports whether the state is terminal
func (s TaskState) Done() bool {
	return s == StateSkipped || s == StateCompleted || s == StateFailed
}

// Sample is one point of a task's received-bytes history
type Sample struct {
	Time  time.Time
	Bytes int64
}

// DownloadTask is one requested transfer of a remote resource to a local path.
//
// The received counter has exactly one writer, the worker executing the task.
// History is appended by the sampler only.
type DownloadTask struct {
	ID           string
	URL          string
	FinalPath    string
	TempPath     string
	ExpectedSize int64     // 0 when unknown
	ModTime      time.Time // zero when unset
	CreatedAt    time.Time

	received     atomic.Int64
	lastActivity atomic.Int64 // unix nanos of the last counter change
	state        atomic.Int32
	err          atomic.Pointer[error]

	historyMu sync.Mutex
	history   []Sample
}

// TempPathFor returns the staging path for a final path
func TempPathFor(finalPath, suffix string) string {
	if suffix == "" {
		suffix = DefaultTmpSuffix
	}
	return finalPath + "." + suffix
}

func NewTask(url, finalPath, tmpSuffix string, expectedSize int64, modTime time.Time) *DownloadTask {
	if expectedSize < 0 {
		expectedSize = 0
	}
	return &DownloadTask{
		ID:           uuid.New().String(),
		URL:          url,
		FinalPath:    finalPath,
		TempPath:     TempPathFor(finalPath, tmpSuffix),
		ExpectedSize: expectedSize,
		ModTime:      modTime,
		CreatedAt:    time.Now(),
	}
}

// Received returns the bytes received by this run
func (t *DownloadTask) Received() int64 {
	return t.received.Load()
}

// AddReceived is called by the owning worker after each written chunk
func (t *DownloadTask) AddReceived(n int64) {
	if n <= 0 {
		return
	}
	t.received.Add(n)
	t.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns when the counter last changed, or the zero time
func (t *DownloadTask) LastActivity() time.Time {
	ns := t.lastActivity.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (t *DownloadTask) State() TaskState {
	return TaskState(t.state.Load())
}

func (t *DownloadTask) SetState(s TaskState) {
	t.state.Store(int32(s))
}

func (t *DownloadTask) SetError(err error) {
	t.err.Store(&err)
}

func (t *DownloadTask) Err() error {
	if e := t.err.Load(); e != nil {
		return *e
	}
	return nil
}

// AddSample appends a history point and drops points older than retention
func (t *DownloadTask) AddSample(s Sample, retention time.Duration) {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()

	t.history = append(t.history, s)
	if retention <= 0 {
		return
	}
	cutoff := s.Time.Add(-retention)
	drop := 0
	for drop < len(t.history)-1 && t.history[drop].Time.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		t.history = append(t.history[:0], t.history[drop:]...)
	}
}

// History returns a copy of the sample history, oldest first
func (t *DownloadTask) History() []Sample {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()
	out := make([]Sample, len(t.history))
	copy(out, t.history)
	return out
}

// Speed returns bytes/sec over the look-back window ending at the newest sample.
// A task with no activity within the window reports 0.
func (t *DownloadTask) Speed(now time.Time, window time.Duration) float64 {
	last := t.LastActivity()
	if last.IsZero() || now.Sub(last) > window {
		return 0
	}

	t.historyMu.Lock()
	defer t.historyMu.Unlock()

	n := len(t.history)
	if n < 2 {
		return 0
	}
	newest := t.history[n-1]
	if now.Sub(newest.Time) > window {
		return 0
	}

	boundary := newest
	for i := n - 2; i >= 0; i-- {
		if newest.Time.Sub(t.history[i].Time) > window {
			break
		}
		boundary = t.history[i]
	}

	elapsed := newest.Time.Sub(boundary.Time).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(newest.Bytes-boundary.Bytes) / elapsed
}

func (t *DownloadTask) String() string {
	return fmt.Sprintf("%s -> %s", t.URL, t.FinalPath)
}
