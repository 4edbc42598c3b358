package types

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	mtime := time.Unix(1700000000, 0)
	task := NewTask("http://example.com/a.pdf", "/tmp/out/a.pdf", "canvas-sync", 2048, mtime)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "/tmp/out/a.pdf.canvas-sync", task.TempPath)
	assert.Equal(t, int64(2048), task.ExpectedSize)
	assert.True(t, task.ModTime.Equal(mtime))
	assert.Equal(t, StatePending, task.State())
	assert.Equal(t, int64(0), task.Received())
	assert.Equal(t, "http://example.com/a.pdf -> /tmp/out/a.pdf", task.String())
}

func TestNewTask_NegativeSizeIsUnknown(t *testing.T) {
	task := NewTask("http://example.com/a", "a", "", -1, time.Time{})
	assert.Equal(t, int64(0), task.ExpectedSize)
	assert.Equal(t, "a.tmp", task.TempPath)
}

func TestTempPathFor_Deterministic(t *testing.T) {
	assert.Equal(t, TempPathFor("dir/file.bin", "tmp"), TempPathFor("dir/file.bin", "tmp"))
	assert.Equal(t, "dir/file.bin.tmp", TempPathFor("dir/file.bin", ""))
}

func TestTaskState_String(t *testing.T) {
	tests := []struct {
		state TaskState
		want  string
		done  bool
	}{
		{StatePending, "pending", false},
		{StateSkipped, "skipped", true},
		{StateResuming, "resuming", false},
		{StateFresh, "fresh", false},
		{StateReceiving, "receiving", false},
		{StateCompleted, "completed", true},
		{StateFailed, "failed", true},
		{TaskState(42), "state(42)", false},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
			assert.Equal(t, tt.done, tt.state.Done())
		})
	}
}

func TestAddReceived_IgnoresEmptyChunks(t *testing.T) {
	task := NewTask("u", "p", "", 0, time.Time{})

	task.AddReceived(0)
	assert.True(t, task.LastActivity().IsZero(), "empty chunk must not count as activity")

	task.AddReceived(100)
	task.AddReceived(-5)
	assert.Equal(t, int64(100), task.Received())
	assert.False(t, task.LastActivity().IsZero())
}

func TestAddReceived_ConcurrentReaders(t *testing.T) {
	task := NewTask("u", "p", "", 0, time.Time{})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int64
			for {
				select {
				case <-stop:
					return
				default:
				}
				v := task.Received()
				if v < last {
					t.Errorf("counter went backwards: %d < %d", v, last)
					return
				}
				last = v
			}
		}()
	}

	for i := 0; i < 10000; i++ {
		task.AddReceived(1)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, int64(10000), task.Received())
}

func TestSetError(t *testing.T) {
	task := NewTask("u", "p", "", 0, time.Time{})
	assert.NoError(t, task.Err())

	task.SetError(assert.AnError)
	assert.ErrorIs(t, task.Err(), assert.AnError)
}

func TestAddSample_Retention(t *testing.T) {
	task := NewTask("u", "p", "", 0, time.Time{})
	base := time.Now()

	for i := 0; i < 10; i++ {
		task.AddSample(Sample{Time: base.Add(time.Duration(i) * time.Second), Bytes: int64(i * 100)}, 3*time.Second)
	}

	h := task.History()
	require.NotEmpty(t, h)
	assert.Equal(t, int64(900), h[len(h)-1].Bytes)
	for _, s := range h {
		assert.False(t, s.Time.Before(base.Add(6*time.Second)), "sample at %v should have been pruned", s.Time)
	}
}

func TestSpeed_Window(t *testing.T) {
	task := NewTask("u", "p", "", 0, time.Time{})
	task.AddReceived(1)
	now := task.LastActivity()

	// 1000 B/s for the last 3 seconds, but a burst long before the window
	task.AddSample(Sample{Time: now.Add(-10 * time.Second), Bytes: 0}, 0)
	task.AddSample(Sample{Time: now.Add(-9 * time.Second), Bytes: 50000}, 0)
	task.AddSample(Sample{Time: now.Add(-3 * time.Second), Bytes: 60000}, 0)
	task.AddSample(Sample{Time: now.Add(-2 * time.Second), Bytes: 61000}, 0)
	task.AddSample(Sample{Time: now, Bytes: 63000}, 0)

	assert.InDelta(t, 1000.0, task.Speed(now, 3*time.Second), 0.001)
}

func TestSpeed_NoSamples(t *testing.T) {
	task := NewTask("u", "p", "", 0, time.Time{})
	assert.Equal(t, 0.0, task.Speed(time.Now(), 3*time.Second))

	task.AddReceived(10)
	task.AddSample(Sample{Time: time.Now(), Bytes: 10}, 0)
	assert.Equal(t, 0.0, task.Speed(time.Now(), 3*time.Second), "single sample has no rate")
}

func TestSpeed_DecaysToZero(t *testing.T) {
	task := NewTask("u", "p", "", 0, time.Time{})
	task.AddReceived(2000)
	last := task.LastActivity()

	task.AddSample(Sample{Time: last.Add(-time.Second), Bytes: 0}, 0)
	task.AddSample(Sample{Time: last, Bytes: 2000}, 0)

	assert.Greater(t, task.Speed(last, 3*time.Second), 0.0)
	assert.Equal(t, 0.0, task.Speed(last.Add(4*time.Second), 3*time.Second), "stale task must not report old speed")
}
