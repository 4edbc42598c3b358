package events

import (
	"time"
)

// TaskStartedMsg is sent when a worker picks up a task and begins receiving bytes
type TaskStartedMsg struct {
	TaskID      string
	URL         string
	DestPath    string
	ResumeFrom  int64 // staging bytes kept from a previous run, 0 for a fresh transfer
	Total       int64
	WorkerIndex int
}

// TaskSkippedMsg signals the destination was already fresh
type TaskSkippedMsg struct {
	TaskID   string
	DestPath string
}

// TaskCompleteMsg signals that the final file was published
type TaskCompleteMsg struct {
	TaskID      string
	DestPath    string
	Received    int64
	Elapsed     time.Duration
	ContentKind string // sniffed MIME type, empty when unknown
}

// TaskErrorMsg signals that a task failed; the staging file is kept
type TaskErrorMsg struct {
	TaskID   string
	URL      string
	DestPath string
	Err      error
}

// StatsMsg is the aggregate snapshot pushed on each sampler tick
type StatsMsg struct {
	Time      time.Time
	Loaded    int64
	Total     int64
	Speed     float64 // bytes per second
	Submitted int64
	Active    int
	Completed int
	Skipped   int
	Failed    int
	Final     bool // last snapshot before the sampler exits

	// Tasks holds one entry per task currently receiving bytes
	Tasks []TaskProgress
}

// TaskProgress is a receiving task's share of a StatsMsg
type TaskProgress struct {
	TaskID   string
	Received int64
	Speed    float64
}
