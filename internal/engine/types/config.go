package types

import "time"

// Size constants
const (
	KB = 1 << 10
	MB = 1 << 20
	GB = 1 << 30
)

const (
	// DefaultWorkers is the number of concurrent transfers when none is configured
	DefaultWorkers = 5

	// DefaultTmpSuffix is appended (after a dot) to the final path to form the staging path
	DefaultTmpSuffix = "tmp"

	// ReadBufferSize is the size of the buffer used to stream response bodies
	ReadBufferSize = 32 * KB

	// SampleInterval is how often the sampler snapshots received bytes
	SampleInterval = 300 * time.Millisecond

	// SpeedWindow is the look-back window used for instantaneous speed
	SpeedWindow = 3 * time.Second

	// HistoryRetention bounds how long samples are kept per task
	HistoryRetention = 2 * SpeedWindow

	// RequestTimeout bounds time to first response header; bodies may stream longer
	RequestTimeout = 30 * time.Second

	// DefaultUserAgent is sent when no user agent is configured
	DefaultUserAgent = "canvas-sync/1.0"
)

// HTTP transport tuning
const (
	DefaultMaxIdleConns          = 100
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultExpectContinueTimeout = 1 * time.Second
)

// RuntimeConfig holds the tunables the engine reads at run time.
// A nil *RuntimeConfig or zero fields fall back to the package defaults.
type RuntimeConfig struct {
	Workers        int
	TmpSuffix      string
	UserAgent      string
	BufferSize     int
	SampleInterval time.Duration
	SpeedWindow    time.Duration
	RequestTimeout time.Duration
	CleanStale     bool
}

func (r *RuntimeConfig) GetWorkers() int {
	if r == nil || r.Workers <= 0 {
		return DefaultWorkers
	}
	return r.Workers
}

func (r *RuntimeConfig) GetTmpSuffix() string {
	if r == nil || r.TmpSuffix == "" {
		return DefaultTmpSuffix
	}
	return r.TmpSuffix
}

func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return DefaultUserAgent
	}
	return r.UserAgent
}

func (r *RuntimeConfig) GetBufferSize() int {
	if r == nil || r.BufferSize <= 0 {
		return ReadBufferSize
	}
	return r.BufferSize
}

func (r *RuntimeConfig) GetSampleInterval() time.Duration {
	if r == nil || r.SampleInterval <= 0 {
		return SampleInterval
	}
	return r.SampleInterval
}

func (r *RuntimeConfig) GetSpeedWindow() time.Duration {
	if r == nil || r.SpeedWindow <= 0 {
		return SpeedWindow
	}
	return r.SpeedWindow
}

func (r *RuntimeConfig) GetRequestTimeout() time.Duration {
	if r == nil || r.RequestTimeout <= 0 {
		return RequestTimeout
	}
	return r.RequestTimeout
}

// GetCleanStale reports whether staging files left behind by skipped tasks are removed
func (r *RuntimeConfig) GetCleanStale() bool {
	return r != nil && r.CleanStale
}
