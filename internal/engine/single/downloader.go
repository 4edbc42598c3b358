// Package single transfers one remote resource to one local file, resuming
// from a staging file left by an earlier run.
package single

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/canvas-sync/canvas-sync/internal/download/limiter"
	"github.com/canvas-sync/canvas-sync/internal/engine/types"
	"github.com/canvas-sync/canvas-sync/internal/utils"
)

// StatusError is returned when the server answers with a status the engine cannot use
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return "unexpected status: " + e.Status
	}
	return "unexpected status: " + strconv.Itoa(e.StatusCode)
}

// TaskError wraps any failure of a task with its URL and destination
type TaskError struct {
	URL  string
	Dest string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("download %s -> %s: %v", e.URL, e.Dest, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Result describes one finished run of Download
type Result struct {
	Bytes       int64 // bytes received by this run
	ResumedFrom int64 // staging bytes kept from a previous run
	Skipped     bool
	ContentKind string
}

// Downloader runs the transfer algorithm for a task.
// One Downloader may be shared by several goroutines as long as OnStart is safe for that.
type Downloader struct {
	Client   *http.Client
	Runtime  *types.RuntimeConfig
	Limiters *limiter.Registry

	// OnStart, when set, is called once the response has been accepted and
	// bytes are about to flow
	OnStart func(task *types.DownloadTask, resumeFrom int64)
}

// NewDownloader creates a Downloader. A nil client gets one tuned from runtime,
// a nil registry disables cross-task 429 coordination.
func NewDownloader(client *http.Client, runtime *types.RuntimeConfig, limiters *limiter.Registry) *Downloader {
	if client == nil {
		client = NewClient(runtime)
	}
	return &Downloader{
		Client:   client,
		Runtime:  runtime,
		Limiters: limiters,
	}
}

// NewClient builds an http.Client for long-running streaming transfers.
// Only the wait for response headers is bounded; bodies may stream for as long as they need.
func NewClient(runtime *types.RuntimeConfig) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          types.DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   runtime.GetWorkers() + 2,
		IdleConnTimeout:       types.DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   types.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: runtime.GetRequestTimeout(),
		ExpectContinueTimeout: types.DefaultExpectContinueTimeout,

		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,
	}
	return &http.Client{Transport: transport}
}

// Download transfers task.URL to task.FinalPath through task.TempPath.
//
// A destination that is already fresh is skipped with a nil error. Every other
// failure leaves the staging file in place and is returned as a *TaskError.
func (d *Downloader) Download(ctx context.Context, task *types.DownloadTask) (Result, error) {
	log := utils.Logger("transfer")

	if fresh, err := d.isFresh(task); err != nil {
		return Result{}, d.fail(task, err)
	} else if fresh {
		task.SetState(types.StateSkipped)
		log.Debug().Str("dest", task.FinalPath).Msg("destination is fresh, skipping")
		if d.Runtime.GetCleanStale() {
			if err := os.Remove(task.TempPath); err == nil {
				log.Info().Str("path", task.TempPath).Msg("removed stale staging file")
			}
		}
		return Result{Skipped: true}, nil
	}

	var rangeBegin int64
	if info, err := os.Stat(task.TempPath); err == nil && info.Mode().IsRegular() {
		rangeBegin = info.Size()
	}
	if rangeBegin > 0 {
		task.SetState(types.StateResuming)
	} else {
		task.SetState(types.StateFresh)
	}

	res, err := d.transfer(ctx, task, rangeBegin)
	if err != nil {
		return res, d.fail(task, err)
	}

	task.SetState(types.StateCompleted)
	if kind, err := utils.DetectKind(task.FinalPath); err == nil {
		res.ContentKind = kind
	}
	log.Debug().
		Str("dest", task.FinalPath).
		Int64("bytes", res.Bytes).
		Int64("resumed_from", res.ResumedFrom).
		Str("kind", res.ContentKind).
		Msg("published")
	return res, nil
}

func (d *Downloader) fail(task *types.DownloadTask, err error) error {
	terr := &TaskError{URL: task.URL, Dest: task.FinalPath, Err: err}
	task.SetState(types.StateFailed)
	task.SetError(terr)
	return terr
}

// isFresh reports whether the final file exists and is at least as new as the task's ModTime
func (d *Downloader) isFresh(task *types.DownloadTask) (bool, error) {
	info, err := os.Stat(task.FinalPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if task.ModTime.IsZero() {
		return true, nil
	}
	return !info.ModTime().Before(task.ModTime), nil
}

func (d *Downloader) transfer(ctx context.Context, task *types.DownloadTask, rangeBegin int64) (Result, error) {
	log := utils.Logger("transfer")
	res := Result{}

	var rl *limiter.RateLimiter
	if d.Limiters != nil {
		rl = d.Limiters.ForURL(task.URL)
		if _, err := rl.Wait(ctx); err != nil {
			return res, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return res, err
	}
	req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	if rangeBegin > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", rangeBegin))
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests && rl != nil {
		wait := rl.Handle429(resp)
		return res, &limiter.RateLimitError{Host: rl.Host, WaitDuration: wait}
	}

	// A complete staging file from a run that stopped before publishing
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && rangeBegin > 0 &&
		task.ExpectedSize > 0 && rangeBegin == task.ExpectedSize {
		log.Info().Str("dest", task.FinalPath).Msg("staging file already complete")
		res.ResumedFrom = rangeBegin
		return res, d.publish(task)
	}

	// 200 restarts, 206 appends; anything else carries no usable body
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return res, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if rl != nil {
		rl.ReportSuccess()
	}

	flags := os.O_WRONLY | os.O_CREATE
	if resp.StatusCode == http.StatusPartialContent && rangeBegin > 0 {
		flags |= os.O_APPEND
		res.ResumedFrom = rangeBegin
	} else {
		if rangeBegin > 0 {
			log.Warn().
				Str("url", task.URL).
				Int("status", resp.StatusCode).
				Int64("discarded", rangeBegin).
				Msg("server ignored range, restarting from zero")
		}
		flags |= os.O_TRUNC
	}

	out, err := os.OpenFile(task.TempPath, flags, 0o644)
	if err != nil {
		return res, fmt.Errorf("open staging file: %w", err)
	}

	if d.OnStart != nil {
		d.OnStart(task, res.ResumedFrom)
	}
	task.SetState(types.StateReceiving)

	n, copyErr := d.stream(out, resp.Body, task)
	res.Bytes = n
	closeErr := out.Close()
	if copyErr != nil {
		return res, copyErr
	}
	if closeErr != nil {
		return res, fmt.Errorf("close staging file: %w", closeErr)
	}

	return res, d.publish(task)
}

// stream copies body into out, counting every written chunk on the task
func (d *Downloader) stream(out *os.File, body io.Reader, task *types.DownloadTask) (int64, error) {
	buf := make([]byte, d.Runtime.GetBufferSize())
	var total int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("write error: %w", err)
			}
			total += int64(n)
			task.AddReceived(int64(n))
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("read error: %w", readErr)
		}
	}
}

// publish stamps the staging file and renames it onto the final path
func (d *Downloader) publish(task *types.DownloadTask) error {
	if !task.ModTime.IsZero() {
		if err := os.Chtimes(task.TempPath, task.ModTime, task.ModTime); err != nil {
			return fmt.Errorf("set modification time: %w", err)
		}
	}
	if err := os.Rename(task.TempPath, task.FinalPath); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
