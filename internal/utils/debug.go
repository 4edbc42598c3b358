package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu   sync.RWMutex
	logger  = zerolog.Nop()
	logFile *os.File
)

// ConfigureDebug routes logs to a debug-<timestamp>.log file in logsDir.
// When console is true, logs are also written to stderr and the level drops to debug.
func ConfigureDebug(logsDir string, console bool) error {
	var writers []io.Writer

	if logsDir != "" {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		name := fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405"))
		f, err := os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open debug log: %w", err)
		}
		writers = append(writers, f)

		logMu.Lock()
		if logFile != nil {
			logFile.Close()
		}
		logFile = f
		logMu.Unlock()
	}
	if console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}

	level := zerolog.InfoLevel
	if console {
		level = zerolog.DebugLevel
	}
	SetLogOutput(zerolog.MultiLevelWriter(writers...), level)
	return nil
}

// SetLogOutput replaces the log sink. Tests use it to capture output.
func SetLogOutput(w io.Writer, level zerolog.Level) {
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	logMu.Lock()
	logger = l
	logMu.Unlock()
}

// CloseDebug flushes and closes the debug log file, if any
func CloseDebug() error {
	logMu.Lock()
	defer logMu.Unlock()
	logger = zerolog.Nop()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// Logger returns a logger tagged with the component name
func Logger(component string) *zerolog.Logger {
	logMu.RLock()
	l := logger.With().Str("component", component).Logger()
	logMu.RUnlock()
	return &l
}

// Debug writes a formatted debug line
func Debug(format string, args ...any) {
	logMu.RLock()
	l := logger
	logMu.RUnlock()
	l.Debug().Msgf(format, args...)
}
