// Package config locates the application directories and loads user settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/canvas-sync/canvas-sync/internal/engine/types"
)

const (
	AppName          = "canvas-sync"
	SettingsFileName = "settings.yaml"

	// DefaultTmpSuffix names staging files <dest>.canvas-sync
	DefaultTmpSuffix = "canvas-sync"

	MaxWorkers = 64
)

// Settings is the on-disk configuration
type Settings struct {
	General  GeneralSettings  `yaml:"general"`
	Network  NetworkSettings  `yaml:"network"`
	Progress ProgressSettings `yaml:"progress"`
}

type GeneralSettings struct {
	DefaultDownloadDir string `yaml:"default_download_dir"`
	Workers            int    `yaml:"workers"`
	TmpSuffix          string `yaml:"tmp_suffix"`
	// CleanStale removes staging files left next to destinations that are already fresh
	CleanStale bool `yaml:"clean_stale"`
}

type NetworkSettings struct {
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type ProgressSettings struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
	SpeedWindow    time.Duration `yaml:"speed_window"`
}

func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			DefaultDownloadDir: ".",
			Workers:            types.DefaultWorkers,
			TmpSuffix:          DefaultTmpSuffix,
		},
		Network: NetworkSettings{
			UserAgent:      types.DefaultUserAgent,
			RequestTimeout: types.RequestTimeout,
		},
		Progress: ProgressSettings{
			SampleInterval: types.SampleInterval,
			SpeedWindow:    types.SpeedWindow,
		},
	}
}

// GetAppDir returns $XDG_CONFIG_HOME/canvas-sync, falling back to the OS config dir
func GetAppDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

func GetSettingsPath() string {
	return filepath.Join(GetAppDir(), SettingsFileName)
}

// EnsureDirs creates the app and logs directories
func EnsureDirs() error {
	for _, dir := range []string{GetAppDir(), GetLogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// LoadSettings reads settings from path, or from the default location when
// path is empty. A missing file yields the defaults. Keys absent from the
// file keep their default values.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		path = GetSettingsPath()
	}

	settings := DefaultSettings()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes settings as YAML, creating parent directories
func SaveSettings(path string, s *Settings) error {
	if path == "" {
		path = GetSettingsPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Settings) Validate() error {
	if s.General.Workers < 0 || s.General.Workers > MaxWorkers {
		return fmt.Errorf("general.workers must be between 0 (default) and %d, got %d", MaxWorkers, s.General.Workers)
	}
	if s.Network.RequestTimeout < 0 {
		return errors.New("network.request_timeout must not be negative")
	}
	if s.Progress.SampleInterval < 0 || s.Progress.SpeedWindow < 0 {
		return errors.New("progress intervals must not be negative")
	}
	if s.Progress.SpeedWindow > 0 && s.Progress.SampleInterval > 0 && s.Progress.SpeedWindow < 2*s.Progress.SampleInterval {
		return errors.New("progress.speed_window must cover at least two sample intervals")
	}
	return nil
}

// ToRuntimeConfig converts settings into the engine's runtime configuration
func (s *Settings) ToRuntimeConfig() *types.RuntimeConfig {
	return &types.RuntimeConfig{
		Workers:        s.General.Workers,
		TmpSuffix:      s.General.TmpSuffix,
		CleanStale:     s.General.CleanStale,
		UserAgent:      s.Network.UserAgent,
		RequestTimeout: s.Network.RequestTimeout,
		SampleInterval: s.Progress.SampleInterval,
		SpeedWindow:    s.Progress.SpeedWindow,
	}
}
