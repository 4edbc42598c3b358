package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/canvas-sync/canvas-sync/internal/config"
	"github.com/canvas-sync/canvas-sync/internal/download"
	"github.com/canvas-sync/canvas-sync/internal/tui"
	"github.com/canvas-sync/canvas-sync/internal/utils"
)

// getOptions holds the resolved flags of one get invocation
type getOptions struct {
	OutputDir  string
	BatchFile  string
	Workers    int
	CleanStale bool
	Quiet      bool
	TUI        bool // force the dashboard even when stdout is not a terminal
	URLs       []string
}

var getCmd = &cobra.Command{
	Use:   "get [url...]",
	Short: "Download files into the output directory",
	Long: `Download one or more URLs into the output directory.

Use --batch to read downloads from a file: either plain text with one URL per
line, or a YAML list of entries with url, path, size and mtime keys.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := getOptions{URLs: args}
		opts.OutputDir, _ = cmd.Flags().GetString("output")
		opts.BatchFile, _ = cmd.Flags().GetString("batch")
		opts.Workers, _ = cmd.Flags().GetInt("workers")
		opts.CleanStale, _ = cmd.Flags().GetBool("clean-stale")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")
		opts.TUI, _ = cmd.Flags().GetBool("tui")

		if len(opts.URLs) == 0 && opts.BatchFile == "" {
			return fmt.Errorf("requires at least one URL argument or --batch flag")
		}

		s := settings
		if s == nil {
			s = config.DefaultSettings()
		}
		return runGet(cmd.OutOrStdout(), s, opts)
	},
}

func init() {
	getCmd.Flags().StringP("output", "o", "", "output directory (default from settings)")
	getCmd.Flags().StringP("batch", "b", "", "file listing downloads (plain URLs or YAML entries)")
	getCmd.Flags().IntP("workers", "w", 0, "number of concurrent downloads (default from settings)")
	getCmd.Flags().Bool("clean-stale", false, "remove staging files next to destinations that are already up to date")
	getCmd.Flags().BoolP("quiet", "q", false, "only print errors")
	getCmd.Flags().Bool("tui", false, "show the interactive dashboard (default when stdout is a terminal)")
}

// runGet downloads every requested entry and returns an error when any failed
func runGet(out io.Writer, s *config.Settings, opts getOptions) error {
	var entries []batchEntry
	for _, u := range opts.URLs {
		entries = append(entries, batchEntry{URL: u})
	}
	if opts.BatchFile != "" {
		batch, err := readBatchFile(opts.BatchFile)
		if err != nil {
			return err
		}
		entries = append(entries, batch...)
	}
	entries = dedupeEntries(entries)

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = s.General.DefaultDownloadDir
	}

	lock, locked, err := AcquireLock(outDir)
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("another canvas-sync is already writing to %s", outDir)
	}
	defer lock.Release()

	runtime := s.ToRuntimeConfig()
	if opts.Workers > 0 {
		runtime.Workers = opts.Workers
	}
	if opts.CleanStale {
		runtime.CleanStale = true
	}

	var observer download.Observer
	var dashboard chan any
	switch {
	case opts.Quiet:
	case opts.TUI || isTerminal(out):
		dashboard = make(chan any, tui.EventBuffer)
		observer = download.ChannelObserver(dashboard)
	default:
		observer = tui.NewProgressReporter(out, tui.DefaultStatsInterval)
	}
	m := download.NewManager(download.Options{Runtime: runtime, Observer: observer})

	var rejected int
	for _, e := range entries {
		dest, err := resolveDest(outDir, e)
		if err == nil {
			_, err = m.Add(e.URL, dest, e.Size, e.MTime)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", e.URL, err)
			rejected++
		}
	}

	log := utils.Logger("cli")
	log.Info().Str("output", outDir).Int64("tasks", m.Submitted()).Int("workers", runtime.GetWorkers()).Msg("sync starting")

	if dashboard != nil {
		if err := runDashboard(out, m, dashboard, outDir, lock); err != nil {
			return err
		}
	} else {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer func() {
			signal.Stop(sigChan)
			close(sigChan)
		}()
		go func() {
			if _, ok := <-sigChan; ok {
				interrupt(lock)
			}
		}()

		if err := m.Start(); err != nil {
			return err
		}
		m.Stop()
	}

	failed := m.Stats(time.Now()).Failed + rejected
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(entries))
	}
	return nil
}

// runDashboard drives the manager under the interactive dashboard until the
// final stats snapshot arrives
func runDashboard(out io.Writer, m *download.Manager, events chan any, outDir string, lock *InstanceLock) error {
	if err := m.Start(); err != nil {
		return err
	}
	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(events)
		close(stopped)
	}()

	progOpts := []tea.ProgramOption{tea.WithOutput(out)}
	if !isTerminal(os.Stdin) {
		progOpts = append(progOpts, tea.WithInput(nil))
	}
	p := tea.NewProgram(tui.NewRootModel(events, outDir), progOpts...)
	final, err := p.Run()
	if errors.Is(err, tea.ErrInterrupted) {
		interrupt(lock)
	}
	if err != nil {
		// Workers block on task events; keep draining so they can finish
		go func() {
			for range events {
			}
		}()
		<-stopped
		return fmt.Errorf("dashboard: %w", err)
	}
	if rm, ok := final.(tui.RootModel); ok && rm.Interrupted() {
		interrupt(lock)
	}
	<-stopped
	return nil
}

// interrupt exits without touching staging files; the next run resumes them
func interrupt(lock *InstanceLock) {
	fmt.Fprintln(os.Stderr, "\nInterrupted. Partial downloads are kept and resume on the next run.")
	lock.Release()
	utils.CloseDebug()
	os.Exit(130)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
