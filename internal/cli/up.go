package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/shepherd/internal/config"
	"github.com/ppiankov/shepherd/internal/history"
	"github.com/ppiankov/shepherd/internal/reporter"
	"github.com/ppiankov/shepherd/internal/service"
	"github.com/ppiankov/shepherd/internal/supervisor"
	"github.com/ppiankov/shepherd/internal/watcher"
)

func newUpCmd() *cobra.Command {
	var (
		grace     time.Duration
		logDir    string
		display   string
		watch     bool
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Launch the service group and supervise it until the first exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("grace") {
				cfg.GracePeriod = grace
			}
			if cmd.Flags().Changed("log-dir") {
				cfg.LogDir = logDir
			}
			if cmd.Flags().Changed("no-history") && noHistory {
				cfg.History = false
			}
			if err := config.ValidateDirs(cfg); err != nil {
				return err
			}
			return runUp(cfg, display, watch)
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", supervisor.DefaultGracePeriod, "time a signaled service gets before it is force-killed")
	cmd.Flags().StringVar(&logDir, "log-dir", ".shepherd", "directory for run dirs and captured service output")
	cmd.Flags().StringVar(&display, "display", "auto", "display mode: full (interactive TUI), minimal (live status), off, auto (detect TTY)")
	cmd.Flags().BoolVar(&watch, "watch", false, "restart the group when the config file changes")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this run in the history database")

	return cmd
}

// GroupFailedError indicates at least one service exited unexpectedly
// non-zero. main maps it to the failing service's exit code.
type GroupFailedError struct {
	Report *service.GroupReport
}

func (e *GroupFailedError) Error() string {
	if f := e.Report.FirstFailure(); f != nil {
		return fmt.Sprintf("service %q failed: %s", f.ID, f.Error)
	}
	return fmt.Sprintf("%d services failed", e.Report.Failed)
}

// ExitCode returns the process exit code for the failed run: the first
// failing service's own code when usable, otherwise 1.
func (e *GroupFailedError) ExitCode() int {
	if f := e.Report.FirstFailure(); f != nil && f.ExitCode >= 1 && f.ExitCode <= 255 {
		return f.ExitCode
	}
	return 1
}

func runUp(cfg *config.Config, display string, watch bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted — stopping service group...")
		cancel()
	}()

	isTTY := isTerminal()
	textRep := reporter.NewTextReporter(os.Stdout, isTTY)
	textRep.PrintHeader(len(cfg.Services), cfg.GracePeriod)

	displayMode := resolveDisplayMode(display, isTTY, watch)

	var report *service.GroupReport
	var err error
	if watch {
		report, err = runWatched(ctx, cfg, displayMode, textRep)
	} else {
		report, err = runOnce(ctx, cfg, displayMode, textRep)
	}
	if err != nil {
		return err
	}

	if !report.OK() {
		return &GroupFailedError{Report: report}
	}
	return nil
}

// resolveDisplayMode maps "auto" to a concrete mode and downgrades the full
// TUI in watch mode, where the screen is torn down on every restart.
func resolveDisplayMode(display string, isTTY, watch bool) string {
	if display == "" || display == "auto" {
		if !isTTY {
			return "off"
		}
		if watch {
			return "minimal"
		}
		return "full"
	}
	if display == "full" && watch {
		slog.Warn("full display is unavailable with --watch, using minimal")
		return "minimal"
	}
	return display
}

// runOnce supervises a single group lifecycle and finalizes its report.
func runOnce(ctx context.Context, cfg *config.Config, displayMode string, textRep *reporter.TextReporter) (*service.GroupReport, error) {
	runDir := filepath.Join(cfg.LogDir, time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}

	slog.Info("starting group", "services", len(cfg.Services), "grace", cfg.GracePeriod, "run_dir", runDir)

	sup := supervisor.New(cfg.Services, supervisor.Options{
		GracePeriod: cfg.GracePeriod,
		LogDir:      runDir,
	})
	if err := sup.Start(); err != nil {
		return nil, err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var live *reporter.LiveReporter
	var tuiProgram *tea.Program
	switch displayMode {
	case "full":
		tuiModel := reporter.NewTUIModel(cfg.Services, sup.Results, cancelRun)
		tuiProgram = tea.NewProgram(tuiModel, tea.WithAltScreen())
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				slog.Warn("TUI error", "error", err)
			}
		}()
	case "minimal":
		live = reporter.NewLiveReporter(os.Stdout, isTerminal(), cfg.Services, sup.Results)
		live.Start()
	default:
		// "off" or unrecognized — no live display
	}

	report := sup.Wait(runCtx)

	if tuiProgram != nil {
		tuiProgram.Quit()
		// join the TUI so the terminal is restored before the final status
		tuiProgram.Wait()
	}
	if live != nil {
		live.Stop()
	}

	report.RunID = uuid.NewString()
	report.ConfigFile = configFile

	textRep.PrintStatus(cfg.Services, report.Results)
	textRep.PrintSummary(report)

	reportPath := filepath.Join(runDir, "report.json")
	if err := reporter.WriteJSONReport(report, reportPath); err != nil {
		slog.Warn("failed to write report", "error", err)
	} else {
		fmt.Fprintf(os.Stdout, "\nReport: %s\n", reportPath)
	}

	if cfg.History {
		recordRun(cfg.LogDir, report)
	}

	return report, nil
}

// runWatched runs group lifecycles in a loop, restarting whenever the config
// file changes. A service exit or an interrupt ends the loop with that
// cycle's report, exactly as in a plain run.
func runWatched(ctx context.Context, cfg *config.Config, displayMode string, textRep *reporter.TextReporter) (*service.GroupReport, error) {
	w := watcher.New(configFile)

	g, gctx := errgroup.WithContext(ctx)
	watchCtx, stopWatcher := context.WithCancel(gctx)
	defer stopWatcher()
	g.Go(func() error { return w.Run(watchCtx) })

	type outcome struct {
		report *service.GroupReport
		err    error
	}

	for {
		runCtx, cancelRun := context.WithCancel(gctx)
		resCh := make(chan outcome, 1)
		go func() {
			r, err := runOnce(runCtx, cfg, displayMode, textRep)
			resCh <- outcome{report: r, err: err}
		}()

		select {
		case out := <-resCh:
			cancelRun()
			stopWatcher()
			if werr := g.Wait(); werr != nil && out.err == nil {
				slog.Warn("watcher stopped with error", "error", werr)
			}
			return out.report, out.err

		case <-w.Changes():
			slog.Info("config changed, restarting group", "file", configFile)
			cancelRun()
			out := <-resCh
			if out.err != nil {
				stopWatcher()
				_ = g.Wait()
				return nil, out.err
			}

			next, err := config.Load(configFile)
			if err != nil {
				slog.Error("reload config failed, keeping previous", "error", err)
			} else if err := config.ValidateDirs(next); err != nil {
				slog.Error("reloaded config invalid, keeping previous", "error", err)
			} else {
				next.GracePeriod = cfg.GracePeriod
				next.LogDir = cfg.LogDir
				next.History = cfg.History
				cfg = next
			}
		}
	}
}

// recordRun stores the report in the history database. Best effort: a
// history failure never fails the run.
func recordRun(logDir string, report *service.GroupReport) {
	store, err := history.Open(history.DefaultPath(logDir))
	if err != nil {
		slog.Warn("open history store", "error", err)
		return
	}
	defer func() { _ = store.Close() }()
	if err := store.Record(report); err != nil {
		slog.Warn("record run history", "error", err)
	}
}

// isTerminal checks if stdout is a terminal.
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
