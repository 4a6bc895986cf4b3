package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/shepherd/internal/service"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// TextReporter writes human-readable output to a writer.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter.
// If w is nil, defaults to os.Stdout. color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintHeader writes the initial banner.
func (r *TextReporter) PrintHeader(services int, grace time.Duration) {
	fmt.Fprintf(r.w, "shepherd — %d services, grace %s\n\n", services, grace)
}

// PrintPlan writes the launch plan without starting anything.
func (r *TextReporter) PrintPlan(specs []service.Spec) {
	fmt.Fprint(r.w, "Service group:\n\n")
	for i, s := range specs {
		fmt.Fprintf(r.w, "  %d. %s\n", i+1, s.ID)
		fmt.Fprintf(r.w, "     command: %s %s\n", s.Command, strings.Join(s.Args, " "))
		if s.Dir != "" {
			fmt.Fprintf(r.w, "     dir: %s\n", s.Dir)
		}
		if len(s.Env) > 0 {
			fmt.Fprintf(r.w, "     env: %d override(s)\n", len(s.Env))
		}
		fmt.Fprintln(r.w)
	}
}

// PrintStatus writes the final per-service status in spec order.
func (r *TextReporter) PrintStatus(specs []service.Spec, results map[string]*service.Result) {
	for _, spec := range specs {
		res := results[spec.ID]
		if res == nil {
			continue
		}
		fmt.Fprintln(r.w, r.formatResult(res))
	}
	fmt.Fprintln(r.w)
}

func (r *TextReporter) formatResult(res *service.Result) string {
	dur := res.Duration.Truncate(time.Millisecond)
	switch res.State {
	case service.StateExited:
		return fmt.Sprintf("  %s✓ %-12s %-15s %s  exit 0%s",
			r.c(colorGreen), "exited", res.ID, dur, r.c(colorReset))
	case service.StateFailed:
		return fmt.Sprintf("  %s✗ %-12s %-15s %s  %s%s",
			r.c(colorRed), "FAILED", res.ID, dur, res.Error, r.c(colorReset))
	case service.StateTerminated:
		detail := "stopped by supervisor"
		if res.Signal != "" {
			detail += " (" + res.Signal + ")"
		}
		return fmt.Sprintf("  %s– %-12s %-15s %s  %s%s",
			r.c(colorYellow), "terminated", res.ID, dur, detail, r.c(colorReset))
	case service.StateKilled:
		return fmt.Sprintf("  %s! %-12s %-15s %s  force-killed after grace period%s",
			r.c(colorRed), "killed", res.ID, dur, r.c(colorReset))
	case service.StateRunning:
		return fmt.Sprintf("  %s⠿ %-12s %-15s %s%s",
			r.c(colorCyan), "running", res.ID, time.Since(res.StartedAt).Truncate(time.Second), r.c(colorReset))
	default:
		return fmt.Sprintf("  %s─ %-12s %-15s%s", r.c(colorDim), "pending", res.ID, r.c(colorReset))
	}
}

// PrintSummary writes the final summary line for a completed run.
func (r *TextReporter) PrintSummary(report *service.GroupReport) {
	fmt.Fprintf(r.w, "%s--- Summary ---%s\n", r.c(colorCyan), r.c(colorReset))
	fmt.Fprintf(r.w, "Services: %d  ", report.TotalServices)
	fmt.Fprintf(r.w, "%sSucceeded: %d%s  ", r.c(colorGreen), report.Succeeded, r.c(colorReset))
	fmt.Fprintf(r.w, "%sFailed: %d%s  ", r.c(colorRed), report.Failed, r.c(colorReset))
	fmt.Fprintf(r.w, "%sTerminated: %d%s  ", r.c(colorYellow), report.Terminated, r.c(colorReset))
	if report.ForcedKills > 0 {
		fmt.Fprintf(r.w, "%sForced kills: %d%s  ", r.c(colorRed), report.ForcedKills, r.c(colorReset))
	}
	fmt.Fprintf(r.w, "Cause: %s  ", report.Cause)
	fmt.Fprintf(r.w, "Duration: %s\n", report.TotalDuration.Truncate(time.Millisecond))
}

func (r *TextReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}
