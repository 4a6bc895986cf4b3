package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ppiankov/shepherd/internal/service"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// LiveReporter provides a live-updating terminal display while the group runs.
type LiveReporter struct {
	w          io.Writer
	color      bool
	specs      []service.Spec
	getResults func() map[string]*service.Result
	stop       chan struct{}
	done       chan struct{}
	lastLines  int
	frame      int
	mu         sync.Mutex
}

// NewLiveReporter creates a live reporter that polls results via getResults.
func NewLiveReporter(w io.Writer, color bool, specs []service.Spec, getResults func() map[string]*service.Result) *LiveReporter {
	return &LiveReporter{
		w:          w,
		color:      color,
		specs:      specs,
		getResults: getResults,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the periodic refresh loop.
func (lr *LiveReporter) Start() {
	go lr.loop()
}

// Stop halts the refresh loop and clears the live display.
func (lr *LiveReporter) Stop() {
	close(lr.stop)
	<-lr.done
	lr.clearLastFrame()
}

func (lr *LiveReporter) loop() {
	defer close(lr.done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-lr.stop:
			return
		case <-ticker.C:
			lr.render()
		}
	}
}

func (lr *LiveReporter) clearLastFrame() {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if lr.lastLines > 0 {
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
		for i := 0; i < lr.lastLines; i++ {
			fmt.Fprintf(lr.w, "\033[K\n")
		}
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
	}
}

func (lr *LiveReporter) render() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	results := lr.getResults()
	lines := lr.buildLines(results)

	// move cursor up to overwrite previous frame
	if lr.lastLines > 0 {
		fmt.Fprintf(lr.w, "\033[%dA", lr.lastLines)
	}

	for _, line := range lines {
		fmt.Fprintf(lr.w, "\033[K%s\n", line)
	}

	lr.lastLines = len(lines)
	lr.frame++
}

// Render produces the display lines for a given results snapshot.
// Exported for testing.
func (lr *LiveReporter) Render(results map[string]*service.Result) []string {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.buildLines(results)
}

func (lr *LiveReporter) buildLines(results map[string]*service.Result) []string {
	spinner := spinnerFrames[lr.frame%len(spinnerFrames)]

	lines := []string{fmt.Sprintf("shepherd — %d services", len(lr.specs)), ""}

	var running, down int
	for _, spec := range lr.specs {
		res := results[spec.ID]
		if res == nil {
			lines = append(lines, fmt.Sprintf("  %s─ %-12s %s%s", lr.c(colorDim), "pending", spec.ID, lr.c(colorReset)))
			continue
		}
		switch res.State {
		case service.StateRunning:
			running++
			elapsed := time.Since(res.StartedAt).Truncate(time.Second)
			lines = append(lines, fmt.Sprintf("  %s%s %-12s %-15s %s%s",
				lr.c(colorCyan), spinner, "running", res.ID, elapsed, lr.c(colorReset)))
		case service.StateExited:
			down++
			lines = append(lines, fmt.Sprintf("  %s✓ %-12s %-15s %s%s",
				lr.c(colorGreen), "exited", res.ID, res.Duration.Truncate(time.Second), lr.c(colorReset)))
		case service.StateFailed:
			down++
			lines = append(lines, fmt.Sprintf("  %s✗ %-12s %-15s %s%s",
				lr.c(colorRed), "FAILED", res.ID, res.Error, lr.c(colorReset)))
		case service.StateTerminated:
			down++
			lines = append(lines, fmt.Sprintf("  %s– %-12s %-15s stopped%s",
				lr.c(colorYellow), "terminated", res.ID, lr.c(colorReset)))
		case service.StateKilled:
			down++
			lines = append(lines, fmt.Sprintf("  %s! %-12s %-15s force-killed%s",
				lr.c(colorRed), "killed", res.ID, lr.c(colorReset)))
		default:
			lines = append(lines, fmt.Sprintf("  %s─ %-12s %s%s", lr.c(colorDim), "pending", spec.ID, lr.c(colorReset)))
		}
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("  %s%d running%s, %d down", lr.c(colorCyan), running, lr.c(colorReset), down))

	return lines
}

func (lr *LiveReporter) c(code string) string {
	if !lr.color {
		return ""
	}
	return code
}
