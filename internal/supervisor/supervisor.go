package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/shepherd/internal/service"
)

// DefaultGracePeriod is how long a signaled service gets to exit voluntarily
// before it is force-killed.
const DefaultGracePeriod = 10 * time.Second

// Options holds supervisor parameters.
type Options struct {
	GracePeriod time.Duration
	LogDir      string // per-run directory for captured stdout/stderr; empty = discard
}

// SpawnError indicates a service could not be started. The launch is aborted
// and every already-started peer is killed before this is returned.
type SpawnError struct {
	ID  string
	Err error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("spawn service %q: %v", e.ID, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// exitEvent is posted by a reaper goroutine when its child is reaped.
type exitEvent struct {
	idx int
	err error // from cmd.Wait
	at  time.Time
}

// handle is the live binding between a spec and a running OS process.
type handle struct {
	spec   service.Spec
	cmd    *exec.Cmd
	result *service.Result
	done   bool
	forced bool // SIGKILL was sent after the grace period expired
}

// Supervisor launches a fixed group of services and tears the whole group
// down when any member exits or an external shutdown is requested.
//
// All handle mutation happens on the goroutine calling Start/Wait; reaper
// goroutines only post exit events to a channel. The mutex exists solely so
// Results can be polled by a live display while Wait is blocked.
type Supervisor struct {
	specs []service.Spec
	opts  Options

	mu           sync.Mutex
	handles      []*handle
	started      bool
	shuttingDown bool

	// exits carries child completions to the single Wait loop.
	// Buffered to len(specs) so reapers never block.
	exits chan exitEvent
}

// New creates a supervisor for the given ordered specs.
func New(specs []service.Spec, opts Options) *Supervisor {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return &Supervisor{specs: specs, opts: opts}
}

// Start spawns one process per spec, each in its own process group.
// On any spawn failure every already-started peer is killed and reaped
// before the error is returned, so a failed Start leaves no processes behind.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.started || s.shuttingDown {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started")
	}
	s.started = true
	s.mu.Unlock()

	if s.opts.LogDir != "" {
		if err := os.MkdirAll(s.opts.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	exits := make(chan exitEvent, len(s.specs))

	for i, spec := range s.specs {
		h, err := s.spawn(spec)
		if err != nil {
			s.abortLaunch(exits)
			return &SpawnError{ID: spec.ID, Err: err}
		}

		s.mu.Lock()
		s.handles = append(s.handles, h)
		s.mu.Unlock()

		idx := i
		cmd := h.cmd
		stdout, stderr := cmd.Stdout, cmd.Stderr
		go func() {
			err := cmd.Wait()
			closeLogWriter(stdout)
			closeLogWriter(stderr)
			exits <- exitEvent{idx: idx, err: err, at: time.Now()}
		}()
	}

	s.exits = exits
	return nil
}

func (s *Supervisor) spawn(spec service.Spec) (*handle, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	setupProcessGroup(cmd)

	res := &service.Result{ID: spec.ID, State: service.StatePending, ExitCode: -1}
	if s.opts.LogDir != "" {
		res.StdoutLog = logPath(s.opts.LogDir, spec.ID, "out")
		res.StderrLog = logPath(s.opts.LogDir, spec.ID, "err")
	}
	cmd.Stdout = newLogWriter(res.StdoutLog)
	cmd.Stderr = newLogWriter(res.StderrLog)

	slog.Debug("spawning service", "id", spec.ID, "command", spec.Command, "dir", spec.Dir)

	if err := cmd.Start(); err != nil {
		closeLogWriter(cmd.Stdout)
		closeLogWriter(cmd.Stderr)
		return nil, err
	}

	res.State = service.StateRunning
	res.StartedAt = time.Now()
	return &handle{spec: spec, cmd: cmd, result: res}, nil
}

// abortLaunch kills and reaps everything started so far. Called when a later
// spec fails to spawn; a partially started group is not a useful state.
func (s *Supervisor) abortLaunch(exits chan exitEvent) {
	s.mu.Lock()
	handles := s.handles
	s.shuttingDown = true
	s.mu.Unlock()

	for _, h := range handles {
		slog.Warn("killing service after launch abort", "id", h.spec.ID)
		killGroup(h.cmd)
		h.forced = true
	}
	for range handles {
		ev := <-exits
		s.record(ev, true)
	}
}

// Wait blocks until any service exits or ctx is cancelled, then signals the
// rest of the group, grants the grace period, force-kills stragglers and
// returns the aggregate report. It is the sole blocking wait point; child
// completions are multiplexed over a single channel.
func (s *Supervisor) Wait(ctx context.Context) *service.GroupReport {
	start := time.Now()
	cause := service.CauseServiceExit

	if s.exits == nil {
		report := &service.GroupReport{Timestamp: start, GracePeriod: s.opts.GracePeriod, Cause: cause, Results: map[string]*service.Result{}}
		report.Tally()
		return report
	}

	pending := s.pendingCount()
	if pending > 0 {
		select {
		case ev := <-s.exits:
			s.record(ev, false)
			pending--
		case <-ctx.Done():
			cause = service.CauseShutdown
		}
	}

	// completions already queued happened before teardown began; they are
	// voluntary exits, not terminations
	pending = s.drainExits(pending, false)

	s.mu.Lock()
	s.shuttingDown = true
	var remaining []*handle
	for _, h := range s.handles {
		if !h.done {
			remaining = append(remaining, h)
		}
	}
	s.mu.Unlock()

	if len(remaining) > 0 {
		slog.Info("stopping group", "cause", cause, "remaining", len(remaining), "grace", s.opts.GracePeriod)
	}
	for _, h := range remaining {
		signalGroup(h.cmd)
	}

	timer := time.NewTimer(s.opts.GracePeriod)
	defer timer.Stop()

	for pending > 0 {
		select {
		case ev := <-s.exits:
			s.record(ev, true)
			pending--
		case <-timer.C:
			// an exit queued just inside the window beats the force kill
			pending = s.drainExits(pending, true)
			s.mu.Lock()
			for _, h := range s.handles {
				if !h.done {
					slog.Warn("grace period expired, force-killing", "id", h.spec.ID)
					h.forced = true
					killGroup(h.cmd)
				}
			}
			s.mu.Unlock()
		}
	}

	report := &service.GroupReport{
		Timestamp:     start,
		GracePeriod:   s.opts.GracePeriod,
		Cause:         cause,
		Results:       s.Results(),
		TotalDuration: time.Since(start),
	}
	report.Tally()
	return report
}

// drainExits records every already-queued completion without blocking and
// returns the updated pending count.
func (s *Supervisor) drainExits(pending int, requested bool) int {
	for pending > 0 {
		select {
		case ev := <-s.exits:
			s.record(ev, requested)
			pending--
		default:
			return pending
		}
	}
	return pending
}

// record finalizes the result for one reaped child. requested marks exits
// that happened after the supervisor began tearing the group down.
func (s *Supervisor) record(ev exitEvent, requested bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.handles[ev.idx]
	h.done = true
	res := h.result
	res.EndedAt = ev.at
	res.Duration = ev.at.Sub(res.StartedAt)
	res.Terminated = requested
	res.Forced = h.forced

	code, sig := exitStatus(h.cmd, ev.err)
	res.ExitCode = code
	res.Signal = sig

	switch {
	case requested && h.forced:
		res.State = service.StateKilled
		res.Error = "did not exit within grace period"
	case code == 0 && sig == "":
		// clean exit, whether it beat the stop signal or honored it
		res.State = service.StateExited
	case requested:
		res.State = service.StateTerminated
	default:
		res.State = service.StateFailed
		if sig != "" {
			res.Error = fmt.Sprintf("terminated by signal %s", sig)
		} else {
			res.Error = fmt.Sprintf("exited with code %d", code)
		}
	}

	slog.Debug("service reaped", "id", res.ID, "state", res.State, "code", code, "signal", sig)
}

// Results returns a copy of the current per-service results, keyed by ID.
// Safe to call from a display goroutine while Wait is running.
func (s *Supervisor) Results() map[string]*service.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*service.Result, len(s.handles))
	for _, h := range s.handles {
		cpy := *h.result
		cpy.StateName = cpy.State.String()
		out[h.spec.ID] = &cpy
	}
	return out
}

func (s *Supervisor) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handles {
		if !h.done {
			n++
		}
	}
	return n
}

// mergeEnv appends overrides to the parent environment in sorted key order.
func mergeEnv(parent []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return parent
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, len(parent), len(parent)+len(keys))
	copy(env, parent)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// closeLogWriter closes the underlying file if the writer is an *os.File.
func closeLogWriter(w io.Writer) {
	if f, ok := w.(*os.File); ok {
		_ = f.Close()
	}
}
