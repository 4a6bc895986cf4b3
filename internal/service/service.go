package service

import (
	"encoding/json"
	"time"
)

// State represents the lifecycle state of a supervised service.
type State int

const (
	StatePending State = iota
	StateRunning
	StateExited     // exited on its own with code 0
	StateFailed     // exited on its own with non-zero code
	StateTerminated // exited after the supervisor sent the stop signal
	StateKilled     // did not honor the stop signal within the grace period
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateExited:
		return "EXITED"
	case StateFailed:
		return "FAILED"
	case StateTerminated:
		return "TERMINATED"
	case StateKilled:
		return "KILLED"
	default:
		return "UNKNOWN"
	}
}

// ParseState maps a serialized state name back to its State.
func ParseState(name string) State {
	switch name {
	case "RUNNING":
		return StateRunning
	case "EXITED":
		return StateExited
	case "FAILED":
		return StateFailed
	case "TERMINATED":
		return StateTerminated
	case "KILLED":
		return StateKilled
	default:
		return StatePending
	}
}

// Cause identifies what initiated the group teardown.
const (
	CauseServiceExit = "service-exit" // a member exited first
	CauseShutdown    = "shutdown"     // external shutdown request (signal, watch restart)
)

// Spec is the immutable description of a launchable service.
// Built once from configuration; never mutated after the group starts.
type Spec struct {
	ID      string            `yaml:"id" json:"id"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Result captures the final outcome of a single supervised service.
type Result struct {
	ID        string        `json:"id"`
	State     State         `json:"-"`
	StateName string        `json:"state"`
	ExitCode  int           `json:"exit_code"` // -1 when the process died on a signal
	Signal    string        `json:"signal,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`

	// Terminated is true when the supervisor requested the exit; Forced is
	// true when the grace period expired and the process was killed.
	Terminated bool `json:"terminated,omitempty"`
	Forced     bool `json:"forced,omitempty"`

	Error     string `json:"error,omitempty"`
	StdoutLog string `json:"stdout_log,omitempty"`
	StderrLog string `json:"stderr_log,omitempty"`
}

// UnmarshalJSON restores the State enum from the serialized state name, so
// reports read back from disk or the history store keep their outcomes.
func (r *Result) UnmarshalJSON(data []byte) error {
	type plain Result
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Result(p)
	r.State = ParseState(r.StateName)
	return nil
}

// GroupReport is the aggregate outcome of one supervised run.
type GroupReport struct {
	RunID       string             `json:"run_id"`
	Timestamp   time.Time          `json:"timestamp"`
	ConfigFile  string             `json:"config_file,omitempty"`
	GracePeriod time.Duration      `json:"grace_period"`
	Cause       string             `json:"cause"`
	Results     map[string]*Result `json:"results"`

	TotalServices int           `json:"total_services"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	Terminated    int           `json:"terminated"`
	ForcedKills   int           `json:"forced_kills"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Tally recomputes the summary counters from the per-service results.
func (r *GroupReport) Tally() {
	r.TotalServices = len(r.Results)
	r.Succeeded, r.Failed, r.Terminated, r.ForcedKills = 0, 0, 0, 0
	for _, res := range r.Results {
		res.StateName = res.State.String()
		switch res.State {
		case StateExited:
			r.Succeeded++
		case StateFailed:
			r.Failed++
		case StateTerminated:
			r.Terminated++
		case StateKilled:
			r.Terminated++
			r.ForcedKills++
		}
	}
}

// OK reports whether the run counts as a success: every service either
// exited zero on its own or was stopped by the supervisor. Exits the
// supervisor did not ask for and that carried a non-zero status fail the run.
func (r *GroupReport) OK() bool {
	return r.Failed == 0
}

// FirstFailure returns the result of the earliest unexpected non-zero exit,
// or nil when the run succeeded. Used to propagate a meaningful exit code.
func (r *GroupReport) FirstFailure() *Result {
	var first *Result
	for _, res := range r.Results {
		if res.State != StateFailed {
			continue
		}
		if first == nil || res.EndedAt.Before(first.EndedAt) {
			first = res
		}
	}
	return first
}
