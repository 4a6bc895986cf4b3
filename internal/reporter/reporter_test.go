package reporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/shepherd/internal/service"
)

func sampleSpecs() []service.Spec {
	return []service.Spec{
		{ID: "media", Command: "livekit-server", Args: []string{"--dev"}},
		{ID: "backend", Command: "uv", Args: []string{"run", "src/agent.py", "dev"}},
		{ID: "frontend", Command: "pnpm", Args: []string{"dev"}},
	}
}

func sampleResults() map[string]*service.Result {
	return map[string]*service.Result{
		"media":    {ID: "media", State: service.StateTerminated, Terminated: true, Signal: "terminated", Duration: 2 * time.Second},
		"backend":  {ID: "backend", State: service.StateKilled, Terminated: true, Forced: true, Duration: 12 * time.Second},
		"frontend": {ID: "frontend", State: service.StateFailed, ExitCode: 1, Error: "exited with code 1", Duration: 2 * time.Second},
	}
}

func TestTextReporter_PrintStatus(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextReporter(&buf, false)
	r.PrintStatus(sampleSpecs(), sampleResults())

	out := buf.String()
	for _, want := range []string{
		"terminated", "media", "stopped by supervisor",
		"killed", "backend", "force-killed after grace period",
		"FAILED", "frontend", "exited with code 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("color disabled but ANSI codes present")
	}
}

func TestTextReporter_PrintSummary(t *testing.T) {
	report := &service.GroupReport{
		Cause:         service.CauseServiceExit,
		Results:       sampleResults(),
		TotalDuration: 3 * time.Second,
	}
	report.Tally()

	var buf bytes.Buffer
	NewTextReporter(&buf, false).PrintSummary(report)

	out := buf.String()
	for _, want := range []string{"Services: 3", "Failed: 1", "Terminated: 2", "Forced kills: 1", "Cause: service-exit"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestTextReporter_PrintPlan(t *testing.T) {
	var buf bytes.Buffer
	NewTextReporter(&buf, false).PrintPlan(sampleSpecs())

	out := buf.String()
	for _, want := range []string{"media", "livekit-server --dev", "uv run src/agent.py dev", "pnpm dev"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q:\n%s", want, out)
		}
	}
}

func TestLiveReporter_Render(t *testing.T) {
	specs := sampleSpecs()
	results := map[string]*service.Result{
		"media":   {ID: "media", State: service.StateRunning, StartedAt: time.Now()},
		"backend": {ID: "backend", State: service.StateExited, Duration: time.Second},
	}

	lr := NewLiveReporter(&bytes.Buffer{}, false, specs, func() map[string]*service.Result { return results })
	lines := lr.Render(results)

	joined := strings.Join(lines, "\n")
	for _, want := range []string{"3 services", "running", "media", "exited", "backend", "pending", "frontend", "1 running"} {
		if !strings.Contains(joined, want) {
			t.Errorf("live render missing %q:\n%s", want, joined)
		}
	}
}

func TestWriteJSONReport(t *testing.T) {
	report := &service.GroupReport{
		RunID:   "run-1",
		Cause:   service.CauseShutdown,
		Results: sampleResults(),
	}
	report.Tally()

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteJSONReport(report, path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var back service.GroupReport
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if back.RunID != "run-1" || back.Cause != service.CauseShutdown {
		t.Errorf("roundtrip mismatch: %+v", back)
	}
	if back.Results["frontend"].StateName != "FAILED" {
		t.Errorf("state name not serialized: %+v", back.Results["frontend"])
	}
	if back.Results["frontend"].State != service.StateFailed {
		t.Errorf("state not restored on unmarshal: %+v", back.Results["frontend"])
	}
}
