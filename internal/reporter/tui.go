package reporter

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/shepherd/internal/service"
)

var spinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// TUI styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // cyan
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	stopStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type tickMsg time.Time

// TUIModel is the Bubbletea model for the shepherd live display.
type TUIModel struct {
	specs      []service.Spec
	getResults func() map[string]*service.Result
	cancelRun  func() // called on 'q' to shut the group down

	results map[string]*service.Result
	frame   int
	width   int
	height  int
}

// NewTUIModel creates a new TUI model.
func NewTUIModel(specs []service.Spec, getResults func() map[string]*service.Result, cancelRun func()) TUIModel {
	return TUIModel{
		specs:      specs,
		getResults: getResults,
		cancelRun:  cancelRun,
		results:    make(map[string]*service.Result),
	}
}

// Init implements tea.Model.
func (m TUIModel) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelRun != nil {
				m.cancelRun()
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.results = m.getResults()
		m.frame++
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// View implements tea.Model.
func (m TUIModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	var running, down int
	for _, res := range m.results {
		if res.State == service.StateRunning {
			running++
		} else if res.State != service.StatePending {
			down++
		}
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf("shepherd — %d services", len(m.specs))))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  %s",
		runStyle.Render(fmt.Sprintf("%d running", running)),
		dimStyle.Render(fmt.Sprintf("%d down", down))))
	b.WriteString("\n\n")

	spinner := spinnerChars[m.frame%len(spinnerChars)]
	used := 3
	for _, spec := range m.specs {
		b.WriteString(m.fmtService(spec, m.results[spec.ID], spinner))
		b.WriteString("\n")
		used++
	}

	// pad to fill screen
	for i := used; i < m.height-1; i++ {
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("  q: stop group and quit"))

	return b.String()
}

func (m TUIModel) fmtService(spec service.Spec, res *service.Result, spinner string) string {
	cmdLine := spec.Command
	if len(spec.Args) > 0 {
		cmdLine += " " + strings.Join(spec.Args, " ")
	}
	if len(cmdLine) > 40 {
		cmdLine = cmdLine[:40] + "..."
	}

	if res == nil || res.State == service.StatePending {
		return dimStyle.Render(fmt.Sprintf("  ─ %-12s %-15s %s", "pending", spec.ID, cmdLine))
	}

	switch res.State {
	case service.StateRunning:
		elapsed := time.Since(res.StartedAt).Truncate(time.Second)
		return runStyle.Render(fmt.Sprintf("  %s %-12s %-15s %-43s %s", spinner, "running", res.ID, cmdLine, elapsed))
	case service.StateExited:
		return doneStyle.Render(fmt.Sprintf("  ✓ %-12s %-15s %-43s %s", "exited", res.ID, cmdLine, res.Duration.Truncate(time.Second)))
	case service.StateFailed:
		errMsg := res.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:40] + "..."
		}
		return failedStyle.Render(fmt.Sprintf("  ✗ %-12s %-15s %-43s %s", "FAILED", res.ID, cmdLine, errMsg))
	case service.StateTerminated:
		return stopStyle.Render(fmt.Sprintf("  – %-12s %-15s %s", "terminated", res.ID, cmdLine))
	case service.StateKilled:
		return failedStyle.Render(fmt.Sprintf("  ! %-12s %-15s %s", "killed", res.ID, cmdLine))
	default:
		return dimStyle.Render(fmt.Sprintf("  ─ %-12s %-15s %s", "pending", spec.ID, cmdLine))
	}
}
