// Package render writes command output either as a human-readable line
// stream or as a single JSON object.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"verifyctl/internal/verify"
	"verifyctl/pkg/api"

	"github.com/charmbracelet/lipgloss"
)

// Sink is where a command writes everything it shows the user.
type Sink interface {
	verify.Reporter

	Outcome(o *verify.Outcome)
	Run(run api.RunResponse)
	Logs(runID string, lines []api.LogLine)
	Result(result api.RunResult)
	Balance(credits float64)
	Health(url, tokenFingerprint string, latency time.Duration)
	Warn(msg string)
	Error(err error, runID string)
}

type styles struct {
	bold    lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	pending lipgloss.Style
	running lipgloss.Style
	warn    lipgloss.Style
	accent  lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		bold:    r.NewStyle().Bold(true),
		dim:     r.NewStyle().Foreground(lipgloss.Color("243")),
		success: r.NewStyle().Foreground(lipgloss.Color("46")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")),
		pending: r.NewStyle().Foreground(lipgloss.Color("45")),
		running: r.NewStyle().Foreground(lipgloss.Color("220")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("208")),
		accent:  r.NewStyle().Foreground(lipgloss.Color("51")),
	}
}

// Human prints progress and results to out and errors to errOut.
type Human struct {
	out    io.Writer
	errOut io.Writer
	st     styles
	errSt  styles
}

// NewHuman creates a human sink. Colors are only emitted when the writer is a terminal.
func NewHuman(out, errOut io.Writer) *Human {
	return &Human{
		out:    out,
		errOut: errOut,
		st:     newStyles(lipgloss.NewRenderer(out)),
		errSt:  newStyles(lipgloss.NewRenderer(errOut)),
	}
}

func (h *Human) Submitted(runID string, creditsEstimated float64) {
	fmt.Fprintf(h.out, "%s Submitted run %s %s\n",
		h.st.pending.Render("◯"), h.st.bold.Render(runID),
		h.st.dim.Render(fmt.Sprintf("(estimated credits: %.2f)", creditsEstimated)))
}

func (h *Human) StatusChanged(run api.RunResponse) {
	fmt.Fprintf(h.out, "%s Status: %s\n", h.statusIcon(run.Status), h.colorizeStatus(run.Status))
}

func (h *Human) LogLine(line api.LogLine) {
	var b strings.Builder
	if !line.Timestamp.IsZero() {
		b.WriteString(h.st.dim.Render(line.Timestamp.Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(h.levelStyle(line.Level).Render(fmt.Sprintf("%-5s", strings.ToUpper(string(line.Level)))))
	b.WriteString(" ")
	b.WriteString(line.Message)
	fmt.Fprintln(h.out, b.String())
}

func (h *Human) Outcome(o *verify.Outcome) {
	fmt.Fprintln(h.out, "──────────────────────────────")

	switch {
	case o.Status == api.StatusRejected:
		header := fmt.Sprintf("Run %s rejected", o.RunID)
		if o.ReasonCode != "" {
			header += fmt.Sprintf(" (%s)", o.ReasonCode)
		}
		fmt.Fprintf(h.out, "%s %s\n", h.st.failure.Render("✗"), h.st.bold.Render(header))
		fmt.Fprintf(h.out, "  %s\n", o.Message)
		return
	case o.Passed:
		fmt.Fprintf(h.out, "%s %s %s\n", h.st.success.Render("✓"),
			h.st.bold.Render(fmt.Sprintf("Run %s passed", o.RunID)),
			h.st.accent.Render("("+formatDuration(time.Duration(o.DurationMs)*time.Millisecond)+")"))
	default:
		fmt.Fprintf(h.out, "%s %s %s\n", h.st.failure.Render("✗"),
			h.st.bold.Render(fmt.Sprintf("Run %s %s", o.RunID, o.Status)),
			h.st.accent.Render("("+formatDuration(time.Duration(o.DurationMs)*time.Millisecond)+")"))
	}

	if o.Result != nil {
		h.printResult(*o.Result)
	}
}

func (h *Human) Run(run api.RunResponse) {
	fmt.Fprintf(h.out, "%s %s\n", h.statusIcon(run.Status), h.st.bold.Render("Run Details"))
	fmt.Fprintln(h.out, "──────────────────────────────")
	fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("ID:         "), run.RunID)
	fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Status:     "), h.colorizeStatus(run.Status))
	if run.ReasonCode != "" {
		fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Reason:     "), h.st.failure.Render(string(run.ReasonCode)))
	}
	fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Started:    "), formatTime(run.StartedAt))
	fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Finished:   "), formatTime(run.CompletedAt))

	switch {
	case run.DurationMs != nil:
		fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Duration:   "), formatDuration(time.Duration(*run.DurationMs)*time.Millisecond))
	case run.StartedAt != nil && run.CompletedAt != nil:
		fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Duration:   "), formatDuration(run.CompletedAt.Sub(*run.StartedAt)))
	}
}

func (h *Human) Logs(_ string, lines []api.LogLine) {
	if len(lines) == 0 {
		fmt.Fprintln(h.out, h.st.dim.Render("(no log lines)"))
		return
	}
	for _, line := range lines {
		h.LogLine(line)
	}
}

func (h *Human) Result(result api.RunResult) {
	icon, verdict := h.st.success.Render("✓"), "passed"
	if !result.Passed {
		icon, verdict = h.st.failure.Render("✗"), "failed"
	}
	fmt.Fprintf(h.out, "%s %s\n", icon, h.st.bold.Render(fmt.Sprintf("Run %s %s", result.RunID, verdict)))
	h.printResult(result)
}

func (h *Human) printResult(result api.RunResult) {
	if result.Summary != "" {
		fmt.Fprintf(h.out, "  %s %s\n", h.st.dim.Render("Summary:"), result.Summary)
	}
	for _, check := range result.Checks {
		icon := h.st.success.Render("✓")
		if !check.Passed {
			icon = h.st.failure.Render("✗")
		}
		if check.Message != "" {
			fmt.Fprintf(h.out, "  %s %s %s\n", icon, check.Name, h.st.dim.Render("- "+check.Message))
		} else {
			fmt.Fprintf(h.out, "  %s %s\n", icon, check.Name)
		}
	}
	fmt.Fprintf(h.out, "  %s %.2f\n", h.st.dim.Render("Credits used:"), result.CreditsUsed)
}

func (h *Human) Balance(credits float64) {
	fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Credits:"), h.st.bold.Render(fmt.Sprintf("%.2f", credits)))
}

func (h *Human) Health(url, tokenFingerprint string, latency time.Duration) {
	fmt.Fprintf(h.out, "%s %s is reachable %s\n", h.st.success.Render("✓"), url,
		h.st.accent.Render("("+formatDuration(latency)+")"))
	fmt.Fprintf(h.out, "%s %s\n", h.st.dim.Render("Token:"), tokenFingerprint)
}

func (h *Human) Warn(msg string) {
	fmt.Fprintf(h.errOut, "%s %s\n", h.errSt.warn.Render("Warning:"), msg)
}

func (h *Human) Error(err error, _ string) {
	fmt.Fprintf(h.errOut, "%s %s\n", h.errSt.failure.Render("Error:"), verify.Describe(err))
}

func (h *Human) levelStyle(level api.LogLevel) lipgloss.Style {
	switch level {
	case api.LevelError:
		return h.st.failure
	case api.LevelWarn:
		return h.st.warn
	case api.LevelDebug:
		return h.st.dim
	default:
		return h.st.accent
	}
}

func (h *Human) statusIcon(status api.RunStatus) string {
	switch status {
	case api.StatusSuccess:
		return h.st.success.Render("✓")
	case api.StatusFailed, api.StatusRejected, api.StatusTimeout:
		return h.st.failure.Render("✗")
	case api.StatusRunning:
		return h.st.running.Render("⏳")
	case api.StatusQueued:
		return h.st.pending.Render("◯")
	default:
		return "•"
	}
}

func (h *Human) colorizeStatus(status api.RunStatus) string {
	switch status {
	case api.StatusSuccess:
		return h.st.success.Render(string(status))
	case api.StatusFailed, api.StatusRejected, api.StatusTimeout:
		return h.st.failure.Render(string(status))
	case api.StatusRunning:
		return h.st.running.Render(string(status))
	case api.StatusQueued:
		return h.st.pending.Render(string(status))
	default:
		return string(status)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("Mon, 02 Jan 2006 15:04:05 MST")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
