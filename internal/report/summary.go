package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/intentest/intentest/internal/model"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	nameStyle   = lipgloss.NewStyle().Bold(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

func statusBadge(status string) string {
	switch status {
	case model.StatusPassed:
		return passStyle.Render("✔ PASS")
	case model.StatusFailed:
		return failStyle.Render("✘ FAIL")
	case model.StatusSkipped:
		return skipStyle.Render("- SKIP")
	default:
		return status
	}
}

// RenderSummary formats the run outcome for the terminal: one line per
// scenario, failure details, and an aggregate footer.
func RenderSummary(results []model.ScenarioResult) string {
	var b strings.Builder

	for _, r := range results {
		fmt.Fprintf(&b, "%s %s %s\n",
			statusBadge(r.Status),
			nameStyle.Render(r.Name),
			detailStyle.Render(r.Duration.Round(time.Millisecond).String()),
		)
		if r.Status == model.StatusFailed && r.Message != "" {
			fmt.Fprintf(&b, "       step %d: %s\n", r.FailedStep+1, detailStyle.Render(r.Message))
			if r.Screenshot != "" {
				fmt.Fprintf(&b, "       screenshot: %s\n", detailStyle.Render(r.Screenshot))
			}
		}
	}

	summary := model.Summarize(results)
	footer := fmt.Sprintf("%d scenarios: %s passed, %s failed, %s skipped in %s",
		summary.Total,
		passStyle.Render(fmt.Sprintf("%d", summary.Passed)),
		failStyle.Render(fmt.Sprintf("%d", summary.Failed)),
		skipStyle.Render(fmt.Sprintf("%d", summary.Skipped)),
		summary.Duration.Round(time.Millisecond),
	)
	b.WriteString(borderStyle.Render(footer))
	b.WriteString("\n")

	return b.String()
}
