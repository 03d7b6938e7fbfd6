// Package render formats decisions, findings, and approval state for the
// terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MEKXH/shipgate/internal/audit"
	"github.com/MEKXH/shipgate/internal/gate"
	"github.com/MEKXH/shipgate/internal/policy"
	"github.com/MEKXH/shipgate/internal/review"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#8E4EC6")). // Purple
			Padding(0, 1).
			MarginBottom(1)

	allowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2E8B57")) // SeaGreen

	blockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CD5C5C")) // IndianRed

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	severityColors = map[review.Severity]lipgloss.Color{
		review.SeverityCritical: lipgloss.Color("#CD5C5C"),
		review.SeverityHigh:     lipgloss.Color("#E9967A"),
		review.SeverityMedium:   lipgloss.Color("#DAA520"),
		review.SeverityLow:      lipgloss.Color("#87CEEB"),
		review.SeverityInfo:     lipgloss.Color("245"),
	}

	stateColors = map[gate.State]lipgloss.Color{
		gate.StateOpen:       lipgloss.Color("#DAA520"),
		gate.StateApproved:   lipgloss.Color("#2E8B57"),
		gate.StateTimedOut:   lipgloss.Color("#CD5C5C"),
		gate.StateSuperseded: lipgloss.Color("241"),
	}
)

func severityStyle(severity review.Severity) lipgloss.Style {
	color, ok := severityColors[severity]
	if !ok {
		color = lipgloss.Color("245")
	}
	return lipgloss.NewStyle().Foreground(color).Bold(severity == review.SeverityCritical)
}

// Decision renders the aggregated decision with its findings grouped by
// severity rank, blocking findings first.
func Decision(decision policy.Decision) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Decision: "+decision.CandidateID) + "\n")
	if decision.Outcome == policy.OutcomeAllow {
		b.WriteString(allowStyle.Render("ALLOW") + "\n")
	} else {
		b.WriteString(blockStyle.Render("BLOCK") +
			dimStyle.Render(fmt.Sprintf("  %d blocking finding(s)", len(decision.BlockingFindings))) + "\n")
	}

	if len(decision.AllFindings) == 0 {
		b.WriteString(dimStyle.Render("No findings.") + "\n")
		return b.String()
	}

	b.WriteString("\n" + Findings(decision.AllFindings))
	return b.String()
}

// Findings renders one finding per line.
func Findings(findings []review.Finding) string {
	var b strings.Builder
	for _, finding := range findings {
		label := severityStyle(finding.Severity).Render(fmt.Sprintf("%-8s", strings.ToUpper(string(finding.Severity))))
		line := fmt.Sprintf("  %s %s: %s", label, finding.Kind, finding.Message)
		if finding.Location != "" {
			line += dimStyle.Render("  (" + finding.Location + ")")
		}
		b.WriteString(line + "\n")
		if finding.SuggestedFix != "" {
			b.WriteString(dimStyle.Render("           fix: "+finding.SuggestedFix) + "\n")
		}
	}
	return b.String()
}

// Requests renders an approval request table.
func Requests(requests []gate.Request) string {
	if len(requests) == 0 {
		return dimStyle.Render("No approval requests.") + "\n"
	}

	var (
		wID        = 38
		wCandidate = 20
		wLineage   = 16
		wState     = 12
		wCreated   = 20

		colHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8E4EC6")).
				Bold(true).
				MarginRight(1)
		cellStyle = lipgloss.NewStyle().MarginRight(1)
		idStyle   = dimStyle.Width(wID).MarginRight(1)
	)

	var b strings.Builder
	headers := lipgloss.JoinHorizontal(lipgloss.Top,
		colHeaderStyle.Width(wID).Render("REQUEST"),
		colHeaderStyle.Width(wCandidate).Render("CANDIDATE"),
		colHeaderStyle.Width(wLineage).Render("LINEAGE"),
		colHeaderStyle.Width(wState).Render("STATE"),
		colHeaderStyle.Width(wCreated).Render("CREATED"),
	)
	b.WriteString("  " + headers + "\n")

	sepStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
	separator := lipgloss.JoinHorizontal(lipgloss.Top,
		sepStyle.Render(strings.Repeat("─", wID)),
		sepStyle.Render(strings.Repeat("─", wCandidate)),
		sepStyle.Render(strings.Repeat("─", wLineage)),
		sepStyle.Render(strings.Repeat("─", wState)),
		sepStyle.Render(strings.Repeat("─", wCreated)),
	)
	b.WriteString("  " + separator + "\n")

	for _, request := range requests {
		stateColor, ok := stateColors[request.State]
		if !ok {
			stateColor = lipgloss.Color("245")
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			idStyle.Render(request.ID),
			cellStyle.Width(wCandidate).Render(truncate(request.CandidateID, wCandidate)),
			cellStyle.Width(wLineage).Render(truncate(request.Lineage, wLineage)),
			cellStyle.Width(wState).Foreground(stateColor).Render(string(request.State)),
			cellStyle.Width(wCreated).Render(request.CreatedAt.Format("2006-01-02 15:04:05")),
		)
		b.WriteString("  " + row + "\n")
	}
	return b.String()
}

// AuditTrail renders audit records oldest first.
func AuditTrail(records []audit.Record) string {
	if len(records) == 0 {
		return dimStyle.Render("No audit records.") + "\n"
	}

	var b strings.Builder
	for _, record := range records {
		line := fmt.Sprintf("  %s  %-12s %s",
			dimStyle.Render(record.Time.Format("2006-01-02 15:04:05")),
			eventLabel(record.Event),
			record.CandidateID,
		)
		b.WriteString(line)
		if len(record.Detail) > 0 {
			b.WriteString(dimStyle.Render("  " + detailSummary(record.Detail)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func eventLabel(event audit.Event) string {
	switch event {
	case audit.EventDeployed, audit.EventApproved:
		return allowStyle.Render(string(event))
	case audit.EventTimedOut, audit.EventAborted:
		return blockStyle.Render(string(event))
	default:
		return string(event)
	}
}

func detailSummary(detail map[string]any) string {
	keys := []string{"outcome", "request_id", "approver", "reason", "superseded_by", "thread_id"}
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if value, ok := detail[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, value))
		}
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
