// Package structural validates the candidate page structure against the
// elements the application cannot function without, plus common markup and
// accessibility defects.
package structural

import (
	"context"
	"fmt"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
)

// Reviewer runs scripted structural checks over a candidate snapshot.
type Reviewer struct {
	criticalIDs []string
	now         func() time.Time
}

// New creates a structural reviewer. criticalIDs lists element ids that the
// deployed application requires to function.
func New(criticalIDs []string) *Reviewer {
	return &Reviewer{
		criticalIDs: criticalIDs,
		now:         time.Now,
	}
}

func (r *Reviewer) ID() string { return "structural" }

// Review inspects the candidate snapshot and reports structural findings.
func (r *Reviewer) Review(ctx context.Context, candidate review.Candidate) (review.Report, error) {
	if candidate.Page == nil {
		return review.Report{}, fmt.Errorf("candidate %s has no parsed page", candidate.ID)
	}
	page := candidate.Page

	findings := []review.Finding{}
	findings = append(findings, r.checkCriticalIDs(page)...)
	findings = append(findings, checkDuplicateIDs(page)...)
	findings = append(findings, checkScripts(page)...)
	findings = append(findings, checkButtons(page)...)
	findings = append(findings, checkTitle(page)...)
	findings = append(findings, checkInputs(page)...)
	findings = append(findings, checkImages(page)...)
	findings = append(findings, checkLinks(page)...)
	findings = append(findings, checkStylesheets(page)...)

	return review.Report{
		CandidateID: candidate.ID,
		Findings:    findings,
		ProducedAt:  r.now(),
	}, nil
}

func (r *Reviewer) checkCriticalIDs(page *review.Snapshot) []review.Finding {
	var findings []review.Finding
	for _, id := range r.criticalIDs {
		if page.HasID(id) {
			continue
		}
		findings = append(findings, review.Finding{
			Kind:         "missing_critical_element",
			Severity:     review.SeverityCritical,
			Message:      fmt.Sprintf("required element #%s is missing", id),
			Location:     "#" + id,
			SuggestedFix: fmt.Sprintf("restore the element with id=%q", id),
		})
	}
	return findings
}

func checkDuplicateIDs(page *review.Snapshot) []review.Finding {
	seen := make(map[string]int, len(page.IDs))
	for _, id := range page.IDs {
		seen[id]++
	}
	var findings []review.Finding
	for _, id := range page.IDs {
		if seen[id] < 2 {
			continue
		}
		findings = append(findings, review.Finding{
			Kind:         "duplicate_id",
			Severity:     review.SeverityCritical,
			Message:      fmt.Sprintf("%d elements share id=%q; selectors targeting it will misbehave", seen[id], id),
			Location:     "#" + id,
			SuggestedFix: "make every id unique",
		})
		seen[id] = 0 // report each duplicate id once
	}
	return findings
}

func checkScripts(page *review.Snapshot) []review.Finding {
	if page.Counts.Scripts > 0 {
		return nil
	}
	return []review.Finding{{
		Kind:     "no_scripts",
		Severity: review.SeverityHigh,
		Message:  "no script elements found; interactive functionality will not work",
	}}
}

func checkButtons(page *review.Snapshot) []review.Finding {
	var findings []review.Finding
	if page.Counts.Buttons == 0 {
		findings = append(findings, review.Finding{
			Kind:     "no_buttons",
			Severity: review.SeverityHigh,
			Message:  "no buttons found; user interaction is broken",
		})
		return findings
	}

	withoutID := 0
	for _, btn := range page.Buttons {
		if btn.Text == "" && btn.AriaLabel == "" {
			location := "button"
			if btn.ID != "" {
				location = "button#" + btn.ID
			}
			findings = append(findings, review.Finding{
				Kind:         "empty_button",
				Severity:     review.SeverityHigh,
				Message:      fmt.Sprintf("%s has no text or aria-label; users and screen readers cannot tell what it does", location),
				Location:     location,
				SuggestedFix: "add button text or an aria-label attribute",
			})
		}
		if btn.ID == "" {
			withoutID++
		}
	}
	if withoutID > 0 && page.Counts.Scripts > 0 {
		findings = append(findings, review.Finding{
			Kind:     "button_without_id",
			Severity: review.SeverityInfo,
			Message:  fmt.Sprintf("%d button(s) have no id and may be hard to target from scripts", withoutID),
		})
	}
	return findings
}

func checkTitle(page *review.Snapshot) []review.Finding {
	if page.Title != "" {
		return nil
	}
	return []review.Finding{{
		Kind:         "missing_page_title",
		Severity:     review.SeverityHigh,
		Message:      "page has no title",
		Location:     "title",
		SuggestedFix: "add a title element in head",
	}}
}

func checkInputs(page *review.Snapshot) []review.Finding {
	var findings []review.Finding
	for _, input := range page.Inputs {
		switch input.Type {
		case "hidden", "submit", "button":
			continue
		}
		if input.ID == "" || page.LabelFor[input.ID] {
			continue
		}
		findings = append(findings, review.Finding{
			Kind:         "input_without_label",
			Severity:     review.SeverityMedium,
			Message:      fmt.Sprintf("input #%s has no associated label", input.ID),
			Location:     "input#" + input.ID,
			SuggestedFix: fmt.Sprintf("add <label for=%q>", input.ID),
		})
	}
	return findings
}

func checkImages(page *review.Snapshot) []review.Finding {
	var findings []review.Finding
	for _, img := range page.Images {
		if img.Alt != "" {
			continue
		}
		findings = append(findings, review.Finding{
			Kind:         "image_without_alt",
			Severity:     review.SeverityMedium,
			Message:      fmt.Sprintf("image %q has no alt text", img.Src),
			Location:     fmt.Sprintf("img[src=%q]", img.Src),
			SuggestedFix: "add an alt attribute describing the image",
		})
	}
	return findings
}

func checkLinks(page *review.Snapshot) []review.Finding {
	var findings []review.Finding
	for _, link := range page.Links {
		if link.Text != "" || link.HasImage {
			continue
		}
		findings = append(findings, review.Finding{
			Kind:     "empty_link",
			Severity: review.SeverityMedium,
			Message:  fmt.Sprintf("link to %q has no text or image", link.Href),
			Location: fmt.Sprintf("a[href=%q]", link.Href),
		})
	}
	return findings
}

func checkStylesheets(page *review.Snapshot) []review.Finding {
	if page.Counts.Stylesheets > 0 {
		return nil
	}
	return []review.Finding{{
		Kind:     "no_stylesheets",
		Severity: review.SeverityLow,
		Message:  "no stylesheets found; page may appear unstyled",
	}}
}
