// Package semantic reviews candidates with a language model, catching UX
// issues that scripted structural checks cannot: ambiguous buttons, unclear
// labels, missing context, inconsistent action naming.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const systemPrompt = `You are a UX reviewer for web deployments. You receive a
JSON description of a page and must identify usability issues: ambiguous or
duplicate button labels, unclear action text, interactive elements missing
context, inconsistent naming for the same action, and elements screen readers
cannot announce.

Respond with ONLY a JSON array. Each element must be an object with fields:
"kind" (short snake_case issue type), "severity" (one of critical, high,
medium, low, info), "message" (what is wrong and how it affects users),
"location" (CSS-style selector, optional), "suggested_fix" (optional).
Return [] when the page has no issues.`

// Reviewer asks a ChatModel for UX findings over the candidate snapshot.
type Reviewer struct {
	model model.ChatModel
	now   func() time.Time
}

// New creates a semantic reviewer backed by the given chat model.
func New(chatModel model.ChatModel) *Reviewer {
	return &Reviewer{
		model: chatModel,
		now:   time.Now,
	}
}

func (r *Reviewer) ID() string { return "semantic" }

// Review sends the page context to the model and parses its findings.
func (r *Reviewer) Review(ctx context.Context, candidate review.Candidate) (review.Report, error) {
	if candidate.Page == nil {
		return review.Report{}, fmt.Errorf("candidate %s has no parsed page", candidate.ID)
	}
	if r.model == nil {
		return review.Report{}, fmt.Errorf("no chat model configured")
	}

	pageContext, err := json.Marshal(buildContext(candidate.Page))
	if err != nil {
		return review.Report{}, fmt.Errorf("marshal page context: %w", err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf("Page context:\n%s", pageContext)),
	}

	resp, err := r.model.Generate(ctx, messages)
	if err != nil {
		return review.Report{}, fmt.Errorf("semantic review: %w", err)
	}

	findings, err := ParseFindings(resp.Content)
	if err != nil {
		return review.Report{}, err
	}

	return review.Report{
		CandidateID: candidate.ID,
		Findings:    findings,
		ProducedAt:  r.now(),
	}, nil
}

type pageContext struct {
	Title    string              `json:"title"`
	Buttons  []review.ButtonInfo `json:"buttons"`
	Inputs   []review.InputInfo  `json:"inputs"`
	Headings []string            `json:"headings"`
	Links    []review.LinkInfo   `json:"links"`
}

func buildContext(page *review.Snapshot) pageContext {
	return pageContext{
		Title:    page.Title,
		Buttons:  page.Buttons,
		Inputs:   page.Inputs,
		Headings: page.Headings,
		Links:    page.Links,
	}
}

// ParseFindings extracts the findings array from model output, tolerating
// markdown code fences and surrounding prose.
func ParseFindings(content string) ([]review.Finding, error) {
	raw := extractJSONArray(content)
	if raw == "" {
		return nil, fmt.Errorf("semantic review: no JSON array in model output")
	}

	var parsed []struct {
		Kind         string `json:"kind"`
		Severity     string `json:"severity"`
		Message      string `json:"message"`
		Location     string `json:"location"`
		SuggestedFix string `json:"suggested_fix"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("semantic review: parse model output: %w", err)
	}

	findings := make([]review.Finding, 0, len(parsed))
	for _, item := range parsed {
		message := strings.TrimSpace(item.Message)
		if message == "" {
			continue
		}
		severity := review.Severity(strings.ToLower(strings.TrimSpace(item.Severity)))
		if !severity.Valid() {
			severity = review.SeverityMedium
		}
		kind := strings.TrimSpace(item.Kind)
		if kind == "" {
			kind = "ux_issue"
		}
		findings = append(findings, review.Finding{
			Kind:         kind,
			Severity:     severity,
			Message:      message,
			Location:     strings.TrimSpace(item.Location),
			SuggestedFix: strings.TrimSpace(item.SuggestedFix),
		})
	}
	return findings, nil
}

func extractJSONArray(content string) string {
	content = strings.TrimSpace(content)
	if fenced := strings.Index(content, "```"); fenced >= 0 {
		rest := content[fenced+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			content = rest[:end]
		} else {
			content = rest
		}
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}
