// Package sowgen drafts statement-of-work documents from structured
// project attributes. Two implementations sit behind the Generator
// interface: a live OpenAI-backed one and a deterministic fallback used
// when no credential is configured.
package sowgen

import (
	"context"
	"fmt"
	"strings"
)

// Brief carries the project attributes a generator turns into a
// statement of work. Video fields are optional and only set for
// video-production projects.
type Brief struct {
	Title       string
	Description string
	Category    string
	BudgetMin   int64
	BudgetMax   int64
	Currency    string
	Deadline    string

	VideoDurationSeconds int
	VideoStyle           string
	VideoReferences      []string
}

// Generator produces document text from a brief. Implementations must
// honor ctx cancellation; the caller bounds the call with a timeout.
type Generator interface {
	Generate(ctx context.Context, brief Brief) (content string, err error)
	Name() string
}

// Static is the deterministic fallback generator. It renders a usable
// placeholder document from the brief alone, with no external calls.
type Static struct{}

func (Static) Name() string { return "static" }

func (Static) Generate(_ context.Context, brief Brief) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Statement of Work: %s\n\n", brief.Title)
	fmt.Fprintf(&b, "## Scope\n%s\n\n", brief.Description)
	fmt.Fprintf(&b, "## Category\n%s\n\n", brief.Category)
	fmt.Fprintf(&b, "## Budget\n%d-%d %s\n\n", brief.BudgetMin, brief.BudgetMax, brief.Currency)
	if brief.Deadline != "" {
		fmt.Fprintf(&b, "## Deadline\n%s\n\n", brief.Deadline)
	}
	if brief.VideoDurationSeconds > 0 || brief.VideoStyle != "" || len(brief.VideoReferences) > 0 {
		b.WriteString("## Video Brief\n")
		if brief.VideoDurationSeconds > 0 {
			fmt.Fprintf(&b, "- Duration: %ds\n", brief.VideoDurationSeconds)
		}
		if brief.VideoStyle != "" {
			fmt.Fprintf(&b, "- Style: %s\n", brief.VideoStyle)
		}
		for _, ref := range brief.VideoReferences {
			fmt.Fprintf(&b, "- Reference: %s\n", ref)
		}
		b.WriteString("\n")
	}
	b.WriteString("## Deliverables\n- Defined per accepted proposal milestones.\n\n")
	b.WriteString("## Acceptance\n- Buyer review of each delivery against the milestone plan.\n")
	return b.String(), nil
}

// Prompt renders the brief as the instruction text sent to a live
// provider. Shared so the fallback and live paths describe the same
// project the same way.
func Prompt(brief Brief) string {
	var b strings.Builder
	b.WriteString("Draft a statement of work for a freelance engagement.\n")
	fmt.Fprintf(&b, "Title: %s\n", brief.Title)
	fmt.Fprintf(&b, "Description: %s\n", brief.Description)
	fmt.Fprintf(&b, "Category: %s\n", brief.Category)
	fmt.Fprintf(&b, "Budget: %d-%d %s\n", brief.BudgetMin, brief.BudgetMax, brief.Currency)
	if brief.Deadline != "" {
		fmt.Fprintf(&b, "Deadline: %s\n", brief.Deadline)
	}
	if brief.VideoDurationSeconds > 0 {
		fmt.Fprintf(&b, "Video duration: %d seconds\n", brief.VideoDurationSeconds)
	}
	if brief.VideoStyle != "" {
		fmt.Fprintf(&b, "Video style: %s\n", brief.VideoStyle)
	}
	if len(brief.VideoReferences) > 0 {
		fmt.Fprintf(&b, "Video references: %s\n", strings.Join(brief.VideoReferences, ", "))
	}
	b.WriteString("Include scope, deliverables, timeline, and acceptance criteria sections.")
	return b.String()
}
