package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Renderer writes audit reports as JSON, Markdown and a terminal summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the machine-readable AuditReport
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes a human-readable summary of the report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// RenderText writes the audited document
func (r *Renderer) RenderText(text, path string) error {
	return writeFile(path, []byte(text))
}

// Markdown renders the report summary as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder
	sum := report.Summary

	title := report.Document
	if title == "" {
		title = "document"
	}
	fmt.Fprintf(&b, "# Veracity audit: %s\n\n", title)
	fmt.Fprintf(&b, "- **Run:** `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- **Outcome:** %s\n", report.Outcome)
	fmt.Fprintf(&b, "- **Integrity index:** %d/100\n", sum.IntegrityIndex)
	fmt.Fprintf(&b, "- **Completed:** %s\n", report.CompletedAt.Format("2006-01-02 15:04:05 MST"))
	if report.Digest != "" {
		fmt.Fprintf(&b, "- **Digest:** `%s`\n", report.Digest)
	}
	b.WriteString("\n")

	b.WriteString("## Claims\n\n")
	if len(report.Claims) == 0 {
		b.WriteString("No claim markers.\n\n")
	} else {
		b.WriteString("| Claim | Source | Status | Action | Reason |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, c := range report.Claims {
			fmt.Fprintf(&b, "| %s | `%s` | %s | %s | %s |\n",
				c.ClaimID, c.HashPrefix, c.Status, c.Action, escapeCell(c.Reason))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Relationships\n\n")
	if len(report.Reasoning) == 0 {
		b.WriteString("No relationship markers.\n\n")
	} else {
		b.WriteString("| Relation | Type | Premises | Status | Action | Reason |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, e := range report.Reasoning {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				e.RelationID, e.Type, strings.Join(e.DepClaims, ", "), e.AuditStatus, e.Action, escapeCell(e.Reason))
		}
		b.WriteString("\n")
	}

	if len(report.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		b.WriteString("| SHI | URI | Authority | Status |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, s := range report.Sources {
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n",
				shortHash(s.Hash), escapeCell(s.CanonicalURI), s.Authority, s.DeclaredStatus)
		}
		b.WriteString("\n")
	}

	if len(sum.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, sig := range sum.Signals {
			fmt.Fprintf(&b, "- **[%s] %s:** %s\n", strings.ToUpper(string(sig.Severity)), sig.Type, sig.Description)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n")
		b.WriteString("*Veracity checks that claims appear at their declared sources and that syntheses follow from verified premises. It does not decide whether a source is true.*\n")
	}

	return b.String()
}

// RenderSummary prints a short summary for the terminal
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	sum := report.Summary

	fmt.Fprintf(w, "\n━━━ Veracity Audit ━━━\n")
	if report.Document != "" {
		fmt.Fprintf(w, "Document:  %s\n", report.Document)
	}
	fmt.Fprintf(w, "Outcome:   %s\n", report.Outcome)
	fmt.Fprintf(w, "Index:     %d/100\n", sum.IntegrityIndex)
	fmt.Fprintf(w, "Claims:    %d verified, %d failed, %d pending\n", sum.ClaimsVerified, sum.ClaimsFailed, sum.ClaimsPending)
	fmt.Fprintf(w, "Relations: %d verified, %d insufficient logic, %d insufficient premise, %d pending\n",
		sum.RelationsVerified, sum.InsufficientLogic, sum.InsufficientPremise, sum.RelationsPending)

	removed, flagged := 0, 0
	for _, reg := range report.Regions {
		if reg.Action == model.ActionFlagged {
			flagged++
		} else {
			removed++
		}
	}
	if removed+flagged > 0 {
		fmt.Fprintf(w, "Regions:   %d removed, %d flagged\n", removed, flagged)
	}

	for _, sig := range sum.Signals {
		if sig.Severity == model.SeverityCritical {
			fmt.Fprintf(w, "  ! %s: %s\n", sig.Type, sig.Description)
		}
	}
	fmt.Fprintln(w)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
