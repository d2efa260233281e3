package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/deepscan/internal/model"
)

// Renderer writes reports as JSON, Markdown and a terminal summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report to path as indented JSON
func (r *Renderer) RenderJSON(report *model.AnalysisReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes a human-readable report to path
func (r *Renderer) RenderMarkdown(report *model.AnalysisReport, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(report)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown formats the report
func (r *Renderer) Markdown(report *model.AnalysisReport) string {
	var b strings.Builder

	title := report.Media.Name
	if title == "" {
		title = report.ID
	}

	fmt.Fprintf(&b, "# Analysis Results: %s\n\n", title)
	fmt.Fprintf(&b, "- **Verdict:** %s\n", report.Verdict.Label())
	fmt.Fprintf(&b, "- **Fake probability:** %d%%\n", report.FakeProbability)
	fmt.Fprintf(&b, "- **Authentication score:** %d/100\n", report.OverallScore)
	fmt.Fprintf(&b, "- **Media type:** %s\n", report.MediaType)
	if report.Media.MIME != "" {
		fmt.Fprintf(&b, "- **MIME:** %s\n", report.Media.MIME)
	}
	fmt.Fprintf(&b, "- **Report ID:** `%s`\n", report.ID)
	fmt.Fprintf(&b, "- **Created:** %s\n\n", report.CreatedAt.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Analysis Summary\n\n")
	b.WriteString(report.Conclusion)
	b.WriteString("\n\n")

	b.WriteString("## Detection Features\n\n")
	b.WriteString("| Feature | Score | Band | Description |\n")
	b.WriteString("|---|---:|---|---|\n")
	for _, f := range report.Features {
		fmt.Fprintf(&b, "| %s | %d/100 | %s | %s |\n", f.Name, f.Score, f.Band(), f.Description)
	}

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("_Generated by deepscan. Scores are simulated and do not come from inspecting the media._\n")
	}

	return b.String()
}

// RenderSummary prints a short summary for the terminal
func (r *Renderer) RenderSummary(w io.Writer, report *model.AnalysisReport) {
	name := report.Media.Name
	if name == "" {
		name = string(report.MediaType)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s\n", name)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Verdict:           %s\n", report.Verdict.Label())
	fmt.Fprintf(w, "  Fake probability:  %d%%\n", report.FakeProbability)
	fmt.Fprintf(w, "  Score:             %d/100\n", report.OverallScore)
	fmt.Fprintf(w, "\n")
	for _, f := range report.Features {
		fmt.Fprintf(w, "  %-28s %3d/100  %s\n", f.Name, f.Score, bar(f.Score))
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  %s\n", report.Conclusion)
	fmt.Fprintf(w, "\n")
}

// bar draws a 20-cell progress bar
func bar(score int) string {
	filled := score / 5
	if filled < 0 {
		filled = 0
	}
	if filled > 20 {
		filled = 20
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 20-filled)
}

// RenderReport renders the report to the specified outputs and prints the summary to w.
// A nil w skips the summary.
func (p *Pipeline) RenderReport(w io.Writer, report *model.AnalysisReport, jsonPath string, mdPath string, verbose bool) error {
	// Render JSON
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	// Render Markdown
	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	if w != nil {
		p.renderer.RenderSummary(w, report)
	}

	return nil
}
