package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimalign/internal/annotate"
	"github.com/ppiankov/claimalign/internal/model"
)

// Format is a report output format
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts a format name or common file extension
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format: %s (supported: json, yaml, markdown, text)", s)
}

const rule = "--------------------------------------------------"

// Renderer writes reports in the supported formats
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderFile writes the report to path, or to stdout when path is "-"
func (r *Renderer) RenderFile(report *model.Report, format Format, path string) (err error) {
	if path == "-" {
		return r.Render(os.Stdout, report, format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return r.Render(f, report, format)
}

// Render writes the report to w in the given format
func (r *Renderer) Render(w io.Writer, report *model.Report, format Format) error {
	switch format {
	case FormatJSON:
		return r.RenderJSON(w, report)
	case FormatYAML:
		return r.RenderYAML(w, report)
	case FormatMarkdown:
		return r.RenderMarkdown(w, report)
	case FormatText:
		return r.RenderText(w, report)
	}
	return fmt.Errorf("unknown output format: %s", format)
}

// RenderJSON writes the full report as indented JSON
func (r *Renderer) RenderJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

// RenderYAML writes the full report as YAML
func (r *Renderer) RenderYAML(w io.Writer, report *model.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return enc.Close()
}

// RenderMarkdown writes a human-readable report: verdict, claims grouped by
// category, the annotated transcript and the diagnostic signals
func (r *Renderer) RenderMarkdown(w io.Writer, report *model.Report) error {
	b := bufio.NewWriter(w)

	fmt.Fprintf(b, "# Claim alignment: %s\n\n", report.Subject)
	fmt.Fprintf(b, "- **Generated:** %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(b, "- **Alignment index:** %d/100 (confidence: %s)\n", report.Score.Index, report.Score.Confidence)

	if set := report.Claims; set != nil {
		if set.FactScore != nil {
			fmt.Fprintf(b, "- **Fact score:** %s/10\n", formatScore(*set.FactScore))
		}
		if set.OverallVerdict != "" {
			fmt.Fprintf(b, "- **Verdict:** %s\n", set.OverallVerdict)
		}
	}
	fmt.Fprintf(b, "- **Decoded by:** %s pass", report.Decode.Pass)
	if n := len(report.Decode.Failures); n > 0 {
		fmt.Fprintf(b, " after %d failed attempts", n)
	}
	b.WriteString("\n\n")

	if report.Claims == nil {
		b.WriteString("## Service output\n\n")
		b.WriteString("The service output could not be decoded. It is reproduced unchanged.\n\n")
		b.WriteString("```\n" + report.Raw + "\n```\n\n")
	} else {
		r.writeClaimsMarkdown(b, report)
	}

	b.WriteString("## Annotated transcript\n\n")
	fmt.Fprintf(b, "_Source: %s annotation, %d highlighted passages._\n\n",
		report.AnnotationSource, len(annotate.ParseSpans(report.AnnotatedTranscript)))
	b.WriteString("```\n" + report.AnnotatedTranscript + "\n```\n\n")

	if len(report.Score.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		b.WriteString("| Type | Severity | Description |\n")
		b.WriteString("|------|----------|-------------|\n")
		for _, s := range report.Score.Signals {
			fmt.Fprintf(b, "| %s | %s | %s |\n", s.Type, s.Severity, escapeCell(s.Description))
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("_Generated by claimalign. Highlights are located automatically from the service's claim quotes and may be imprecise. Verdicts are the service's, not claimalign's._\n")
	}

	return b.Flush()
}

func (r *Renderer) writeClaimsMarkdown(b *bufio.Writer, report *model.Report) {
	set := report.Claims

	if set.Summary != "" {
		b.WriteString("## Summary\n\n" + set.Summary + "\n\n")
	}
	if len(set.RedFlags) > 0 {
		b.WriteString("## Red flags\n\n")
		for _, f := range set.RedFlags {
			b.WriteString("- " + f + "\n")
		}
		b.WriteString("\n")
	}

	// Claims are numbered by their position in the claim set
	status := make(map[int]model.MatchResult, len(report.Matches))
	for _, m := range report.Matches {
		status[m.Index] = m
	}

	b.WriteString("## Claims\n\n")
	if set.Len() == 0 {
		b.WriteString("No claims were reported.\n\n")
		return
	}

	for _, cat := range model.Categories {
		var idx []int
		for i, c := range set.Claims {
			if c.Category == cat {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}

		fmt.Fprintf(b, "### %s (%d)\n\n", categoryTitle(cat), len(idx))
		for _, i := range idx {
			c := set.Claims[i]
			fmt.Fprintf(b, "%d. \"%s\" _(%s)_\n", i+1, c.Text, describeMatch(status[i]))
			if c.Timestamp != "" {
				fmt.Fprintf(b, "   - Timestamp: %s\n", c.Timestamp)
			}
			if c.Explanation != "" {
				fmt.Fprintf(b, "   - %s\n", c.Explanation)
			}
			if c.Confidence != "" {
				fmt.Fprintf(b, "   - Confidence: %s\n", c.Confidence)
			}
			for _, src := range c.Sources {
				fmt.Fprintf(b, "   - Source: %s\n", src)
			}
		}
		b.WriteString("\n")
	}
}

// RenderText writes the plain-text export: a header, the transcript and
// the analysis
func (r *Renderer) RenderText(w io.Writer, report *model.Report) error {
	b := bufio.NewWriter(w)

	b.WriteString("Transcript Fact-Check & Alignment\n")
	b.WriteString(strings.Repeat("=", len(rule)) + "\n\n")
	fmt.Fprintf(b, "Subject: %s\n", report.Subject)
	fmt.Fprintf(b, "Processed: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(b, "Alignment index: %d/100 (%s confidence)\n", report.Score.Index, report.Score.Confidence)
	if report.Claims != nil && report.Claims.FactScore != nil {
		fmt.Fprintf(b, "Fact score: %s/10\n", formatScore(*report.Claims.FactScore))
	}

	b.WriteString("\nTRANSCRIPT\n" + rule + "\n\n")
	b.WriteString(report.AnnotatedTranscript + "\n")

	b.WriteString("\nANALYSIS\n" + rule + "\n\n")
	if report.Claims == nil {
		b.WriteString(report.Raw + "\n")
		return b.Flush()
	}

	set := report.Claims
	if set.OverallVerdict != "" {
		b.WriteString("Verdict: " + set.OverallVerdict + "\n\n")
	}
	if set.Summary != "" {
		b.WriteString(set.Summary + "\n\n")
	}
	for _, f := range set.RedFlags {
		b.WriteString("! " + f + "\n")
	}
	if len(set.RedFlags) > 0 {
		b.WriteString("\n")
	}
	for _, cat := range model.Categories {
		claims := set.ByCategory(cat)
		if len(claims) == 0 {
			continue
		}
		fmt.Fprintf(b, "%s:\n", strings.ToUpper(categoryTitle(cat)))
		for _, c := range claims {
			b.WriteString("  * " + c.Text + "\n")
			if c.Explanation != "" {
				b.WriteString("    " + c.Explanation + "\n")
			}
		}
		b.WriteString("\n")
	}

	return b.Flush()
}

// RenderSummary prints a short overview of the report
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	s := report.Score
	fmt.Fprintf(w, "\nSubject: %s\n", report.Subject)
	fmt.Fprintf(w, "Alignment index: %d/100 (confidence: %s)\n", s.Index, s.Confidence)

	if report.Claims == nil {
		fmt.Fprintf(w, "Service output could not be decoded (%d passes failed)\n", len(report.Decode.Failures))
	} else {
		fmt.Fprintf(w, "Claims: %d (%d located, %d not located, %d superseded)\n",
			report.Claims.Len(), s.Matched, s.Unmatched, s.Superseded)
		fmt.Fprintf(w, "Decoded by: %s pass, annotation: %s\n", report.Decode.Pass, report.AnnotationSource)
	}

	for _, sig := range s.Signals {
		if sig.Severity == model.SeverityInfo {
			continue
		}
		fmt.Fprintf(w, "  [%s] %s\n", sig.Severity, sig.Description)
	}
}

func describeMatch(m model.MatchResult) string {
	switch {
	case m.Matched():
		return fmt.Sprintf("located: %s, %.2f", m.Strategy, m.Score)
	case m.Status == model.StatusSuperseded && m.SupersededBy != nil:
		return fmt.Sprintf("overlaps claim %d", *m.SupersededBy+1)
	}
	return "not located"
}

func categoryTitle(c model.Category) string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
