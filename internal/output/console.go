// Package output renders run progress and analysis results to the terminal.
package output

import (
	"fmt"
	"io"
	"sourcemind/internal/domain"
	"sourcemind/internal/generator"
	"sourcemind/internal/usecases"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	titleStyle   = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)

	severityStyles = map[domain.Severity]lipgloss.Style{
		domain.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		domain.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
		domain.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		domain.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
	}
)

const barWidth = 24

// Console writes styled messages to a writer
type Console struct {
	w io.Writer
}

// NewConsole creates a console writing to w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Success prints a completed operation
func (c *Console) Success(msg string) {
	fmt.Fprintln(c.w, successStyle.Render("✔ "+msg))
}

// Error prints a failure that needs user attention
func (c *Console) Error(msg string) {
	fmt.Fprintln(c.w, errorStyle.Render("✖ "+msg))
}

// Info prints a status update
func (c *Console) Info(msg string) {
	fmt.Fprintln(c.w, infoStyle.Render("ℹ "+msg))
}

// Step prints an indented sub-item
func (c *Console) Step(msg string) {
	fmt.Fprintln(c.w, stepStyle.Render("   "+msg))
}

// Progress renders a phase change; it is meant to be registered as a
// transition observer
func (c *Console) Progress(s usecases.Snapshot) {
	switch s.Phase {
	case usecases.PhaseFetchingMetadata:
		c.Info(fmt.Sprintf("Fetching metadata for %s", s.Repository))
	case usecases.PhaseAnalyzingWithAI:
		c.Info("Analyzing with AI")
	case usecases.PhaseComplete:
		c.Success(fmt.Sprintf("Analysis of %s complete", s.Repository))
	case usecases.PhaseError:
		c.Error(s.ErrorMessage)
	}
}

// PrintReport renders a finished analysis
func (c *Console) PrintReport(report *generator.Report, summary generator.Summary) {
	fmt.Fprint(c.w, RenderReport(report, summary))
}

// RenderReport renders a finished analysis as styled text
func RenderReport(report *generator.Report, summary generator.Summary) string {
	var b strings.Builder
	run := report.Run

	title := report.Title
	if title == "" {
		title = generator.DefaultTitle
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	if md := run.Metadata; md != nil {
		fmt.Fprintf(&b, "%s  ★ %d  forks %d\n", md.FullName, md.StargazersCount, md.ForksCount)
		if md.Description != "" {
			b.WriteString(stepStyle.Render(md.Description) + "\n")
		}
	}

	result := run.Result
	if result == nil {
		return b.String()
	}

	section(&b, "Overview")
	b.WriteString(result.Summary + "\n")
	fmt.Fprintf(&b, "Complexity %s · Innovation %d/100 · Security %d/100 (%s)\n",
		result.Complexity, result.InnovationScore,
		result.SecurityAnalysis.Score, result.SecurityAnalysis.RiskLevel)

	if shares := run.Languages.Shares(); len(shares) > 0 {
		section(&b, "Languages")
		for _, share := range shares {
			fmt.Fprintf(&b, "%-14s %s %5.1f%%\n", share.Language, bar(share.Percent), share.Percent)
		}
	}

	if len(result.TechStack) > 0 {
		section(&b, "Tech Stack")
		b.WriteString(strings.Join(result.TechStack, ", ") + "\n")
	}

	bullets(&b, "Key Features", result.KeyFeatures)

	section(&b, "Security")
	fmt.Fprintf(&b, "%d vulnerabilities", summary.Vulnerabilities)
	for _, sev := range []domain.Severity{
		domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow,
	} {
		if n := summary.VulnerabilitiesBySev[sev]; n > 0 {
			fmt.Fprintf(&b, " · %s", severityStyles[sev].Render(fmt.Sprintf("%d %s", n, sev)))
		}
	}
	b.WriteString("\n")
	for _, v := range result.SecurityAnalysis.Vulnerabilities {
		style, ok := severityStyles[v.Severity]
		if !ok {
			style = stepStyle
		}
		fmt.Fprintf(&b, "  %s %s: %s\n", style.Render("["+string(v.Severity)+"]"), v.Type, v.Description)
	}

	if summary.Modules > 0 {
		section(&b, "Structure")
		fmt.Fprintf(&b, "%d modules (%d files, %d directories), %d potential issues\n",
			summary.Modules, summary.Files, summary.Directories, summary.PotentialIssues)
		for _, module := range result.RepoStructure {
			fmt.Fprintf(&b, "  %s %s\n", module.Path, stepStyle.Render(module.Description))
		}
	}

	bullets(&b, "Suggested Improvements", result.SuggestedImprovements)

	if summary.DeclaredDependencies > 0 {
		section(&b, "Declared Dependencies")
		fmt.Fprintf(&b, "%d declared across %d manifests · %d internal · %d external\n",
			summary.DeclaredDependencies, summary.Manifests,
			summary.InternalDependencies, summary.ExternalDependencies)
	}

	if summary.BlueprintFiles > 0 {
		section(&b, "Project Blueprint")
		for _, file := range result.ProjectBlueprint {
			fmt.Fprintf(&b, "  %s %s\n", file.Path, stepStyle.Render(file.Description))
		}
		b.WriteString(stepStyle.Render("Illustrative files. Use --format markdown or html to see their content.") + "\n")
	}

	return b.String()
}

func section(b *strings.Builder, heading string) {
	b.WriteString("\n" + headingStyle.Render(heading) + "\n")
}

func bullets(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	section(b, heading)
	for _, item := range items {
		b.WriteString("  • " + item + "\n")
	}
}

func bar(percent float64) string {
	filled := int(percent/100*barWidth + 0.5)
	filled = max(0, min(barWidth, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
