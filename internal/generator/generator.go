package generator

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sourcemind/internal/domain"
	"sourcemind/internal/usecases"
	"strconv"
	"time"
)

// Supported report formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatCSV      = "csv"
)

// DefaultTitle is used when a report carries no title
const DefaultTitle = "SourceMind Analysis"

// Report is a finished run prepared for rendering
type Report struct {
	Title       string
	GeneratedAt time.Time
	Run         usecases.Snapshot
}

// Summary holds aggregated counts shared by all report formats
type Summary struct {
	Modules              int                     `json:"modules"`
	Files                int                     `json:"files"`
	Directories          int                     `json:"directories"`
	PotentialIssues      int                     `json:"potential_issues"`
	Vulnerabilities      int                     `json:"vulnerabilities"`
	VulnerabilitiesBySev map[domain.Severity]int `json:"vulnerabilities_by_severity"`
	BlueprintFiles       int                     `json:"blueprint_files"`
	Manifests            int                     `json:"manifests"`
	DeclaredDependencies int                     `json:"declared_dependencies"`
	InternalDependencies int                     `json:"internal_dependencies"`
	ExternalDependencies int                     `json:"external_dependencies"`
	Languages            int                     `json:"languages"`
}

// Generator writes analysis reports to a file
type Generator struct {
	outputPath string
}

// NewGenerator creates a new report generator
func NewGenerator(outputPath string) *Generator {
	return &Generator{
		outputPath: outputPath,
	}
}

// OutputPath returns the output path
func (g *Generator) OutputPath() string {
	return g.outputPath
}

// Generate writes the report in the requested format
func (g *Generator) Generate(ctx context.Context, format string, report *Report) error {
	if report == nil || report.Run.Result == nil {
		return fmt.Errorf("report has no analysis result")
	}

	switch format {
	case FormatJSON:
		return g.GenerateJSON(ctx, report)
	case FormatMarkdown:
		return g.GenerateMarkdown(ctx, report)
	case FormatHTML:
		return g.GenerateHTML(ctx, report)
	case FormatCSV:
		return g.GenerateCSV(ctx, report)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// GenerateSummary creates aggregated statistics for a report
func (g *Generator) GenerateSummary(report *Report) Summary {
	summary := Summary{VulnerabilitiesBySev: map[domain.Severity]int{
		domain.SeverityCritical: 0,
		domain.SeverityHigh:     0,
		domain.SeverityMedium:   0,
		domain.SeverityLow:      0,
	}}
	if report == nil {
		return summary
	}

	summary.Languages = len(report.Run.Languages)
	summary.Manifests = len(report.Run.Manifests)

	if result := report.Run.Result; result != nil {
		summary.Modules = len(result.RepoStructure)
		for _, module := range result.RepoStructure {
			if module.Type == domain.ModuleDir {
				summary.Directories++
			} else {
				summary.Files++
			}
			summary.PotentialIssues += len(module.PotentialIssues)
		}

		summary.Vulnerabilities = len(result.SecurityAnalysis.Vulnerabilities)
		for _, v := range result.SecurityAnalysis.Vulnerabilities {
			summary.VulnerabilitiesBySev[v.Severity]++
		}

		summary.BlueprintFiles = len(result.ProjectBlueprint)
	}

	for _, dep := range allDependencies(report) {
		summary.DeclaredDependencies++
		if dep.Dependency.IsInternal {
			summary.InternalDependencies++
		} else {
			summary.ExternalDependencies++
		}
	}

	return summary
}

// GenerateJSON creates a JSON report
func (g *Generator) GenerateJSON(ctx context.Context, report *Report) error {
	data := struct {
		Title              string                       `json:"title"`
		GeneratedAt        time.Time                    `json:"generated_at"`
		RunID              string                       `json:"run_id"`
		Repository         *domain.RepositoryMetadata   `json:"repository"`
		Languages          []domain.LanguageShare       `json:"languages"`
		Analysis           *domain.AnalysisResult       `json:"analysis"`
		Manifests          []*domain.ManifestFile       `json:"manifests"`
		ModuleDependencies []*domain.DeclaredDependency `json:"module_dependencies"`
		Summary            Summary                      `json:"summary"`
	}{
		Title:              titleOf(report),
		GeneratedAt:        generatedAt(report),
		RunID:              report.Run.RunID,
		Repository:         report.Run.Metadata,
		Languages:          report.Run.Languages.Shares(),
		Analysis:           report.Run.Result,
		Manifests:          report.Run.Manifests,
		ModuleDependencies: report.Run.ModuleDependencies,
		Summary:            g.GenerateSummary(report),
	}

	return g.writeFile(func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(data); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	})
}

// GenerateMarkdown creates a Markdown report
func (g *Generator) GenerateMarkdown(ctx context.Context, report *Report) error {
	content := RenderMarkdown(report, g.GenerateSummary(report))
	return g.writeFile(func(w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	})
}

// GenerateCSV writes one row per declared dependency
func (g *Generator) GenerateCSV(ctx context.Context, report *Report) error {
	return g.writeFile(func(w io.Writer) error {
		writer := csv.NewWriter(w)

		header := []string{
			"Source",
			"Language",
			"Dependency Name",
			"Version",
			"Ecosystem",
			"Is Internal",
		}
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}

		for _, row := range allDependencies(report) {
			record := []string{
				row.Source,
				row.Language,
				row.Dependency.Name,
				row.Dependency.Version,
				row.Dependency.Ecosystem,
				strconv.FormatBool(row.Dependency.IsInternal),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}

		writer.Flush()
		return writer.Error()
	})
}

// writeFile creates the output directory and file, then hands the file to write
func (g *Generator) writeFile(write func(io.Writer) error) error {
	dir := filepath.Dir(g.outputPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(g.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

// dependencyRow is a declared dependency with the place it was declared
type dependencyRow struct {
	Source     string
	Language   string
	Dependency *domain.DeclaredDependency
}

// allDependencies lists manifest dependencies (by manifest path) followed by
// module dependencies, internal first then alphabetically within each source
func allDependencies(report *Report) []dependencyRow {
	if report == nil {
		return nil
	}

	var rows []dependencyRow
	for _, manifest := range report.Run.Manifests {
		rows = append(rows, sortedRows(manifest.Path, manifest.Language, manifest.Dependencies)...)
	}
	rows = append(rows, sortedRows("modules", "", report.Run.ModuleDependencies)...)
	return rows
}

func sortedRows(source, language string, deps []*domain.DeclaredDependency) []dependencyRow {
	rows := make([]dependencyRow, 0, len(deps))
	for _, dep := range deps {
		if dep != nil {
			rows = append(rows, dependencyRow{Source: source, Language: language, Dependency: dep})
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Dependency.IsInternal != rows[j].Dependency.IsInternal {
			return rows[i].Dependency.IsInternal
		}
		return rows[i].Dependency.Name < rows[j].Dependency.Name
	})
	return rows
}

func titleOf(report *Report) string {
	if report.Title == "" {
		return DefaultTitle
	}
	return report.Title
}

func generatedAt(report *Report) time.Time {
	if report.GeneratedAt.IsZero() {
		return time.Now().UTC()
	}
	return report.GeneratedAt
}
