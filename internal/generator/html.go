package generator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"path"
	"sourcemind/internal/domain"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

//go:embed template.html
var templateContent string

// Raw HTML in model output is escaped: the renderer runs without html.WithUnsafe
var md = goldmark.New( //nolint:gochecknoglobals // shared converter
	goldmark.WithExtensions(
		extension.GFM,
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
)

// ParseMarkdown converts markdown text to HTML
func ParseMarkdown(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("parsing markdown: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // goldmark escapes raw HTML
}

// GenerateHTML creates an HTML report
func (g *Generator) GenerateHTML(ctx context.Context, report *Report) error {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"markdown": func(s string) (template.HTML, error) { return ParseMarkdown(s) },
		"lower":    strings.ToLower,
		"fence":    fencedLanguage,
	}).Parse(templateContent)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	summary := g.GenerateSummary(report)
	data := struct {
		Title        string
		GeneratedAt  string
		RunID        string
		Metadata     *domain.RepositoryMetadata
		Result       *domain.AnalysisResult
		Languages    []domain.LanguageShare
		Summary      Summary
		Dependencies []dependencyRow
		Severities   []domain.Severity
	}{
		Title:        titleOf(report),
		GeneratedAt:  generatedAt(report).Format("2006-01-02 15:04 MST"),
		RunID:        report.Run.RunID,
		Metadata:     report.Run.Metadata,
		Result:       report.Run.Result,
		Languages:    report.Run.Languages.Shares(),
		Summary:      summary,
		Dependencies: allDependencies(report),
		Severities: []domain.Severity{
			domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow,
		},
	}

	return g.writeFile(func(w io.Writer) error {
		if err := tmpl.Execute(w, data); err != nil {
			return fmt.Errorf("failed to execute template: %w", err)
		}
		return nil
	})
}

func fencedLanguage(filePath string) string {
	lang := fenceLanguages[strings.ToLower(path.Ext(filePath))]
	if lang == "" {
		return "plaintext"
	}
	return lang
}
