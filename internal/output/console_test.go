package output_test

import (
	"bytes"
	"sourcemind/internal/domain"
	"sourcemind/internal/generator"
	"sourcemind/internal/output"
	"sourcemind/internal/usecases"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testReport() *generator.Report {
	return &generator.Report{
		Title: "Review",
		Run: usecases.Snapshot{
			Phase:      usecases.PhaseComplete,
			Repository: "octocat/Hello-World",
			Metadata: &domain.RepositoryMetadata{
				FullName:        "octocat/Hello-World",
				StargazersCount: 1500,
				ForksCount:      3,
			},
			Languages: domain.LanguageBreakdown{"Go": 900, "Shell": 100},
			Result: &domain.AnalysisResult{
				Summary:         "A greeting program.",
				TechStack:       []string{"Go", "Make"},
				Complexity:      domain.ComplexityMedium,
				InnovationScore: 72,
				SecurityAnalysis: domain.SecurityAssessment{
					Score:     80,
					RiskLevel: domain.RiskLow,
					Vulnerabilities: []domain.Vulnerability{
						{Severity: domain.SeverityHigh, Type: "Injection", Description: "Unsanitized input"},
					},
				},
				ProjectBlueprint: []domain.BlueprintFile{{Path: "main.go", Description: "Entry"}},
			},
		},
	}
}

func TestRenderReport(t *testing.T) {
	t.Parallel()

	report := testReport()
	summary := generator.NewGenerator("").GenerateSummary(report)
	text := output.RenderReport(report, summary)

	assert.Contains(t, text, "Review")
	assert.Contains(t, text, "octocat/Hello-World")
	assert.Contains(t, text, "★ 1500")
	assert.Contains(t, text, "Innovation 72/100")
	assert.Contains(t, text, "Complexity Medium")
	assert.Contains(t, text, "Go, Make")
	assert.Contains(t, text, "90.0%")
	assert.Contains(t, text, "1 vulnerabilities")
	assert.Contains(t, text, "Injection: Unsanitized input")
	assert.Contains(t, text, "main.go")
}

func TestRenderReport_NoResult(t *testing.T) {
	t.Parallel()

	report := testReport()
	report.Title = ""
	report.Run.Result = nil

	text := output.RenderReport(report, generator.Summary{})
	assert.Contains(t, text, generator.DefaultTitle)
	assert.NotContains(t, text, "Overview")
}

func TestConsole_Progress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	console := output.NewConsole(&buf)

	console.Progress(usecases.Snapshot{Phase: usecases.PhaseFetchingMetadata, Repository: "octocat/Hello-World"})
	console.Progress(usecases.Snapshot{Phase: usecases.PhaseAnalyzingWithAI})
	console.Progress(usecases.Snapshot{Phase: usecases.PhaseError, ErrorMessage: "Failed to parse analysis results."})
	console.Progress(usecases.Snapshot{Phase: usecases.PhaseIdle})

	text := buf.String()
	assert.Contains(t, text, "Fetching metadata for octocat/Hello-World")
	assert.Contains(t, text, "Analyzing with AI")
	assert.Contains(t, text, "Failed to parse analysis results.")
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}
