package domain

import (
	"sort"
	"time"
)

// Placeholders returned instead of README text when the README cannot be used
const (
	NoReadmePlaceholder     = "No README found."
	ReadmeDecodePlaceholder = "Error decoding README content. Content might be binary or invalid encoding."
)

// Secret names one of the two credentials the tool works with
type Secret string

const (
	SecretAIKey         Secret = "gemini-key"
	SecretMetadataToken Secret = "github-token"
)

// RepositoryOwner is the owner block of a repository record
type RepositoryOwner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// RepositoryMetadata is a snapshot of the repository record fetched once per run
type RepositoryMetadata struct {
	Name            string            `json:"name"`
	FullName        string            `json:"full_name"`
	Description     string            `json:"description"`
	StargazersCount int               `json:"stargazers_count"`
	ForksCount      int               `json:"forks_count"`
	Language        string            `json:"language"`
	HTMLURL         string            `json:"html_url"`
	Owner           RepositoryOwner   `json:"owner"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Languages       LanguageBreakdown `json:"languages,omitempty"` // merged in by the orchestrator
}

// LanguageBreakdown maps a language name to its byte count
type LanguageBreakdown map[string]int64

// LanguageShare is one row of a language breakdown prepared for display
type LanguageShare struct {
	Language string  `json:"language"`
	Bytes    int64   `json:"bytes"`
	Percent  float64 `json:"percent"`
}

// Total returns the sum of all byte counts
func (b LanguageBreakdown) Total() int64 {
	var total int64
	for _, n := range b {
		total += n
	}
	return total
}

// Shares returns the breakdown sorted by size (largest first, then by name)
func (b LanguageBreakdown) Shares() []LanguageShare {
	total := b.Total()
	shares := make([]LanguageShare, 0, len(b))
	for lang, n := range b {
		share := LanguageShare{Language: lang, Bytes: n}
		if total > 0 {
			share.Percent = float64(n) * 100 / float64(total)
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Bytes != shares[j].Bytes {
			return shares[i].Bytes > shares[j].Bytes
		}
		return shares[i].Language < shares[j].Language
	})
	return shares
}

type Complexity string

const (
	ComplexityLow    Complexity = "Low"
	ComplexityMedium Complexity = "Medium"
	ComplexityHigh   Complexity = "High"
)

type RiskLevel string

const (
	RiskCritical RiskLevel = "Critical"
	RiskHigh     RiskLevel = "High"
	RiskModerate RiskLevel = "Moderate"
	RiskLow      RiskLevel = "Low"
	RiskSafe     RiskLevel = "Safe"
)

type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

type ModuleKind string

const (
	ModuleFile ModuleKind = "file"
	ModuleDir  ModuleKind = "dir"
)

// ModuleInsight is the model's judgment of one file or directory
type ModuleInsight struct {
	Path            string     `json:"path"`
	Type            ModuleKind `json:"type"`
	Description     string     `json:"description"`
	Dependencies    []string   `json:"dependencies"`
	PotentialIssues []string   `json:"potentialIssues"`
}

// BlueprintFile is an illustrative file; it is not guaranteed to run
type BlueprintFile struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

type Vulnerability struct {
	Severity    Severity `json:"severity"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
}

type SecurityAssessment struct {
	Score           int             `json:"score"`
	RiskLevel       RiskLevel       `json:"riskLevel"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	ComplianceCheck []string        `json:"complianceCheck"`
}

// AnalysisResult is the validated output of the AI call
type AnalysisResult struct {
	Summary               string             `json:"summary"`
	Purpose               string             `json:"purpose"`
	TechStack             []string           `json:"techStack"`
	KeyFeatures           []string           `json:"keyFeatures"`
	Installation          string             `json:"installation"`
	Complexity            Complexity         `json:"complexity"`
	UseCases              []string           `json:"useCases"`
	InnovationScore       int                `json:"innovationScore"`
	SuggestedImprovements []string           `json:"suggestedImprovements"`
	RepoStructure         []ModuleInsight    `json:"repoStructure"`
	ProjectBlueprint      []BlueprintFile    `json:"projectBlueprint"`
	SecurityAnalysis      SecurityAssessment `json:"securityAnalysis"`
}

// ManifestFile is a blueprint file recognized as a dependency manifest
type ManifestFile struct {
	Path         string                `json:"path"`             // "backend/go.mod"
	Language     string                `json:"language"`         // "go"
	Module       string                `json:"module,omitempty"` // name the manifest gives its own project
	Content      []byte                `json:"-"`
	Dependencies []*DeclaredDependency `json:"dependencies"`
}

// DeclaredDependency is a package declared by a manifest or named by a module insight
type DeclaredDependency struct {
	Name       string `json:"name"`        // "github.com/spf13/cobra"
	Version    string `json:"version"`     // "v1.10.1"
	Ecosystem  string `json:"ecosystem"`   // "go-modules", "npm", "maven", "pip"
	IsInternal bool   `json:"is_internal"` // true when it refers to a module of the repository itself
}
