package domain

import "context"

type MetadataClient interface {
	// returns the repository record; a missing repository is NotFound
	FetchRepositoryMetadata(ctx context.Context, owner, name, token string) (*RepositoryMetadata, error)

	// returns bytes per language; a missing resource yields an empty breakdown
	FetchLanguageBreakdown(ctx context.Context, owner, name, token string) (LanguageBreakdown, error)

	// returns the decoded README, or a placeholder when absent or undecodable
	FetchReadme(ctx context.Context, owner, name, token string) (string, error)
}

type Analyzer interface {
	// submits metadata and README to the model and returns the validated result
	Analyze(ctx context.Context, apiKey, readme string, metadata *RepositoryMetadata) (*AnalysisResult, error)
}

type CredentialStore interface {
	// returns the current secret or ""
	Get(secret Secret) string
	// persists a non-empty value, erases the entry for an empty one
	Set(secret Secret, value string)
	// reports whether the AI key is present
	HasUsableKey() bool
}

type ManifestScanner interface {
	// picks the dependency manifests out of the generated blueprint files
	DetectManifests(ctx context.Context, files []BlueprintFile) []*ManifestFile
}

type ManifestParser interface {
	// parses a manifest and extracts the dependencies it declares
	ParseFile(ctx context.Context, file *ManifestFile) ([]*DeclaredDependency, error)
}

type ClassifierFactory interface {
	// returns a classifier that also knows the modules of the analyzed repository
	ForRepository(metadata *RepositoryMetadata, modules []ModuleInsight, manifests []*ManifestFile) DependencyClassifier
}

type DependencyClassifier interface {
	// classifies a list of dependencies in place
	ClassifyDependencies(ctx context.Context, dependencies []*DeclaredDependency) []*DeclaredDependency
	// checks if a single dependency refers to the repository itself
	IsInternal(ctx context.Context, dependency *DeclaredDependency) bool
}
