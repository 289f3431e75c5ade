package usecases

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sourcemind/internal/domain"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const missingKeyMessage = `A Google Gemini API Key is required. Set it with "sourcemind credentials set gemini-key".`

// DefaultManifestParseTimeout bounds the parsing of a single blueprint manifest
const DefaultManifestParseTimeout = 5 * time.Second

// Phase is the state of the analysis workflow
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseFetchingMetadata Phase = "fetching_metadata"
	PhaseAnalyzingWithAI  Phase = "analyzing_with_ai"
	PhaseComplete         Phase = "complete"
	PhaseError            Phase = "error"
)

// Snapshot is a point-in-time copy of the workflow state. Metadata and
// Languages are copied; Result, Manifests and ModuleDependencies are shared
// with later snapshots of the same run and must be treated as read-only.
type Snapshot struct {
	Phase              Phase                        `json:"phase"`
	RunID              string                       `json:"run_id,omitempty"`
	Repository         string                       `json:"repository,omitempty"`
	ErrorKind          domain.ErrorKind             `json:"error_kind,omitempty"`
	ErrorMessage       string                       `json:"error_message,omitempty"`
	Metadata           *domain.RepositoryMetadata   `json:"metadata,omitempty"`
	Languages          domain.LanguageBreakdown     `json:"languages,omitempty"`
	Result             *domain.AnalysisResult       `json:"analysis,omitempty"`
	Manifests          []*domain.ManifestFile       `json:"manifests,omitempty"`
	ModuleDependencies []*domain.DeclaredDependency `json:"module_dependencies,omitempty"`
	StartedAt          time.Time                    `json:"started_at"`
	FinishedAt         time.Time                    `json:"finished_at"`
}

// Terminal reports whether the run has finished
func (s Snapshot) Terminal() bool {
	return s.Phase == PhaseComplete || s.Phase == PhaseError
}

// AnalyzeUseCase orchestrates a single repository analysis
type AnalyzeUseCase struct {
	metadataClient domain.MetadataClient
	analyzer       domain.Analyzer
	credentials    domain.CredentialStore
	scanner        domain.ManifestScanner
	parser         domain.ManifestParser
	classifiers    domain.ClassifierFactory
	logger         *zap.Logger
	parseTimeout   time.Duration

	runMu     sync.Mutex
	stateMu   sync.RWMutex
	state     Snapshot
	observers []func(Snapshot)
}

// NewAnalyzeUseCase creates a new analyze use case with dependency injection.
// scanner, parser and classifiers may be nil to skip blueprint processing.
func NewAnalyzeUseCase(
	metadataClient domain.MetadataClient,
	analyzer domain.Analyzer,
	credentials domain.CredentialStore,
	scanner domain.ManifestScanner,
	parser domain.ManifestParser,
	classifiers domain.ClassifierFactory,
	logger *zap.Logger,
) *AnalyzeUseCase {
	return &AnalyzeUseCase{
		metadataClient: metadataClient,
		analyzer:       analyzer,
		credentials:    credentials,
		scanner:        scanner,
		parser:         parser,
		classifiers:    classifiers,
		logger:         logger,
		parseTimeout:   DefaultManifestParseTimeout,
		state:          Snapshot{Phase: PhaseIdle},
	}
}

// SetManifestParseTimeout changes how long a single manifest may take to parse
// before it is skipped
func (uc *AnalyzeUseCase) SetManifestParseTimeout(d time.Duration) {
	uc.runMu.Lock()
	defer uc.runMu.Unlock()
	uc.parseTimeout = d
}

// OnTransition registers an observer called synchronously on every transition
func (uc *AnalyzeUseCase) OnTransition(fn func(Snapshot)) {
	uc.stateMu.Lock()
	defer uc.stateMu.Unlock()
	uc.observers = append(uc.observers, fn)
}

// Snapshot returns a copy of the current state
func (uc *AnalyzeUseCase) Snapshot() Snapshot {
	uc.stateMu.RLock()
	defer uc.stateMu.RUnlock()
	return uc.state.clone()
}

func (s Snapshot) clone() Snapshot {
	if s.Metadata != nil {
		metadata := *s.Metadata
		metadata.Languages = maps.Clone(s.Metadata.Languages)
		s.Metadata = &metadata
	}
	s.Languages = maps.Clone(s.Languages)
	return s
}

// Reset discards the previous run and returns to Idle
func (uc *AnalyzeUseCase) Reset() {
	uc.runMu.Lock()
	defer uc.runMu.Unlock()

	uc.transition(func(s *Snapshot) {
		*s = Snapshot{Phase: PhaseIdle}
	})
}

// Execute runs the analysis workflow for an "owner/name" identifier. Input
// and credential failures are returned without touching the state; any other
// failure ends the run in the Error phase and the returned snapshot reflects it.
func (uc *AnalyzeUseCase) Execute(ctx context.Context, input string) (*Snapshot, error) {
	uc.runMu.Lock()
	defer uc.runMu.Unlock()

	if !uc.credentials.HasUsableKey() {
		return nil, domain.NewError(domain.KindMissingCredential, missingKeyMessage, nil)
	}
	apiKey := uc.credentials.Get(domain.SecretAIKey)

	id, err := domain.ParseRepositoryIdentifier(input)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	uc.logger.Info("Starting repository analysis",
		zap.String("run_id", runID),
		zap.String("repository", id.String()))

	uc.transition(func(s *Snapshot) {
		*s = Snapshot{
			Phase:      PhaseFetchingMetadata,
			RunID:      runID,
			Repository: id.String(),
			StartedAt:  time.Now(),
		}
	})

	token := uc.credentials.Get(domain.SecretMetadataToken)
	metadata, languages, readme, err := uc.fetchMetadata(ctx, id, token)
	if err != nil {
		return uc.fail(err)
	}

	metadata.Languages = languages
	uc.transition(func(s *Snapshot) {
		s.Phase = PhaseAnalyzingWithAI
		s.Metadata = metadata
		s.Languages = languages
	})

	uc.logger.Info("Analyzing repository with AI",
		zap.String("run_id", runID),
		zap.Int("readme_chars", len(readme)),
		zap.Int("languages", len(languages)))

	result, err := uc.analyzer.Analyze(ctx, apiKey, readme, metadata)
	if err != nil {
		return uc.fail(err)
	}
	if result == nil {
		return uc.fail(errors.New("analyzer returned no result"))
	}

	manifests, moduleDeps := uc.processBlueprint(ctx, metadata, result)

	uc.transition(func(s *Snapshot) {
		s.Phase = PhaseComplete
		s.Result = result
		s.Manifests = manifests
		s.ModuleDependencies = moduleDeps
		s.FinishedAt = time.Now()
	})

	snapshot := uc.Snapshot()
	uc.logger.Info("Repository analysis completed",
		zap.String("run_id", runID),
		zap.Int("innovation_score", result.InnovationScore),
		zap.String("complexity", string(result.Complexity)),
		zap.Int("manifests", len(manifests)),
		zap.Duration("duration", snapshot.FinishedAt.Sub(snapshot.StartedAt)))

	return &snapshot, nil
}

// fetchMetadata runs the three metadata calls concurrently. A failure does not
// cancel its siblings; errors are examined in a fixed order after the join.
func (uc *AnalyzeUseCase) fetchMetadata(
	ctx context.Context,
	id domain.RepositoryIdentifier,
	token string,
) (*domain.RepositoryMetadata, domain.LanguageBreakdown, string, error) {
	uc.logger.Debug("Fetching repository metadata",
		zap.String("repository", id.String()),
		zap.Bool("has_token", token != ""))

	var (
		metadata     *domain.RepositoryMetadata
		languages    domain.LanguageBreakdown
		readme       string
		metadataErr  error
		languagesErr error
		readmeErr    error
	)

	var g errgroup.Group
	g.Go(func() error {
		metadata, metadataErr = uc.metadataClient.FetchRepositoryMetadata(ctx, id.Owner, id.Name, token)
		return nil
	})
	g.Go(func() error {
		languages, languagesErr = uc.metadataClient.FetchLanguageBreakdown(ctx, id.Owner, id.Name, token)
		return nil
	})
	g.Go(func() error {
		readme, readmeErr = uc.metadataClient.FetchReadme(ctx, id.Owner, id.Name, token)
		return nil
	})
	_ = g.Wait()

	for _, err := range []error{metadataErr, languagesErr, readmeErr} {
		if err != nil {
			return nil, nil, "", err
		}
	}
	if metadata == nil {
		return nil, nil, "", errors.New("metadata client returned no repository")
	}
	if languages == nil {
		languages = domain.LanguageBreakdown{}
	}

	uc.logger.Debug("Fetched repository metadata",
		zap.String("repository", metadata.FullName),
		zap.Int("stars", metadata.StargazersCount),
		zap.Int("languages", len(languages)),
		zap.Int("readme_chars", len(readme)))

	return metadata, languages, readme, nil
}

// fail moves the run to the Error phase
func (uc *AnalyzeUseCase) fail(err error) (*Snapshot, error) {
	var typed *domain.Error
	if !errors.As(err, &typed) {
		typed = domain.NewUnexpectedError(err)
	}

	uc.logger.Error("Repository analysis failed",
		zap.String("kind", string(typed.Kind)),
		zap.String("detail", domain.Describe(typed)))

	uc.transition(func(s *Snapshot) {
		s.Phase = PhaseError
		s.ErrorKind = typed.Kind
		s.ErrorMessage = typed.Error()
		s.FinishedAt = time.Now()
	})

	snapshot := uc.Snapshot()
	return &snapshot, typed
}

// transition applies a state change and notifies observers outside the lock
func (uc *AnalyzeUseCase) transition(apply func(*Snapshot)) {
	uc.stateMu.Lock()
	apply(&uc.state)
	snapshot := uc.state.clone()
	observers := append([]func(Snapshot){}, uc.observers...)
	uc.stateMu.Unlock()

	uc.logger.Debug("Analysis phase changed",
		zap.String("phase", string(snapshot.Phase)),
		zap.String("run_id", snapshot.RunID))

	for _, fn := range observers {
		fn(snapshot)
	}
}

// processBlueprint parses the manifests among the blueprint files and
// classifies the dependencies named by the module insights. It never fails
// the run: unparsable manifests are logged and skipped.
func (uc *AnalyzeUseCase) processBlueprint(
	ctx context.Context,
	metadata *domain.RepositoryMetadata,
	result *domain.AnalysisResult,
) ([]*domain.ManifestFile, []*domain.DeclaredDependency) {
	var manifests []*domain.ManifestFile
	if uc.scanner != nil && uc.parser != nil {
		for _, manifest := range uc.scanner.DetectManifests(ctx, result.ProjectBlueprint) {
			deps, err := uc.parseManifest(ctx, manifest)
			if err != nil {
				uc.logger.Warn("Failed to parse blueprint manifest",
					zap.String("path", manifest.Path),
					zap.String("language", manifest.Language),
					zap.Error(err))
				continue
			}
			manifest.Dependencies = deps
			manifests = append(manifests, manifest)
		}
	}

	moduleDeps := collectModuleDependencies(result.RepoStructure)

	if uc.classifiers != nil {
		classifier := uc.classifiers.ForRepository(metadata, result.RepoStructure, manifests)
		classifier.ClassifyDependencies(ctx, moduleDeps)
		for _, manifest := range manifests {
			classifier.ClassifyDependencies(ctx, manifest.Dependencies)
		}
	}

	uc.logger.Debug("Processed blueprint",
		zap.Int("blueprint_files", len(result.ProjectBlueprint)),
		zap.Int("manifests", len(manifests)),
		zap.Int("module_dependencies", len(moduleDeps)))

	return manifests, moduleDeps
}

// parseManifest runs the parser under a per-manifest deadline. A parser that
// hangs or panics is abandoned and reported as an error.
func (uc *AnalyzeUseCase) parseManifest(
	ctx context.Context,
	manifest *domain.ManifestFile,
) ([]*domain.DeclaredDependency, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.parseTimeout)
	defer cancel()

	type parsed struct {
		deps []*domain.DeclaredDependency
		err  error
	}

	// An abandoned parse keeps writing to its own copy only
	work := *manifest
	done := make(chan parsed, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- parsed{err: fmt.Errorf("parser panicked: %v", r)}
			}
		}()
		deps, err := uc.parser.ParseFile(ctx, &work)
		done <- parsed{deps: deps, err: err}
	}()

	select {
	case result := <-done:
		if result.err == nil {
			manifest.Module = work.Module
		}
		return result.deps, result.err
	case <-ctx.Done():
		return nil, fmt.Errorf("parsing abandoned: %w", ctx.Err())
	}
}

// collectModuleDependencies returns the distinct dependency names of all
// modules in first-seen order
func collectModuleDependencies(modules []domain.ModuleInsight) []*domain.DeclaredDependency {
	seen := make(map[string]bool)
	var deps []*domain.DeclaredDependency
	for _, module := range modules {
		for _, name := range module.Dependencies {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			deps = append(deps, &domain.DeclaredDependency{Name: name, Ecosystem: "module"})
		}
	}
	return deps
}
