package scanner

import (
	"context"
	"path"
	"sourcemind/internal/domain"
	"sourcemind/internal/parser"
	"strings"

	"go.uber.org/zap"
)

// Scanner finds dependency manifests among the blueprint files of an analysis
type Scanner struct {
	logger *zap.Logger
}

// NewScanner creates a new manifest scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger: logger,
	}
}

// DetectManifests returns the blueprint files that are dependency manifests,
// in blueprint order. Files with empty content are skipped.
func (s *Scanner) DetectManifests(ctx context.Context, files []domain.BlueprintFile) []*domain.ManifestFile {
	s.logger.Debug("Detecting manifests in blueprint", zap.Int("files", len(files)))

	seen := make(map[string]bool)
	var manifests []*domain.ManifestFile
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		filePath := NormalizePath(file.Path)
		if filePath == "" || seen[filePath] {
			continue
		}
		if !parser.CanParse(filePath) {
			continue
		}
		if strings.TrimSpace(file.Content) == "" {
			s.logger.Debug("Skipping empty manifest", zap.String("path", filePath))
			continue
		}

		seen[filePath] = true
		manifests = append(manifests, &domain.ManifestFile{
			Path:     filePath,
			Language: s.DetectLanguageFromFile(filePath),
			Content:  []byte(file.Content),
		})
	}

	s.logger.Debug("Detected manifests", zap.Int("manifests", len(manifests)))

	return manifests
}

// DetectLanguageFromFile detects the ecosystem language from a manifest name
func (s *Scanner) DetectLanguageFromFile(filePath string) string {
	return parser.LanguageOf(filePath)
}

// SupportedFileTypes returns the manifest names we can parse, lower-cased
func (s *Scanner) SupportedFileTypes() []string {
	return parser.SupportedFileTypes()
}

// NormalizePath cleans a model-supplied path into a relative slash path
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	return p
}
