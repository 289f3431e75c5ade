package classifier

import (
	"context"
	"path"
	"path/filepath"
	"sourcemind/internal/domain"
	"strings"
)

// Classifier determines if dependencies point back into the analyzed repository
type Classifier struct {
	internalPatterns []string
}

// NewClassifier creates a new dependency classifier
func NewClassifier(internalPatterns []string) *Classifier {
	return &Classifier{
		internalPatterns: internalPatterns,
	}
}

// Patterns returns the patterns the classifier matches against
func (c *Classifier) Patterns() []string {
	return c.internalPatterns
}

// ForRepository returns a classifier that adds patterns derived from the
// repository: its import paths, the modules the analysis identified and the
// names its manifests declare
func (c *Classifier) ForRepository(
	metadata *domain.RepositoryMetadata,
	modules []domain.ModuleInsight,
	manifests []*domain.ManifestFile,
) domain.DependencyClassifier {
	patterns := append([]string{}, c.internalPatterns...)
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		seen[p] = true
	}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		patterns = append(patterns, p)
	}

	// Relative references always stay inside the repository
	add("./")
	add("../")

	if metadata != nil && metadata.FullName != "" {
		add("github.com/" + metadata.FullName + "/")
		if host := hostPath(metadata.HTMLURL); host != "" {
			add(host + "/")
		}
	}

	for _, module := range modules {
		p := strings.Trim(strings.TrimPrefix(module.Path, "./"), "/")
		if p == "" {
			continue
		}
		add(p)
		if module.Type == domain.ModuleDir {
			add(p + "/")
			continue
		}
		if ext := path.Ext(p); ext != "" {
			add(strings.TrimSuffix(p, ext))
		}
	}

	for _, manifest := range manifests {
		if manifest != nil && manifest.Module != "" {
			add(manifest.Module)
			add(manifest.Module + "/")
		}
	}

	return NewClassifier(patterns)
}

// ClassifyDependencies classifies a list of dependencies in place
func (c *Classifier) ClassifyDependencies(
	ctx context.Context,
	dependencies []*domain.DeclaredDependency,
) []*domain.DeclaredDependency {
	if dependencies == nil {
		return nil
	}

	for _, dep := range dependencies {
		if dep != nil {
			dep.IsInternal = c.IsInternal(ctx, dep)
		}
	}

	return dependencies
}

// IsInternal checks if a single dependency is internal
func (c *Classifier) IsInternal(ctx context.Context, dependency *domain.DeclaredDependency) bool {
	if dependency == nil || dependency.Name == "" {
		return false
	}

	name := dependency.Name
	trimmed := strings.TrimPrefix(name, "./")
	for _, pattern := range c.internalPatterns {
		if c.matchesPattern(name, pattern) || (trimmed != name && c.matchesPattern(trimmed, pattern)) {
			return true
		}
	}

	return false
}

// matchesPattern checks if a dependency name matches a given pattern
func (c *Classifier) matchesPattern(name, pattern string) bool {
	if name == pattern {
		return true
	}

	return c.matchesWildcardPattern(name, pattern) ||
		c.matchesPrefixPattern(name, pattern) ||
		c.matchesSuffixPattern(name, pattern) ||
		c.matchesContainsPattern(name, pattern)
}

// matchesWildcardPattern checks if name matches a wildcard pattern
func (c *Classifier) matchesWildcardPattern(name, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return false
	}

	matched, err := filepath.Match(pattern, name)
	return err == nil && matched
}

// matchesPrefixPattern checks if name matches a prefix pattern ("pkg/" or "com.example.")
func (c *Classifier) matchesPrefixPattern(name, pattern string) bool {
	if !strings.HasSuffix(pattern, "/") && !strings.HasSuffix(pattern, ".") {
		return false
	}

	return strings.HasPrefix(name, pattern)
}

// matchesSuffixPattern checks if name matches a suffix pattern ("/internal" or ".corp")
func (c *Classifier) matchesSuffixPattern(name, pattern string) bool {
	if strings.HasSuffix(pattern, "/") || strings.HasSuffix(pattern, ".") {
		return false
	}
	if !strings.HasPrefix(pattern, "/") && !strings.HasPrefix(pattern, ".") {
		return false
	}

	return strings.HasSuffix(name, pattern)
}

// matchesContainsPattern checks if name contains a plain pattern given with
// the "~" marker, e.g. "~acme"
func (c *Classifier) matchesContainsPattern(name, pattern string) bool {
	needle, ok := strings.CutPrefix(pattern, "~")
	return ok && needle != "" && strings.Contains(name, needle)
}

func hostPath(rawURL string) string {
	rest, ok := strings.CutPrefix(rawURL, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(rawURL, "http://")
	}
	if !ok {
		return ""
	}
	return strings.TrimSuffix(rest, "/")
}
