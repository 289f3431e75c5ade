package parser

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"sourcemind/internal/domain"
	"strings"

	"github.com/aquasecurity/trivy/pkg/dependency/parser/golang/mod"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/java/pom"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/nodejs/npm"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/nodejs/packagejson"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/nodejs/yarn"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/python/pip"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/python/pipenv"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/python/poetry"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/python/pyproject"
	"github.com/aquasecurity/trivy/pkg/dependency/parser/python/uv"
	ftypes "github.com/aquasecurity/trivy/pkg/fanal/types"
	xio "github.com/aquasecurity/trivy/pkg/x/io"
	"go.uber.org/zap"
)

// manifestLanguages maps the lower-cased manifest names we can parse to their
// ecosystem language
var manifestLanguages = map[string]string{
	"go.mod":            "go",
	"package.json":      "nodejs",
	"package-lock.json": "nodejs",
	"yarn.lock":         "nodejs",
	"pom.xml":           "java",
	"requirements.txt":  "python",
	"pipfile.lock":      "python",
	"poetry.lock":       "python",
	"uv.lock":           "python",
	"pyproject.toml":    "python",
}

// manifestName is the case-insensitive key of a manifest path
func manifestName(filePath string) string {
	return strings.ToLower(path.Base(filePath))
}

// CanParse checks if the file name is a manifest this package can parse.
// Names are matched case-insensitively.
func CanParse(filePath string) bool {
	_, ok := manifestLanguages[manifestName(filePath)]
	return ok
}

// LanguageOf returns the ecosystem language of a manifest, "unknown" when
// the name is not supported
func LanguageOf(filePath string) string {
	if language, ok := manifestLanguages[manifestName(filePath)]; ok {
		return language
	}
	return "unknown"
}

// SupportedFileTypes returns the manifest names this package can parse
func SupportedFileTypes() []string {
	names := make([]string, 0, len(manifestLanguages))
	for name := range manifestLanguages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parser extracts declared dependencies from manifests using Trivy
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a new manifest parser
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseFile parses a manifest and returns the dependencies it declares. The
// manifest's own project name, when the format carries one, is recorded on
// file.Module.
func (p *Parser) ParseFile(ctx context.Context, file *domain.ManifestFile) ([]*domain.DeclaredDependency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := xio.NewReadSeekerAt(bytes.NewReader(file.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	var packages []ftypes.Package
	switch file.Language {
	case "go":
		packages, err = p.parseGoFile(reader, file.Path)
	case "nodejs":
		packages, err = p.parseNodeJSFile(reader, file)
	case "java":
		packages, err = p.parseJavaFile(reader, file.Path)
	case "python":
		packages, err = p.parsePythonFile(reader, file.Path)
	default:
		return nil, fmt.Errorf("unsupported language: %s", file.Language)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s file %s: %w", file.Language, file.Path, err)
	}

	ecosystem := p.getEcosystem(file.Language)
	dependencies := make([]*domain.DeclaredDependency, 0, len(packages))
	for i := range packages {
		pkg := &packages[i]
		if pkg.Relationship == ftypes.RelationshipRoot {
			file.Module = pkg.Name
			continue
		}
		if pkg.Name == "" {
			continue
		}
		dependencies = append(dependencies, &domain.DeclaredDependency{
			Name:      pkg.Name,
			Version:   pkg.Version,
			Ecosystem: ecosystem,
		})
	}

	p.logger.Debug("Parsed manifest",
		zap.String("path", file.Path),
		zap.String("module", file.Module),
		zap.Int("dependencies", len(dependencies)))

	return dependencies, nil
}

func (p *Parser) parseGoFile(reader xio.ReadSeekerAt, filePath string) ([]ftypes.Package, error) {
	if manifestName(filePath) != "go.mod" {
		return nil, fmt.Errorf("unsupported Go file: %s", filePath)
	}
	packages, _, err := mod.NewParser(false, false).Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("go.mod parser error: %w", err)
	}
	return packages, nil
}

func (p *Parser) parseNodeJSFile(reader xio.ReadSeekerAt, file *domain.ManifestFile) ([]ftypes.Package, error) {
	switch manifestName(file.Path) {
	case "package-lock.json":
		packages, _, err := npm.NewParser().Parse(reader)
		return packages, err
	case "package.json":
		pkg, err := packagejson.NewParser().Parse(reader)
		if err != nil {
			return nil, err
		}
		file.Module = pkg.Name

		// package.json declares ranges, so the constraint stands in for the version
		names := make([]string, 0, len(pkg.Dependencies))
		for name := range pkg.Dependencies {
			names = append(names, name)
		}
		sort.Strings(names)

		packages := make([]ftypes.Package, 0, len(names))
		for _, name := range names {
			packages = append(packages, ftypes.Package{Name: name, Version: pkg.Dependencies[name]})
		}
		return packages, nil
	case "yarn.lock":
		packages, _, _, err := yarn.NewParser().Parse(reader)
		return packages, err
	default:
		return nil, fmt.Errorf("unsupported Node.js file: %s", file.Path)
	}
}

func (p *Parser) parseJavaFile(reader xio.ReadSeekerAt, filePath string) ([]ftypes.Package, error) {
	if manifestName(filePath) != "pom.xml" {
		return nil, fmt.Errorf("unsupported Java file: %s", filePath)
	}
	// Offline: blueprint poms cannot be resolved against a remote repository
	packages, _, err := pom.NewParser("", pom.WithOffline(true)).Parse(reader)
	return packages, err
}

func (p *Parser) parsePythonFile(reader xio.ReadSeekerAt, filePath string) ([]ftypes.Package, error) {
	switch manifestName(filePath) {
	case "requirements.txt":
		packages, _, err := pip.NewParser(false).Parse(reader)
		return packages, err
	case "pipfile.lock":
		packages, _, err := pipenv.NewParser().Parse(reader)
		return packages, err
	case "poetry.lock":
		packages, _, err := poetry.NewParser().Parse(reader)
		return packages, err
	case "uv.lock":
		packages, _, err := uv.NewParser().Parse(reader)
		return packages, err
	case "pyproject.toml":
		data, err := pyproject.NewParser().Parse(reader)
		if err != nil {
			return nil, err
		}
		// pyproject.toml carries names only
		var packages []ftypes.Package
		for _, name := range data.MainDeps().Items() {
			packages = append(packages, ftypes.Package{Name: name})
		}
		return packages, nil
	default:
		return nil, fmt.Errorf("unsupported Python file: %s", filePath)
	}
}

func (p *Parser) getEcosystem(language string) string {
	switch language {
	case "go":
		return "go-modules"
	case "nodejs":
		return "npm"
	case "java":
		return "maven"
	case "python":
		return "pip"
	default:
		return language
	}
}
