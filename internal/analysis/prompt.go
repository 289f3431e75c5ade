package analysis

import (
	"encoding/json"
	"fmt"
	"sourcemind/internal/domain"
	"strings"
)

// MaxReadmeChars is the default README budget, counted in characters
const MaxReadmeChars = 25000

const promptTemplate = `You are SourceMind, an elite AI Technical Architect.

Your task is to analyze the GitHub repository based on the provided README and metadata.

CRITICAL OUTPUT REQUIREMENT:
You must deduce and reconstruct the likely **File Structure** of this project.
For each key file or module you identify:
1. **Tree Structure**: The likely path (e.g., 'src/models/user.ts').
2. **Function**: What does this file do?
3. **Dependencies**: What other files/libraries does it likely depend on?
4. **Issues**: What are potential design flaws, performance bottlenecks, or maintenance issues in this specific module?

Target: %s
Description: %s
Stars: %d
Forks: %d
Primary language: %s
Languages: %s

README Context:
%s

Provide a JSON response strictly following the schema.`

// Truncate keeps the first limit characters of s without splitting a
// multi-byte sequence
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// BuildPrompt renders the analysis instruction for one repository
func BuildPrompt(readme string, metadata *domain.RepositoryMetadata, maxReadmeChars int) string {
	if metadata == nil {
		metadata = &domain.RepositoryMetadata{}
	}

	languages := metadata.Languages
	if languages == nil {
		languages = domain.LanguageBreakdown{}
	}
	languagesJSON, err := json.Marshal(languages)
	if err != nil {
		languagesJSON = []byte("{}")
	}

	description := strings.TrimSpace(metadata.Description)
	if description == "" {
		description = "(none)"
	}
	language := metadata.Language
	if language == "" {
		language = "(unknown)"
	}

	return fmt.Sprintf(promptTemplate,
		metadata.FullName,
		description,
		metadata.StargazersCount,
		metadata.ForksCount,
		language,
		languagesJSON,
		Truncate(readme, maxReadmeChars),
	)
}
