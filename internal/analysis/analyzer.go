// Package analysis turns repository metadata and README text into a
// validated AnalysisResult by way of a structured-output model call.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sourcemind/internal/domain"
	"strings"

	"go.uber.org/zap"
)

const (
	emptyResponseMessage     = "SourceMind received no data from the AI model."
	malformedResponseMessage = "Failed to parse analysis results."

	// rawLogLimit caps how much of an unparsable response is logged
	rawLogLimit = 2000
)

// Model sends one prompt and returns the raw JSON text the model produced
type Model interface {
	Name() string
	GenerateJSON(ctx context.Context, apiKey, prompt string, schema *Field) (string, error)
}

// Client implements domain.Analyzer on top of a Model
type Client struct {
	model          Model
	schema         *Field
	maxReadmeChars int
	logger         *zap.Logger
}

// NewClient creates an analyzer. A non-positive maxReadmeChars selects MaxReadmeChars.
func NewClient(model Model, maxReadmeChars int, logger *zap.Logger) *Client {
	if maxReadmeChars <= 0 {
		maxReadmeChars = MaxReadmeChars
	}
	return &Client{
		model:          model,
		schema:         Schema(),
		maxReadmeChars: maxReadmeChars,
		logger:         logger,
	}
}

// Analyze submits metadata and README to the model and validates the answer
func (c *Client) Analyze(
	ctx context.Context,
	apiKey, readme string,
	metadata *domain.RepositoryMetadata,
) (*domain.AnalysisResult, error) {
	prompt := BuildPrompt(readme, metadata, c.maxReadmeChars)

	c.logger.Debug("Starting Analyze",
		zap.String("model", c.model.Name()),
		zap.Int("prompt_chars", len(prompt)))

	text, err := c.model.GenerateJSON(ctx, apiKey, prompt, c.schema)
	if err != nil {
		reason := redact(err.Error(), apiKey)
		c.logger.Error("AI request failed",
			zap.String("model", c.model.Name()),
			zap.String("reason", reason))
		return nil, domain.NewError(domain.KindUpstream, "AI request failed: "+reason, err)
	}

	body := StripCodeFences(text)
	if body == "" {
		c.logger.Error("AI model returned an empty response", zap.String("model", c.model.Name()))
		return nil, domain.NewError(domain.KindEmptyResponse, emptyResponseMessage, nil)
	}

	if err := Validate(c.schema, []byte(body)); err != nil {
		c.logger.Error("AI response failed validation",
			zap.Error(err),
			zap.String("raw", Truncate(body, rawLogLimit)))
		return nil, domain.NewError(domain.KindMalformedResponse, malformedResponseMessage, err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		c.logger.Error("Failed to decode AI response",
			zap.Error(err),
			zap.String("raw", Truncate(body, rawLogLimit)))
		return nil, domain.NewError(domain.KindMalformedResponse, malformedResponseMessage,
			fmt.Errorf("decoding analysis: %w", err))
	}

	c.logger.Debug("Completed Analyze",
		zap.Int("modules", len(result.RepoStructure)),
		zap.Int("blueprint_files", len(result.ProjectBlueprint)),
		zap.Int("innovation_score", result.InnovationScore))

	return &result, nil
}

// StripCodeFences removes a markdown fence some models wrap around JSON
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.Index(s, "\n"); i != -1 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if i := strings.LastIndex(s, "```"); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func redact(message, secret string) string {
	if secret == "" {
		return message
	}
	return strings.ReplaceAll(message, secret, "[REDACTED]")
}
