package analysis

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the model used when none is configured
const DefaultGeminiModel = "gemini-3-flash-preview"

// GeminiModel calls the Gemini API with a response schema
type GeminiModel struct {
	model   string
	baseURL string
}

// NewGeminiModel creates a Gemini adapter. An empty baseURL keeps the SDK default.
func NewGeminiModel(model, baseURL string) *GeminiModel {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiModel{model: model, baseURL: baseURL}
}

func (g *GeminiModel) Name() string { return "gemini:" + g.model }

// GenerateJSON builds a client for the supplied key since the key is a run input
func (g *GeminiModel) GenerateJSON(ctx context.Context, apiKey, prompt string, schema *Field) (string, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("creating Gemini client: %w", err)
	}

	resp, err := cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   ToGenai(schema),
		},
	)
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			text.WriteString(part.Text)
		}
	}
	return text.String(), nil
}
