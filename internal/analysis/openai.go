package analysis

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are a technical analyst. Return ONLY valid JSON matching the provided schema."

// OpenAIModel calls any OpenAI-compatible chat completion endpoint
type OpenAIModel struct {
	baseURL string
	model   string
}

func NewOpenAIModel(baseURL, model string) *OpenAIModel {
	return &OpenAIModel{baseURL: strings.TrimSuffix(baseURL, "/"), model: model}
}

func (o *OpenAIModel) Name() string { return "openai:" + o.model }

func (o *OpenAIModel) GenerateJSON(ctx context.Context, apiKey, prompt string, schema *Field) (string, error) {
	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	definition := ToOpenAI(schema)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "repository_analysis",
				Schema: &definition,
				// vulnerability items leave fields optional, which strict mode rejects
				Strict: false,
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
