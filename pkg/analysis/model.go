package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// systemPrompt is the constant instruction sent with every analysis
// model call, per spec.md §4.4.
const systemPrompt = `You are a content analysis worker. Given the JSON-encoded ` +
	`description of a WAD or map, return a JSON object describing gameplay ` +
	`metadata: skill tags, estimated difficulty, and a short summary. Respond ` +
	`with JSON only, no prose.`

// ModelClient calls the external model with a constant system prompt and
// JSON response format, per spec.md §4.4.
type ModelClient struct {
	client *openai.Client
	model  string
}

func NewModelClient(apiKey, model string) *ModelClient {
	return &ModelClient{client: openai.NewClient(apiKey), model: model}
}

// Invoke sends inputJSON as the user message and unmarshals the model's
// JSON reply into result.
func (m *ModelClient) Invoke(ctx context.Context, inputJSON string, result any) error {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: inputJSON},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return fmt.Errorf("invoking analysis model: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("invoking analysis model: empty response")
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), result); err != nil {
		return fmt.Errorf("decoding model response: %w", err)
	}
	return nil
}
