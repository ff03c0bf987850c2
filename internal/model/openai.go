package model

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/mkraev/switchboard/internal/domain"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// OpenAIProvider wraps the OpenAI Chat Completions API. The API key is
// read from the environment by the SDK.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a provider for the given model identifier.
func NewOpenAIProvider(modelID string) *OpenAIProvider {
	client := openai.NewClient()
	return &OpenAIProvider{client: &client, model: modelID}
}

// NewOpenAIProviderFromClient creates a provider around an existing client,
// useful for tests and custom base URLs.
func NewOpenAIProviderFromClient(client *openai.Client, modelID string) *OpenAIProvider {
	return &OpenAIProvider{client: client, model: modelID}
}

// Complete performs a single non-streaming chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            p.buildMessages(req),
		Model:               p.model,
		Temperature:         openai.Float(defaultTemperature),
		MaxCompletionTokens: openai.Int(defaultMaxTokens),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  tdef.Parameters,
				},
			}
		}
		params.Tools = tools
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("openai api returned no choices")
	}

	choice := resp.Choices[0]
	out := Response{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func (p *OpenAIProvider) buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		case domain.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case domain.RoleTool:
			// Tool observations go back to the model as user content so the
			// reasoning loop can act on them.
			messages = append(messages, openai.UserMessage("Observation:\n"+m.Content))
		}
	}
	return messages
}
