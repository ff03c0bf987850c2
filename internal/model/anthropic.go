package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/mkraev/switchboard/internal/domain"
)

// AnthropicProvider wraps the Anthropic Messages API. The API key is read
// from the environment by the SDK.
type AnthropicProvider struct {
	client *anthropic.Client
	model  anthropic.Model
}

// NewAnthropicProvider creates a provider for the given model identifier.
func NewAnthropicProvider(modelID string) *AnthropicProvider {
	client := anthropic.NewClient()
	return &AnthropicProvider{client: &client, model: anthropic.Model(modelID)}
}

// NewAnthropicProviderFromClient creates a provider around an existing
// client, useful for tests and custom base URLs.
func NewAnthropicProviderFromClient(client *anthropic.Client, modelID string) *AnthropicProvider {
	return &AnthropicProvider{client: client, model: anthropic.Model(modelID)}
}

// Complete performs a single non-streaming message call.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:       p.model,
		Messages:    p.buildMessages(req),
		MaxTokens:   defaultMaxTokens,
		Temperature: anthropic.Float(defaultTemperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = p.buildTools(req.Tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var out Response
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	return out, nil
}

func (p *AnthropicProvider) buildMessages(req Request) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case domain.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case domain.RoleTool:
			// Tool observations go back to the model as user content so the
			// reasoning loop can act on them.
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock("Observation:\n"+m.Content)))
		case domain.RoleSystem:
			// System content is carried in params.System.
		}
	}
	return messages
}

func (p *AnthropicProvider) buildTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tool.Parameters["required"]; exists {
				if reqSlice, ok := required.([]string); ok {
					inputSchema.Required = reqSlice
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
	}
	return anthropicTools
}
