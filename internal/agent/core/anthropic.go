package core

import (
	"context"
	"encoding/json"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rcabanilla/gridseer/config"
)

// AnthropicProvider implements LLMProvider on the official Anthropic SDK.
// Conversion to and from SDK message types happens only here; the rest of the
// core sees ConversationTurn values.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a provider for the Anthropic messages API.
func NewAnthropicProvider(cfg config.LLMConfig) *AnthropicProvider {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	return &AnthropicProvider{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Model returns the configured model identifier.
func (p *AnthropicProvider) Model() string { return p.model }

// Generate sends the transcript and the live tool set to the model and
// returns its turn. Both a text-only response and a response carrying tool
// calls come back as one assistant turn.
func (p *AnthropicProvider) Generate(ctx context.Context, system string, transcript []ConversationTurn, tools []ToolDescriptor) (ConversationTurn, TokenUsage, error) {
	messages := convertTranscript(transcript)
	if len(messages) == 0 {
		return ConversationTurn{}, TokenUsage{}, fmt.Errorf("no valid messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(p.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return ConversationTurn{}, TokenUsage{}, fmt.Errorf("anthropic message call failed: %w", err)
	}

	turn := ConversationTurn{Kind: TurnAssistant}
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			turn.Blocks = append(turn.Blocks, ContentBlock{Type: "text", Text: block.Text})
		case "tool_use":
			var input map[string]interface{}
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &input)
			}
			if input == nil {
				input = map[string]interface{}{}
			}
			turn.Blocks = append(turn.Blocks, ContentBlock{
				Type:     "tool_use",
				ToolCall: &ToolCall{ID: block.ID, Name: ToolName(block.Name), Arguments: input},
			})
		}
	}

	usage := TokenUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	return turn, usage, nil
}

func convertTranscript(transcript []ConversationTurn) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, turn := range transcript {
		switch turn.Kind {
		case TurnUser:
			if turn.Text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Text)))
			}

		case TurnAssistant:
			var content []anthropic.ContentBlockParamUnion
			for _, b := range turn.Blocks {
				switch b.Type {
				case "text":
					if b.Text != "" {
						content = append(content, anthropic.NewTextBlock(b.Text))
					}
				case "tool_use":
					if b.ToolCall == nil {
						continue
					}
					var input interface{} = b.ToolCall.Arguments
					if b.ToolCall.Arguments == nil {
						input = map[string]interface{}{}
					}
					content = append(content, anthropic.NewToolUseBlock(b.ToolCall.ID, input, string(b.ToolCall.Name)))
				}
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}

		case TurnToolResults:
			var content []anthropic.ContentBlockParamUnion
			for _, e := range turn.Results {
				payload, err := json.Marshal(e.Result.Content)
				if err != nil {
					payload = []byte(`{"error":"unserializable tool result"}`)
				}
				content = append(content, anthropic.NewToolResultBlock(e.CallID, string(payload), e.Result.IsError))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewUserMessage(content...))
			}
		}
	}
	return messages
}

func convertTools(tools []ToolDescriptor) []anthropic.ToolUnionParam {
	sdkTools := make([]anthropic.ToolParam, 0, len(tools))
	for _, tool := range tools {
		sdkTool := anthropic.ToolParam{
			Name:        string(tool.Name),
			Description: anthropic.String(tool.Description),
		}
		if tool.InputSchema != nil {
			schemaJSON, _ := json.Marshal(tool.InputSchema)
			var inputSchema anthropic.ToolInputSchemaParam
			_ = json.Unmarshal(schemaJSON, &inputSchema)
			sdkTool.InputSchema = inputSchema
		}
		sdkTools = append(sdkTools, sdkTool)
	}
	unions := make([]anthropic.ToolUnionParam, len(sdkTools))
	for i := range sdkTools {
		unions[i] = anthropic.ToolUnionParam{OfTool: &sdkTools[i]}
	}
	return unions
}
