package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI is the fallback provider.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI constructs the OpenAI provider.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key required")
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (o *OpenAI) Name() string  { return "openai" }
func (o *OpenAI) Model() string { return o.model }

// Generate performs one chat completion call.
func (o *OpenAI) Generate(ctx context.Context, req Request) (RawReply, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemInstruction),
			openai.UserMessage(BuildPrompt(req)),
		},
		Temperature: openai.Float(0.8),
		MaxTokens:   openai.Int(512),
	})
	if err != nil {
		return RawReply{}, fmt.Errorf("openai: completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return RawReply{}, ErrEmpty
	}
	return ParseRawReply(completion.Choices[0].Message.Content)
}
