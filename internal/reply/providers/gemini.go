package providers

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini is the primary provider.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini constructs the Gemini provider.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

// Generate performs one Gemini call, asking for JSON output directly.
func (g *Gemini) Generate(ctx context.Context, req Request) (RawReply, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(BuildPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0.8),
		})
	if err != nil {
		return RawReply{}, fmt.Errorf("gemini: generate: %w", err)
	}
	return ParseRawReply(resp.Text())
}
