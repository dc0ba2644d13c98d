package ai

import "context"

// GeminiGenerator wraps GeminiClient with a fixed model for chat.
type GeminiGenerator struct {
	client *GeminiClient
	model  string
}

// NewGeminiGenerator builds a Gemini-based ChatGenerator.
func NewGeminiGenerator(client *GeminiClient, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// Chat implements ChatGenerator using Gemini.
func (g *GeminiGenerator) Chat(ctx context.Context, systemPrompt string, history []Message, message string) (string, error) {
	return g.client.GenerateChat(ctx, g.model, systemPrompt, history, message)
}
