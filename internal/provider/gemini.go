package provider

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"google.golang.org/genai"
)

// placeholderAPIKey keeps the client constructible when no credential is set.
// Every send will then fail at the provider boundary instead of at startup.
const placeholderAPIKey = "missing-api-key"

// GeminiClient implements Client against the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed provider client. A missing API key
// is logged but does not fail construction.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		slog.Error("GEMINI_API_KEY is not set; assistant replies will fail until it is configured")
		apiKey = placeholderAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// StartChat creates a fresh chat session bound to the given context snapshot.
func (c *GeminiClient) StartChat(ctx context.Context, cfg ChatConfig) (Chat, error) {
	history := make([]*genai.Content, 0, len(cfg.History))
	for _, turn := range cfg.History {
		history = append(history, genai.NewContentFromText(turn.Text, genai.Role(turn.Role)))
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(cfg.Temperature),
	}

	chat, err := c.client.Chats.Create(ctx, c.model, genCfg, history)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

// geminiChat wraps one genai chat session.
type geminiChat struct {
	chat *genai.Chat
}

// SendStream submits one message and streams reply fragments.
func (g *geminiChat) SendStream(ctx context.Context, text string, image *ImagePayload) iter.Seq2[string, error] {
	parts := []genai.Part{{Text: text}}
	if image != nil {
		parts = append(parts, genai.Part{
			InlineData: &genai.Blob{MIMEType: image.MIMEType, Data: image.Data},
		})
	}

	return func(yield func(string, error) bool) {
		for resp, err := range g.chat.SendMessageStream(ctx, parts...) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			if txt := resp.Text(); txt != "" {
				if !yield(txt, nil) {
					return
				}
			}
		}
	}
}
