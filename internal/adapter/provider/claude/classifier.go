// Package claude classifies citizen requests with the Anthropic API.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/soloviev-m/civicdesk-backend/internal/config"
)

// Classifier asks the model for a category label and a short suggested
// response for an incoming request. Failures are reported to the caller,
// who treats classification as best-effort.
type Classifier struct {
	client anthropic.Client
	model  string
	log    *slog.Logger
}

// NewClassifier creates a Classifier from ClassifierConfig.
func NewClassifier(cfg config.ClassifierConfig, logger *slog.Logger) *Classifier {
	return &Classifier{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		log:    logger.With("adapter", "claude"),
	}
}

// classifyResult is the JSON shape the model is instructed to return.
type classifyResult struct {
	Category   string `json:"category"`
	Suggestion string `json:"suggestion"`
}

// Classify returns a category label and a suggested response draft for
// the request described by title and description.
func (c *Classifier) Classify(ctx context.Context, title, description string) (category, suggestion string, err error) {
	prompt := buildPrompt(title, description)

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("claude: api call: %w", err)
	}

	if len(msg.Content) == 0 {
		return "", "", fmt.Errorf("claude: empty response")
	}

	jsonStr, err := extractJSON(msg.Content[0].Text)
	if err != nil {
		return "", "", fmt.Errorf("claude: %w", err)
	}

	var result classifyResult
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return "", "", fmt.Errorf("claude: decode response: %w", err)
	}

	if result.Category == "" {
		return "", "", fmt.Errorf("claude: response has no category")
	}

	c.log.DebugContext(ctx, "request classified",
		slog.String("category", result.Category),
	)

	return result.Category, result.Suggestion, nil
}

// buildPrompt creates the classification prompt for one request.
func buildPrompt(title, description string) string {
	return fmt.Sprintf(`You are a dispatcher for a municipal citizen-request service.

Given a citizen request, classify it and draft a short response.

Title: %s

Description:
%s

Output ONLY a valid JSON object matching this exact schema:
{
  "category": "<one of: roads, housing, utilities, transport, landscaping, lighting, waste, other>",
  "suggestion": "<one-paragraph response draft in the language of the request>"
}

Rules:
- Pick exactly one category; use "other" only when nothing else fits
- Keep the suggestion polite, concrete, and under 80 words
- Output ONLY the JSON, no markdown, no explanations`, title, description)
}

// extractJSON finds the first complete JSON object in a string.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return s[start : end+1], nil
}
