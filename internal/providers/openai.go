package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
)

// ChatCompleter is the minimal OpenAI-compatible surface the LLM providers
// need. Narrow on purpose so tests can mock it.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAI categorizes through the OpenAI chat API.
type OpenAI struct {
	client         ChatCompleter
	model          string
	promptTemplate string
}

func NewOpenAI(apiKey, model, promptTemplate string) *OpenAI {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if promptTemplate == "" {
		promptTemplate = DefaultPromptTemplate
	}
	p := &OpenAI{model: model, promptTemplate: promptTemplate}
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI categorization provider will be disabled.")
		return p
	}
	p.client = openai.NewClient(apiKey)
	return p
}

// NewOpenAIWithClient wires an explicit client; used by the local-server
// provider and tests.
func NewOpenAIWithClient(client ChatCompleter, model, promptTemplate string) *OpenAI {
	if promptTemplate == "" {
		promptTemplate = DefaultPromptTemplate
	}
	return &OpenAI{client: client, model: model, promptTemplate: promptTemplate}
}

func (p *OpenAI) ID() string { return "openai" }
func (p *OpenAI) IsCloud() bool { return true }

func (p *OpenAI) IsAvailable(ctx context.Context) bool {
	if p.client == nil {
		return false
	}
	_, err := p.client.ListModels(ctx)
	if err != nil {
		log.Debugf("OpenAI availability probe failed: %v", err)
		return false
	}
	return true
}

func (p *OpenAI) Categorize(ctx context.Context, sig models.FileSignature) (Proposal, error) {
	if p.client == nil {
		return Proposal{}, fmt.Errorf("%w: openai provider is not configured", models.ErrProviderUnavailable)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: RenderPrompt(p.promptTemplate, sig),
			},
		},
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Proposal{}, fmt.Errorf("no choices returned from OpenAI")
	}
	return parseProposal(resp.Choices[0].Message.Content)
}

// parseProposal decodes the JSON object an LLM provider returns, tolerating
// markdown code fences around it.
func parseProposal(content string) (Proposal, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed Proposal
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Proposal{}, fmt.Errorf("failed to parse provider response as JSON: %w\nResponse content: %s", err, content)
	}
	if parsed.CategoryPath == "" {
		return Proposal{}, fmt.Errorf("provider response missing category: %s", content)
	}
	// Defensive defaults
	if parsed.Confidence == 0 {
		parsed.Confidence = 1.0
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	}
	if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return parsed, nil
}
