package providers

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"curator/internal/models"
)

// Gemini categorizes through the Google Gemini API.
type Gemini struct {
	client         *genai.Client
	model          string
	promptTemplate string
}

func NewGemini(apiKey, model, promptTemplate string) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if promptTemplate == "" {
		promptTemplate = DefaultPromptTemplate
	}
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini categorization provider will be disabled.")
		return &Gemini{model: model, promptTemplate: promptTemplate}, nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Infof("Gemini categorization provider initialized with model %s", model)
	return &Gemini{client: client, model: model, promptTemplate: promptTemplate}, nil
}

func (p *Gemini) ID() string { return "gemini" }
func (p *Gemini) IsCloud() bool { return true }

func (p *Gemini) IsAvailable(_ context.Context) bool {
	// The genai SDK has no cheap ping; a configured client is considered
	// reachable and real failures are handled by the orchestrator's backoff.
	return p.client != nil
}

func (p *Gemini) Categorize(ctx context.Context, sig models.FileSignature) (Proposal, error) {
	if p.client == nil {
		return Proposal{}, fmt.Errorf("%w: gemini provider is not configured", models.ErrProviderUnavailable)
	}

	gm := p.client.GenerativeModel(p.model)
	resp, err := gm.GenerateContent(ctx, genai.Text(RenderPrompt(p.promptTemplate, sig)))
	if err != nil {
		return Proposal{}, fmt.Errorf("gemini generate content failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Proposal{}, fmt.Errorf("no candidates returned from Gemini")
	}

	var content string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content += string(text)
		}
	}
	if content == "" {
		return Proposal{}, fmt.Errorf("gemini returned no text content")
	}
	return parseProposal(content)
}
