// Package providers holds the categorization provider implementations the
// orchestrator cascades across: OpenAI and Gemini in the cloud, an
// OpenAI-compatible local server (Ollama, LM Studio), and the on-device
// prototype heuristic.
package providers

import (
	"context"
	"strings"

	"curator/internal/models"
)

// Proposal is one provider's raw categorization output, before calibration.
type Proposal struct {
	CategoryPath string   `json:"category"`
	Confidence   float64  `json:"confidence"`
	Rationale    string   `json:"rationale,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Provider is one registered categorization backend.
type Provider interface {
	ID() string
	Categorize(ctx context.Context, sig models.FileSignature) (Proposal, error)
	IsAvailable(ctx context.Context) bool
	// IsCloud marks remote providers. Degraded mode never selects them.
	IsCloud() bool
}

// DefaultPromptTemplate is the categorization prompt shared by the LLM
// providers. Placeholders are substituted with the file signature fields.
const DefaultPromptTemplate = `You are a file categorization assistant.
Given a file's name and context, choose the best hierarchical category path
(for example "Documents/Finance/Invoices") and respond with JSON only:
{"category": "...", "confidence": 0.0-1.0, "rationale": "...", "keywords": ["..."]}

Filename: {{FILENAME}}
Parent folder: {{PARENT}}
Extension: {{EXTENSION}}
Content preview: {{PREVIEW}}`

// RenderPrompt substitutes the signature into a prompt template.
func RenderPrompt(template string, sig models.FileSignature) string {
	prompt := template
	prompt = strings.ReplaceAll(prompt, "{{FILENAME}}", sig.Filename)
	prompt = strings.ReplaceAll(prompt, "{{PARENT}}", sig.ParentFolder)
	prompt = strings.ReplaceAll(prompt, "{{EXTENSION}}", sig.Extension)
	prompt = strings.ReplaceAll(prompt, "{{PREVIEW}}", sig.Preview)
	return prompt
}
