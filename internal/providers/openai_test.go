package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
)

// mockChatCompleter scripts the OpenAI-compatible API surface.
type mockChatCompleter struct {
	response   string
	err        error
	modelsErr  error
	lastPrompt string
}

func (m *mockChatCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if len(req.Messages) > 0 {
		m.lastPrompt = req.Messages[0].Content
	}
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.response}},
		},
	}, nil
}

func (m *mockChatCompleter) ListModels(ctx context.Context) (openai.ModelsList, error) {
	return openai.ModelsList{}, m.modelsErr
}

func testSignature() models.FileSignature {
	return models.FileSignature{
		Filename:     "invoice_2025.pdf",
		ParentFolder: "inbox",
		Extension:    "pdf",
		Preview:      "INVOICE #1042",
	}
}

func TestOpenAICategorize(t *testing.T) {
	mock := &mockChatCompleter{
		response: `{"category": "Documents/Finance/Invoices", "confidence": 0.92, "rationale": "invoice number in preview", "keywords": ["invoice"]}`,
	}
	p := NewOpenAIWithClient(mock, "gpt-4o-mini", "")

	prop, err := p.Categorize(context.Background(), testSignature())
	require.NoError(t, err)
	assert.Equal(t, "Documents/Finance/Invoices", prop.CategoryPath)
	assert.Equal(t, 0.92, prop.Confidence)
	assert.Equal(t, []string{"invoice"}, prop.Keywords)

	// The prompt carries the signature fields.
	assert.Contains(t, mock.lastPrompt, "invoice_2025.pdf")
	assert.Contains(t, mock.lastPrompt, "INVOICE #1042")
}

func TestOpenAICategorize_APIError(t *testing.T) {
	mock := &mockChatCompleter{err: errors.New("rate limited")}
	p := NewOpenAIWithClient(mock, "gpt-4o-mini", "")

	_, err := p.Categorize(context.Background(), testSignature())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestOpenAICategorize_Unconfigured(t *testing.T) {
	p := NewOpenAI("", "gpt-4o-mini", "")
	if p.client != nil {
		t.Skip("OPENAI_API_KEY set in environment")
	}

	assert.False(t, p.IsAvailable(context.Background()))
	_, err := p.Categorize(context.Background(), testSignature())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrProviderUnavailable))
}

func TestOpenAIIsAvailable(t *testing.T) {
	up := NewOpenAIWithClient(&mockChatCompleter{}, "m", "")
	assert.True(t, up.IsAvailable(context.Background()))

	down := NewOpenAIWithClient(&mockChatCompleter{modelsErr: errors.New("dns failure")}, "m", "")
	assert.False(t, down.IsAvailable(context.Background()))
}

func TestParseProposal(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Proposal
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"category": "Code/Go", "confidence": 0.8}`,
			want:    Proposal{CategoryPath: "Code/Go", Confidence: 0.8},
		},
		{
			name:    "fenced json",
			content: "```json\n{\"category\": \"Images\", \"confidence\": 0.7}\n```",
			want:    Proposal{CategoryPath: "Images", Confidence: 0.7},
		},
		{
			name:    "zero confidence defaults high",
			content: `{"category": "Docs"}`,
			want:    Proposal{CategoryPath: "Docs", Confidence: 1.0},
		},
		{
			name:    "confidence clamped",
			content: `{"category": "Docs", "confidence": 1.7}`,
			want:    Proposal{CategoryPath: "Docs", Confidence: 1.0},
		},
		{
			name:    "missing category",
			content: `{"confidence": 0.9}`,
			wantErr: true,
		},
		{
			name:    "not json",
			content: "I think this is probably an invoice.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProposal(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	out := RenderPrompt(DefaultPromptTemplate, testSignature())
	assert.Contains(t, out, "Filename: invoice_2025.pdf")
	assert.Contains(t, out, "Parent folder: inbox")
	assert.False(t, strings.Contains(out, "{{"), "all placeholders substituted")
}
