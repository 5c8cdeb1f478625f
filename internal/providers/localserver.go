package providers

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"curator/internal/models"
)

// LocalServer talks to an OpenAI-compatible local inference server (Ollama,
// LM Studio, llama.cpp server). Same wire protocol as the OpenAI provider,
// different base URL, never treated as cloud.
type LocalServer struct {
	inner *OpenAI
}

func NewLocalServer(baseURL, model, promptTemplate string) *LocalServer {
	cfg := openai.DefaultConfig("local")
	cfg.BaseURL = baseURL
	client := openai.NewClientWithConfig(cfg)
	return &LocalServer{
		inner: NewOpenAIWithClient(client, model, promptTemplate),
	}
}

func (p *LocalServer) ID() string { return "local-server" }
func (p *LocalServer) IsCloud() bool { return false }

func (p *LocalServer) IsAvailable(ctx context.Context) bool {
	return p.inner.IsAvailable(ctx)
}

func (p *LocalServer) Categorize(ctx context.Context, sig models.FileSignature) (Proposal, error) {
	return p.inner.Categorize(ctx, sig)
}
