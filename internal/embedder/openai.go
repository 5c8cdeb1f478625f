package embedder

import (
	"context"
	"fmt"
	"os"

	"github.com/pgvector/pgvector-go"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"curator/internal/vecmath"
)

// OpenAI generates embeddings through the OpenAI API.
type OpenAI struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

func NewOpenAI(apiKey, modelID string) (*OpenAI, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI embedder will be disabled.")
		return &OpenAI{client: nil}, nil
	}

	var dim int
	switch modelID {
	case string(openai.AdaEmbeddingV2):
		dim = 1536
	case "text-embedding-3-small":
		dim = 1536
	case "text-embedding-3-large":
		dim = 3072
	default:
		log.Warnf("Unknown OpenAI embedding model '%s', defaulting dimension to 1536.", modelID)
		dim = 1536
	}

	client := openai.NewClient(apiKey)
	log.Infof("OpenAI embedder initialized with model %s (dimension %d)", modelID, dim)

	return &OpenAI{
		client: client,
		model:  openai.EmbeddingModel(modelID),
		dim:    dim,
	}, nil
}

func (e *OpenAI) Name() string { return "openai" }
func (e *OpenAI) ModelName() string { return string(e.model) }
func (e *OpenAI) Dimension() int { return e.dim }

func (e *OpenAI) Embed(ctx context.Context, text string) (pgvector.Vector, error) {
	if e.client == nil {
		return pgvector.Vector{}, fmt.Errorf("OpenAI embedder is not initialized (missing API key)")
	}
	if text == "" {
		log.Warn("Embed called with empty text for OpenAI")
		return pgvector.NewVector(make([]float32, e.dim)), nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("OpenAI API error generating embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("OpenAI API returned no embedding data")
	}
	if len(resp.Data[0].Embedding) != e.dim {
		return pgvector.Vector{}, fmt.Errorf("OpenAI API returned unexpected embedding dimension: got %d, want %d",
			len(resp.Data[0].Embedding), e.dim)
	}

	// The API already returns unit vectors; renormalize anyway so downstream
	// cosine math can rely on it.
	return vecmath.Normalize(pgvector.NewVector(resp.Data[0].Embedding)), nil
}
