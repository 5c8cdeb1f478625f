// Package embedder defines the embedding capability the engine consumes and
// its two implementations: a hashed-trigram local embedder (no model, no
// network) and an OpenAI API embedder. Both produce fixed-dimension,
// L2-normalized vectors.
package embedder

import (
	"context"
	"strings"

	"github.com/pgvector/pgvector-go"

	"curator/internal/models"
)

type Embedder interface {
	Name() string
	ModelName() string
	Dimension() int
	Embed(ctx context.Context, text string) (pgvector.Vector, error)
}

// SignatureText flattens a file signature into the text an embedder consumes.
func SignatureText(sig models.FileSignature) string {
	parts := []string{sig.Filename}
	if sig.ParentFolder != "" {
		parts = append(parts, sig.ParentFolder)
	}
	if sig.Extension != "" {
		parts = append(parts, sig.Extension)
	}
	if len(sig.Keywords) > 0 {
		parts = append(parts, strings.Join(sig.Keywords, " "))
	}
	if sig.Preview != "" {
		parts = append(parts, sig.Preview)
	}
	return strings.Join(parts, "\n")
}
