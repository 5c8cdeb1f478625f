package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"curator/internal/embedder"
	"curator/internal/models"
	"curator/internal/prototype"
)

// Heuristic is the on-device provider: classifies against the learned
// prototypes, falling back to an extension-family guess when no prototype
// matches. Always available, never cloud; it is what degraded mode runs on.
type Heuristic struct {
	protos *prototype.Store
	embed  embedder.Embedder

	// extension family -> default category path for cold-start guesses
	fallback map[string]string
}

func NewHeuristic(protos *prototype.Store, embed embedder.Embedder) *Heuristic {
	return &Heuristic{
		protos: protos,
		embed:  embed,
		fallback: map[string]string{
			"pdf": "Documents", "doc": "Documents", "docx": "Documents", "txt": "Documents", "md": "Documents",
			"xls": "Spreadsheets", "xlsx": "Spreadsheets", "csv": "Spreadsheets",
			"jpg": "Images", "jpeg": "Images", "png": "Images", "gif": "Images", "heic": "Images",
			"mp4": "Videos", "mov": "Videos", "mkv": "Videos",
			"mp3": "Audio", "wav": "Audio", "flac": "Audio",
			"zip": "Archives", "tar": "Archives", "gz": "Archives", "dmg": "Archives",
			"go": "Code", "py": "Code", "js": "Code", "ts": "Code", "rs": "Code", "java": "Code",
		},
	}
}

func (p *Heuristic) ID() string { return "heuristic" }

func (p *Heuristic) IsCloud() bool { return false }

func (p *Heuristic) IsAvailable(_ context.Context) bool { return true }

func (p *Heuristic) Categorize(ctx context.Context, sig models.FileSignature) (Proposal, error) {
	var emb pgvector.Vector
	var err error
	if p.embed != nil {
		emb, err = p.embed.Embed(ctx, embedder.SignatureText(sig))
		if err != nil {
			return Proposal{}, fmt.Errorf("heuristic embedding: %w", err)
		}
	}

	if len(emb.Slice()) > 0 {
		cls, err := p.protos.Classify(ctx, emb, 0)
		if err != nil {
			return Proposal{}, err
		}
		if cls != nil {
			return Proposal{
				CategoryPath: cls.CategoryPath,
				Confidence:   cls.Confidence,
				Rationale:    fmt.Sprintf("prototype match (similarity %.2f)", cls.Similarity),
			}, nil
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(sig.Extension, "."))
	if category, ok := p.fallback[ext]; ok {
		return Proposal{
			CategoryPath: category,
			Confidence:   0.35,
			Rationale:    fmt.Sprintf("extension fallback (.%s)", ext),
		}, nil
	}

	return Proposal{}, fmt.Errorf("%w: no prototype or extension match for %q", models.ErrNotFound, sig.Filename)
}
