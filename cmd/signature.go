package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"curator/internal/models"
)

// requestForPath builds a categorization request from a filesystem path:
// signature from the name/parent/extension, fingerprint from the content
// checksum when the file is readable.
func requestForPath(path string) (models.CategorizationRequest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.CategorizationRequest{}, fmt.Errorf("resolve %q: %w", path, err)
	}

	req := models.CategorizationRequest{
		Signature: models.FileSignature{
			Filename:     filepath.Base(abs),
			ParentFolder: filepath.Base(filepath.Dir(abs)),
			Extension:    strings.TrimPrefix(filepath.Ext(abs), "."),
		},
	}

	f, err := os.Open(abs)
	if err != nil {
		// The engine works from the signature alone; a missing file just
		// means no fingerprint, so pattern memory cannot short-circuit.
		return req, nil
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return req, nil
	}
	req.Fingerprint = hex.EncodeToString(h.Sum(nil))
	return req, nil
}
