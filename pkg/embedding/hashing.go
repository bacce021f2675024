package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Hashing is a local bag-of-words embedder using the hashing trick. Texts
// sharing words score high in cosine similarity; word order is ignored.
type Hashing struct {
	dim int
}

// NewHashing returns a Hashing embedder of the given dimension.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Hashing{dim: dim}
}

func (h *Hashing) Name() string   { return "hashing" }
func (h *Hashing) Dimension() int { return h.dim }

// Embed hashes each lower-cased word into a signed bucket and normalizes the
// result. Text without words maps to the zero vector.
func (h *Hashing) Embed(_ context.Context, text string) ([]float64, error) {
	v := make([]float64, h.dim)
	for _, tok := range tokenize(text) {
		sum := xxhash.Sum64String(tok)
		idx := sum % uint64(h.dim)
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}
	return normalize(v), nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
