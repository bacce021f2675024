package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// Mock produces pseudo-random unit vectors seeded by the text, so equal
// text always yields the same vector while different text is unrelated.
type Mock struct {
	dim int
}

// NewMock returns a Mock of the given dimension.
func NewMock(dim int) *Mock {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Mock{dim: dim}
}

func (m *Mock) Name() string   { return "mock" }
func (m *Mock) Dimension() int { return m.dim }

// Embed returns the vector for text. The generator is local to the call.
func (m *Mock) Embed(_ context.Context, text string) ([]float64, error) {
	sum := sha256.Sum256([]byte(text))
	r := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))

	v := make([]float64, m.dim)
	for i := range v {
		v[i] = r.Float64()*2 - 1
	}
	return normalize(v), nil
}
