package embedding

import (
	"context"
	"hash/fnv"
)

// MockService is a deterministic in-process embedder for tests. It
// hashes each character trigram into the vector so that distinct texts land at
// distinct points — retrieval tests need that to exercise similarity
// ordering, unlike a mock that returns one constant vector.
type MockService struct {
	dim int
}

// NewMockService builds a mock embedder with a fixed dimension.
func NewMockService(dim int) *MockService {
	if dim <= 0 {
		dim = 8
	}
	return &MockService{dim: dim}
}

func (m *MockService) WarmUp(ctx context.Context) error { return nil }
func (m *MockService) Ping(ctx context.Context) bool     { return true }
func (m *MockService) Dimension() int                    { return m.dim }

func (m *MockService) Embed(ctx context.Context, text string) ([]float32, error) {
	return hashVector(text, m.dim), nil
}

func (m *MockService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, m.dim)
	}
	return out, nil
}

// hashVector deterministically maps text to a unit-ish vector by
// hashing each overlapping trigram into a bucket and counting hits per
// bucket, then normalizing — similar texts share trigrams and land closer
// together under cosine similarity than dissimilar ones.
func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	if len(text) == 0 {
		return vec
	}
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		end := i + 3
		if end > len(runes) {
			end = len(runes)
		}
		gram := string(runes[i:end])

		h := fnv.New32a()
		_, _ = h.Write([]byte(gram))
		bucket := int(h.Sum32() % uint32(dim))
		vec[bucket] += 1
	}
	return normalize(vec)
}

func normalize(vec []float32) []float32 {
	var sumSquares float32
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return vec
	}
	norm := sqrt32(sumSquares)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func sqrt32(x float32) float32 {
	// Newton's method, a handful of iterations is plenty for unit-norm use.
	if x == 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}
