package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockEmbedder provides deterministic embedding vectors for testing.
//
// By default it generates a deterministic vector from content using SHA-256.
// Explicit mappings can be added for precise cosine similarity control.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	dim     int
	calls   int
}

// NewMockEmbedder creates a mock embedder with the given vector dimensions.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a given content string.
// Use this to control exact cosine similarity between test inputs.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// Calls returns how many embed requests the mock has served.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// RegisterEmbedder registers the mock as a Genkit embedder under name,
// e.g. "mock/text-embedder".
func (e *MockEmbedder) RegisterEmbedder(g *genkit.Genkit, name string) ai.Embedder {
	return genkit.DefineEmbedder(g, name, &ai.EmbedderOptions{
		Label:      "Mock Embedder " + name,
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{
			Embedding: e.vectorFor(documentContent(doc)),
		}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *MockEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	if v, ok := e.vectors[content]; ok {
		e.mu.Unlock()
		return v
	}
	e.mu.Unlock()

	return deterministicVector(content, e.dim)
}

// documentContent extracts the embeddable content from a document: text
// parts plus media URIs, so image documents also get stable vectors.
func documentContent(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		switch p.Kind {
		case ai.PartText, ai.PartMedia:
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// deterministicVector generates a unit-norm vector from content via SHA-256.
// Equal content always maps to the same vector.
func deterministicVector(content string, dim int) []float32 {
	vec := make([]float32, dim)
	var sum float64

	seed := sha256.Sum256([]byte(content))
	buf := seed[:]
	for i := 0; i < dim; i++ {
		if i*4+4 > len(buf) {
			next := sha256.Sum256(buf)
			buf = append(buf, next[:]...)
		}
		bits := binary.BigEndian.Uint32(buf[i*4 : i*4+4])
		// Map to [-1, 1).
		v := float64(bits)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		sum += v * v
	}

	// Normalize so cosine similarity is well-behaved.
	norm := math.Sqrt(sum)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
