// Package retrieval routes similarity queries to the catalog partition
// matching the query modality. Text queries go through the text embedder to
// the text partition, image queries through the multimodal embedder to the
// image partition. The router performs no re-ranking: store order is
// returned as-is.
package retrieval

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"

	"github.com/shopbot-ai/shopbot/internal/catalog"
)

// Modality selects the embedding space for a query.
type Modality string

const (
	// ModalityText embeds the query text and searches the text partition.
	ModalityText Modality = "text"

	// ModalityImage embeds the query image and searches the image partition.
	ModalityImage Modality = "image"
)

// Query carries the raw query input. Exactly one field is consulted,
// depending on the modality.
type Query struct {
	// Text is the query string for ModalityText.
	Text string

	// Image is the raw image bytes for ModalityImage.
	Image []byte
}

// Store is the catalog access the router needs.
type Store interface {
	Search(ctx context.Context, p catalog.Partition, embedding []float32, limit int) ([]catalog.Product, error)
}

// Router embeds queries and dispatches them to the matching catalog
// partition.
type Router struct {
	textEmbedder  ai.Embedder
	imageEmbedder ai.Embedder
	store         Store
	logger        *slog.Logger
}

// NewRouter creates a Router. Both embedders and the store are required.
func NewRouter(textEmbedder, imageEmbedder ai.Embedder, store Store, logger *slog.Logger) (*Router, error) {
	if textEmbedder == nil {
		return nil, fmt.Errorf("text embedder is required")
	}
	if imageEmbedder == nil {
		return nil, fmt.Errorf("image embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		textEmbedder:  textEmbedder,
		imageEmbedder: imageEmbedder,
		store:         store,
		logger:        logger,
	}, nil
}

// Search embeds the query for the given modality and returns the nearest
// products from the matching partition, in store order. Zero matches yields
// an empty, non-nil slice.
func (r *Router) Search(ctx context.Context, m Modality, q Query, limit int) ([]catalog.Product, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var (
		embedding []float32
		partition catalog.Partition
		err       error
	)
	switch m {
	case ModalityText:
		if q.Text == "" {
			return nil, fmt.Errorf("text query is required")
		}
		embedding, err = r.EmbedText(ctx, q.Text)
		partition = catalog.PartitionText
	case ModalityImage:
		if len(q.Image) == 0 {
			return nil, fmt.Errorf("image query is required")
		}
		embedding, err = r.EmbedImage(ctx, q.Image)
		partition = catalog.PartitionImage
	default:
		return nil, fmt.Errorf("unknown query modality: %q", string(m))
	}
	if err != nil {
		return nil, err
	}

	products, err := r.store.Search(ctx, partition, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("searching %s partition: %w", partition, err)
	}

	r.logger.Debug("retrieval search completed",
		"modality", string(m),
		"limit", limit,
		"results", len(products))
	return products, nil
}

// EmbedText generates a text embedding truncated to the text partition's
// vector width.
func (r *Router) EmbedText(ctx context.Context, text string) ([]float32, error) {
	dim := catalog.TextVectorDim
	resp, err := r.textEmbedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return firstEmbedding(resp)
}

// EmbedImage generates a multimodal embedding for the raw image bytes. The
// content type is sniffed from the bytes.
func (r *Router) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	mime := http.DetectContentType(image)
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)

	doc := &ai.Document{Content: []*ai.Part{ai.NewMediaPart(mime, uri)}}
	resp, err := r.imageEmbedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{doc},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding image: %w", err)
	}
	return firstEmbedding(resp)
}

func firstEmbedding(resp *ai.EmbedResponse) ([]float32, error) {
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Embedding, nil
}
