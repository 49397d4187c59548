// Package catalog stores the product catalog in PostgreSQL + pgvector and
// serves similarity queries over two embedding partitions: one indexed by
// text embeddings, one by image embeddings.
package catalog

import (
	"fmt"
	"strings"
)

// Vector dimensions per partition. The pgvector schema in db/migrations
// must match these.
const (
	// TextVectorDim is the text embedding width (gemini-embedding-001
	// truncated via OutputDimensionality).
	TextVectorDim int32 = 768

	// ImageVectorDim is the image embedding width (multimodalembedding@001).
	ImageVectorDim int32 = 1408
)

// Product is a catalog item. The store treats it as an opaque payload:
// fields are persisted and returned as-is, never recomputed. Price being
// strictly positive is a data contract of the ingestion pipeline.
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImagePath   string   `json:"image_path"`
	Tags        []string `json:"tags"`
}

// SearchText is the textual representation embedded into the text partition.
func (p Product) SearchText() string {
	return strings.TrimSpace(p.Name + " " + p.Description + " " + strings.Join(p.Tags, " "))
}

// Partition selects which embedding index a store operation targets.
type Partition string

const (
	// PartitionText holds text-embedding vectors.
	PartitionText Partition = "text"

	// PartitionImage holds image-embedding vectors.
	PartitionImage Partition = "image"
)

// table maps a partition to its table name. The returned name is a constant,
// never derived from input, so it is safe to interpolate into SQL.
func (p Partition) table() (string, error) {
	switch p {
	case PartitionText:
		return "products_text", nil
	case PartitionImage:
		return "products_image", nil
	default:
		return "", fmt.Errorf("unknown catalog partition: %q", string(p))
	}
}
