// Package ingest seeds the catalog: products are embedded into the text
// partition from their name, description, and tags, and into the image
// partition from their product photo when one exists on disk.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/shopbot-ai/shopbot/internal/catalog"
)

// Embedder produces catalog embeddings. *retrieval.Router satisfies it.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}

// Store is the catalog write access the seeder needs.
type Store interface {
	Upsert(ctx context.Context, p catalog.Partition, item catalog.Product, embedding []float32) error
}

// Summary reports what a seeding run accomplished.
type Summary struct {
	TextIndexed  int // products embedded into the text partition
	ImageIndexed int // products embedded into the image partition
	Skipped      int // products skipped after an embedding or store failure
}

// Seeder loads product data and writes both catalog partitions.
type Seeder struct {
	embedder  Embedder
	store     Store
	imagesDir string
	logger    *slog.Logger
}

// New creates a Seeder. imagesDir is the root for products' relative
// ImagePath values.
func New(embedder Embedder, store Store, imagesDir string, logger *slog.Logger) (*Seeder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		embedder:  embedder,
		store:     store,
		imagesDir: imagesDir,
		logger:    logger,
	}, nil
}

// SeedFile loads a JSON array of products from path and seeds them.
func (s *Seeder) SeedFile(ctx context.Context, path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading products file: %w", err)
	}

	var products []catalog.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parsing products file %s: %w", path, err)
	}
	return s.Seed(ctx, products)
}

// Seed embeds and upserts each product. A product that fails to embed or
// store is logged and skipped; one bad record does not abort the run.
func (s *Seeder) Seed(ctx context.Context, products []catalog.Product) (*Summary, error) {
	sum := &Summary{}
	for i := range products {
		p := products[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}

		if err := s.seedText(ctx, p); err != nil {
			s.logger.Warn("skipping product in text partition", "id", p.ID, "error", err)
			sum.Skipped++
			continue
		}
		sum.TextIndexed++

		if p.ImagePath == "" {
			continue
		}
		if err := s.seedImage(ctx, p); err != nil {
			s.logger.Warn("product not indexed in image partition", "id", p.ID, "error", err)
			continue
		}
		sum.ImageIndexed++
	}

	s.logger.Info("catalog seeded",
		"products", len(products),
		"text_indexed", sum.TextIndexed,
		"image_indexed", sum.ImageIndexed,
		"skipped", sum.Skipped)
	return sum, nil
}

func (s *Seeder) seedText(ctx context.Context, p catalog.Product) error {
	text := p.SearchText()
	if text == "" {
		return fmt.Errorf("product has no searchable text")
	}
	vec, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding text: %w", err)
	}
	return s.store.Upsert(ctx, catalog.PartitionText, p, vec)
}

func (s *Seeder) seedImage(ctx context.Context, p catalog.Product) error {
	path := p.ImagePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.imagesDir, path)
	}
	img, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	vec, err := s.embedder.EmbedImage(ctx, img)
	if err != nil {
		return fmt.Errorf("embedding image: %w", err)
	}
	return s.store.Upsert(ctx, catalog.PartitionImage, p, vec)
}
