package catalog_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/shopbot-ai/shopbot/internal/catalog"
	"github.com/shopbot-ai/shopbot/internal/testutil"
)

func makeVector(dim int, fill float32, lead ...float32) []float32 {
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = fill
	}
	copy(vec, lead)
	return vec
}

func TestStoreRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := catalog.NewStore(db.Pool, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	dim := int(catalog.TextVectorDim)
	lamp := catalog.Product{ID: "p1", Name: "Desk Lamp", Price: 34.99, Tags: []string{"lighting"}}
	chair := catalog.Product{ID: "p2", Name: "Office Chair", Price: 189}

	// Two nearly-orthogonal directions so the ordering is unambiguous.
	lampVec := makeVector(dim, 0, 1)
	chairVec := makeVector(dim, 0, 0, 1)

	if err := store.Upsert(ctx, catalog.PartitionText, lamp, lampVec); err != nil {
		t.Fatalf("Upsert(lamp) error = %v", err)
	}
	if err := store.Upsert(ctx, catalog.PartitionText, chair, chairVec); err != nil {
		t.Fatalf("Upsert(chair) error = %v", err)
	}

	got, err := store.Search(ctx, catalog.PartitionText, makeVector(dim, 0, 0.95, 0.05), 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search() returned %d products, want 2", len(got))
	}
	if got[0].ID != "p1" {
		t.Errorf("nearest product = %s, want p1", got[0].ID)
	}
	if got[0].Price != 34.99 || len(got[0].Tags) != 1 {
		t.Errorf("payload round-trip lost fields: %+v", got[0])
	}

	count, err := store.Count(ctx, catalog.PartitionText)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

func TestStoreUpsertReplaces(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := catalog.NewStore(db.Pool, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	dim := int(catalog.TextVectorDim)
	vec := makeVector(dim, 0, 1)

	p := catalog.Product{ID: "p1", Name: "Desk Lamp", Price: 34.99}
	if err := store.Upsert(ctx, catalog.PartitionText, p, vec); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	p.Price = 29.99
	if err := store.Upsert(ctx, catalog.PartitionText, p, vec); err != nil {
		t.Fatalf("Upsert() replace error = %v", err)
	}

	got, err := store.Search(ctx, catalog.PartitionText, vec, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Search() returned %d products, want 1 after replace", len(got))
	}
	if got[0].Price != 29.99 {
		t.Errorf("price = %v, want the replaced value", got[0].Price)
	}
}

func TestStorePartitionsAreIsolated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := catalog.NewStore(db.Pool, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	textVec := makeVector(int(catalog.TextVectorDim), 0, 1)
	imageVec := makeVector(int(catalog.ImageVectorDim), 0, 1)

	p := catalog.Product{ID: "p1", Name: "Desk Lamp"}
	if err := store.Upsert(ctx, catalog.PartitionText, p, textVec); err != nil {
		t.Fatalf("Upsert(text) error = %v", err)
	}
	if err := store.Upsert(ctx, catalog.PartitionImage, p, imageVec); err != nil {
		t.Fatalf("Upsert(image) error = %v", err)
	}

	imageHits, err := store.Search(ctx, catalog.PartitionImage, imageVec, 5)
	if err != nil {
		t.Fatalf("Search(image) error = %v", err)
	}
	if len(imageHits) != 1 {
		t.Errorf("image partition has %d products, want 1", len(imageHits))
	}

	textCount, err := store.Count(ctx, catalog.PartitionText)
	if err != nil {
		t.Fatalf("Count(text) error = %v", err)
	}
	if textCount != 1 {
		t.Errorf("text partition count = %d, want 1", textCount)
	}
}
