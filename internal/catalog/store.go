package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides vector similarity access to the product catalog.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a catalog Store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: pool, logger: logger}, nil
}

// Upsert inserts or replaces a product in the given partition.
func (s *Store) Upsert(ctx context.Context, p Partition, item Product, embedding []float32) error {
	if item.ID == "" {
		return fmt.Errorf("product id is required")
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is required for product %q", item.ID)
	}

	table, err := p.table()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling product %q: %w", item.ID, err)
	}

	vec := pgvector.NewVector(embedding)
	sql := fmt.Sprintf(`INSERT INTO %s (id, product, embedding) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET product = EXCLUDED.product, embedding = EXCLUDED.embedding`, table)

	if _, err := s.db.Exec(ctx, sql, item.ID, payload, vec); err != nil {
		return fmt.Errorf("upserting product %q into %s partition: %w", item.ID, p, err)
	}

	s.logger.Debug("upserted product", "id", item.ID, "partition", string(p))
	return nil
}

// Search returns up to limit products from the partition, ordered by cosine
// distance to the query embedding (nearest first). Zero matches yields an
// empty, non-nil slice.
func (s *Store) Search(ctx context.Context, p Partition, embedding []float32, limit int) ([]Product, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is required")
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	table, err := p.table()
	if err != nil {
		return nil, err
	}

	vec := pgvector.NewVector(embedding)
	sql := fmt.Sprintf(`SELECT product FROM %s ORDER BY embedding <=> $1 LIMIT $2`, table)

	rows, err := s.db.Query(ctx, sql, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("querying %s partition: %w", p, err)
	}
	defer rows.Close()

	products := make([]Product, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		var item Product
		if err := json.Unmarshal(payload, &item); err != nil {
			// Broken rows are a store data fault; skip rather than fail the query.
			s.logger.Warn("skipping unreadable product row", "partition", string(p), "error", err)
			continue
		}
		products = append(products, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s partition rows: %w", p, err)
	}

	return products, nil
}

// Count returns the number of products stored in the partition.
func (s *Store) Count(ctx context.Context, p Partition) (int64, error) {
	table, err := p.table()
	if err != nil {
		return 0, err
	}

	var count int64
	sql := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)
	if err := s.db.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s partition: %w", p, err)
	}
	return count, nil
}
