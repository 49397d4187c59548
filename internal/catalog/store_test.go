package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeQuerier records SQL and serves canned rows. Only the methods a test
// exercises are implemented.
type fakeQuerier struct {
	execSQL  []string
	execArgs [][]any
	execErr  error

	querySQL []string
	rows     *fakeRows
	queryErr error

	countSQL []string
	count    int64
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.querySQL = append(f.querySQL, sql)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.countSQL = append(f.countSQL, sql)
	return fakeRow{count: f.count}
}

type fakeRow struct {
	count int64
}

func (r fakeRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.count
	return nil
}

// fakeRows serves pre-marshaled product payloads. The embedded pgx.Rows is
// nil; calling an unimplemented method panics, which is fine for tests.
type fakeRows struct {
	pgx.Rows
	payloads [][]byte
	pos      int
}

func (r *fakeRows) Next() bool {
	return r.pos < len(r.payloads)
}

func (r *fakeRows) Scan(dest ...any) error {
	*(dest[0].(*[]byte)) = r.payloads[r.pos]
	r.pos++
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     {}

func mustPayload(t *testing.T, p Product) []byte {
	t.Helper()
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshaling product: %v", err)
	}
	return b
}

func testStore(q querier) *Store {
	return &Store{db: q, logger: slog.New(slog.DiscardHandler)}
}

func TestStoreUpsertTargetsPartitionTable(t *testing.T) {
	tests := []struct {
		partition Partition
		wantTable string
	}{
		{PartitionText, "products_text"},
		{PartitionImage, "products_image"},
	}

	for _, tt := range tests {
		t.Run(string(tt.partition), func(t *testing.T) {
			q := &fakeQuerier{}
			s := testStore(q)

			err := s.Upsert(context.Background(), tt.partition, Product{ID: "p1", Name: "Desk Lamp"}, []float32{0.1, 0.2})
			if err != nil {
				t.Fatalf("Upsert() error = %v", err)
			}
			if len(q.execSQL) != 1 {
				t.Fatalf("expected 1 exec, got %d", len(q.execSQL))
			}
			if !strings.Contains(q.execSQL[0], "INSERT INTO "+tt.wantTable) {
				t.Errorf("exec SQL = %q, want table %q", q.execSQL[0], tt.wantTable)
			}
			if !strings.Contains(q.execSQL[0], "ON CONFLICT (id) DO UPDATE") {
				t.Errorf("exec SQL = %q, want upsert clause", q.execSQL[0])
			}
		})
	}
}

func TestStoreUpsertValidation(t *testing.T) {
	q := &fakeQuerier{}
	s := testStore(q)
	ctx := context.Background()

	if err := s.Upsert(ctx, PartitionText, Product{}, []float32{0.1}); err == nil {
		t.Error("Upsert() with empty id expected error")
	}
	if err := s.Upsert(ctx, PartitionText, Product{ID: "p1"}, nil); err == nil {
		t.Error("Upsert() with empty embedding expected error")
	}
	if err := s.Upsert(ctx, Partition("bogus"), Product{ID: "p1"}, []float32{0.1}); err == nil {
		t.Error("Upsert() with unknown partition expected error")
	}
	if len(q.execSQL) != 0 {
		t.Errorf("invalid upserts reached the database: %v", q.execSQL)
	}
}

func TestStoreSearchReturnsProductsInOrder(t *testing.T) {
	lamp := Product{ID: "p1", Name: "Desk Lamp", Price: 34.99}
	chair := Product{ID: "p2", Name: "Office Chair", Price: 189.00, Tags: []string{"furniture"}}

	q := &fakeQuerier{rows: &fakeRows{payloads: [][]byte{
		mustPayload(t, lamp),
		mustPayload(t, chair),
	}}}
	s := testStore(q)

	got, err := s.Search(context.Background(), PartitionText, []float32{0.5, 0.5}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Search() returned %d products, want 2", len(got))
	}
	if got[0].ID != "p1" || got[1].ID != "p2" {
		t.Errorf("Search() order = [%s %s], want [p1 p2]", got[0].ID, got[1].ID)
	}
	if !strings.Contains(q.querySQL[0], "embedding <=> $1") {
		t.Errorf("query SQL = %q, want cosine distance ordering", q.querySQL[0])
	}
}

func TestStoreSearchEmptyResultIsNonNil(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{}}
	s := testStore(q)

	got, err := s.Search(context.Background(), PartitionImage, []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got == nil {
		t.Fatal("Search() returned nil slice, want empty non-nil")
	}
	if len(got) != 0 {
		t.Errorf("Search() returned %d products, want 0", len(got))
	}
}

func TestStoreSearchSkipsUnreadableRows(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{payloads: [][]byte{
		[]byte(`{not json`),
		mustPayload(t, Product{ID: "p2", Name: "Office Chair"}),
	}}}
	s := testStore(q)

	got, err := s.Search(context.Background(), PartitionText, []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "p2" {
		t.Errorf("Search() = %v, want only p2", got)
	}
}

func TestStoreSearchValidation(t *testing.T) {
	s := testStore(&fakeQuerier{})
	ctx := context.Background()

	if _, err := s.Search(ctx, PartitionText, nil, 5); err == nil {
		t.Error("Search() with empty embedding expected error")
	}
	if _, err := s.Search(ctx, PartitionText, []float32{0.1}, 0); err == nil {
		t.Error("Search() with zero limit expected error")
	}
	if _, err := s.Search(ctx, Partition("bogus"), []float32{0.1}, 5); err == nil {
		t.Error("Search() with unknown partition expected error")
	}
}

func TestStoreCount(t *testing.T) {
	q := &fakeQuerier{count: 42}
	s := testStore(q)

	got, err := s.Count(context.Background(), PartitionText)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Count() = %d, want 42", got)
	}
	if !strings.Contains(q.countSQL[0], "products_text") {
		t.Errorf("count SQL = %q, want products_text", q.countSQL[0])
	}
}

func TestProductSearchText(t *testing.T) {
	p := Product{
		Name:        "Desk Lamp",
		Description: "Warm LED lamp",
		Tags:        []string{"lighting", "office"},
	}
	want := "Desk Lamp Warm LED lamp lighting office"
	if got := p.SearchText(); got != want {
		t.Errorf("SearchText() = %q, want %q", got, want)
	}
}
