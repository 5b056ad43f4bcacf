// Package vectorstore implements the Vector Store (C2): a keyed store of
// (uri, blob, metadata) with cosine top-K search. Row encoding
// (little-endian float32 blobs, positional-not-named column reads,
// corrupt-row-skip-with-warning) is grounded on
// internal/memory/backend/sqlitevec.Backend, backed by the same
// database/sql + modernc.org/sqlite pairing, defaulted to ":memory:" since
// the Non-goals exclude persistence across restarts.
package vectorstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/nexus-react/core/pkg/core"
)

// Store is the Vector Store. All methods are safe for concurrent use; per
// spec §5 the facade never calls them concurrently with itself, but the
// underlying *sql.DB keeps the type robust against misuse.
type Store struct {
	mu        sync.RWMutex
	dimension int
	db        *sql.DB
	logger    *slog.Logger
}

// New opens an in-memory Store for embeddings of the given dimension.
// Matching sqlitevec.Backend's default, the database path is ":memory:" —
// no file is ever created on disk.
func New(dimension int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "vectorstore")

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	// the in-memory database lives for the lifetime of the single
	// connection; never let the pool recycle it away under us.
	db.SetMaxOpenConns(1)

	s := &Store{dimension: dimension, db: db, logger: logger}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MustNew is New, panicking on error. Used by tests and call sites that
// cannot meaningfully recover from a failed in-memory database open.
func MustNew(dimension int, logger *slog.Logger) *Store {
	s, err := New(dimension, logger)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS items (
			uri TEXT PRIMARY KEY,
			embedding BLOB,
			text_preview TEXT,
			full_text_length INTEGER,
			indexed_at DATETIME,
			kind TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	return nil
}

// Add upserts a row for uri: if uri already exists its row is replaced
// in-place (idempotent re-indexing, spec §3 invariant). The kind column
// defaults to core.KindResource; use AddWithKind to set it explicitly.
func (s *Store) Add(uri, text string, embedding []float32) {
	s.upsert(uri, text, embedding, core.KindResource)
}

// AddWithKind is Add plus an explicit IndexKind, used by the Resource
// Indexer to distinguish res:// items from tool:// auto-indexed ones.
func (s *Store) AddWithKind(uri, text string, embedding []float32, kind core.IndexKind) {
	s.upsert(uri, text, embedding, kind)
}

func (s *Store) upsert(uri, text string, embedding []float32, kind core.IndexKind) {
	preview := text
	if len(preview) > 10000 {
		preview = preview[:10000]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO items (uri, embedding, text_preview, full_text_length, indexed_at, kind)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			embedding = excluded.embedding,
			text_preview = excluded.text_preview,
			full_text_length = excluded.full_text_length,
			indexed_at = excluded.indexed_at,
			kind = excluded.kind
	`, uri, encodeEmbedding(embedding), preview, len(text), time.Now(), string(kind))
	if err != nil {
		s.logger.Warn("failed to upsert row", "uri", uri, "error", err)
	}
}

// Search returns rows with score >= minScore, sorted by score descending,
// truncated to k. Score is a plain dot product: callers are expected to
// pass L2-normalized embeddings, per spec's stated cosine-reduces-to-dot-
// product invariant. Corrupt rows (missing blob, wrong length, scan
// failure) are skipped with a logged warning; Search itself never errors.
//
// Columns are read by positional index, not by name, matching spec §4.2's
// "regardless of backend" contract: the SELECT list order below is the
// single source of truth for Scan's destination order.
func (s *Store) Search(queryEmbedding []float32, k int, minScore float64) []core.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT uri, embedding, text_preview, full_text_length, indexed_at, kind FROM items`)
	if err != nil {
		s.logger.Warn("search query failed", "error", err)
		return nil
	}
	defer rows.Close()

	results := make([]core.SearchResult, 0)
	for rows.Next() {
		var (
			uri       string
			blob      []byte
			preview   string
			fullLen   int
			indexedAt time.Time
			kind      string
		)
		if err := rows.Scan(&uri, &blob, &preview, &fullLen, &indexedAt, &kind); err != nil {
			s.logger.Warn("skipping corrupt row in search", "error", err)
			continue
		}

		embedding := decodeEmbedding(blob)
		if embedding == nil || len(embedding) != len(queryEmbedding) {
			s.logger.Warn("skipping corrupt row in search", "uri", uri, "expected_dim", len(queryEmbedding))
			continue
		}

		score := dotProduct(queryEmbedding, embedding)
		if score < minScore {
			continue
		}

		results = append(results, core.SearchResult{
			URI:   uri,
			Score: score,
			Text:  preview,
			Metadata: core.IndexedItemMetadata{
				TextPreview:    preview,
				FullTextLength: fullLen,
				IndexedAt:      indexedAt,
				EmbeddingDim:   len(embedding),
				Kind:           core.IndexKind(kind),
			},
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// AllURIs returns every uri currently stored, in no particular order.
func (s *Store) AllURIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT uri FROM items`)
	if err != nil {
		s.logger.Warn("list uris failed", "error", err)
		return nil
	}
	defer rows.Close()

	var uris []string
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			continue
		}
		uris = append(uris, uri)
	}
	return uris
}

// Clear empties the store, used on server switch (spec §4.8).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM items`); err != nil {
		s.logger.Warn("clear failed", "error", err)
	}
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats reports the row count and an approximate byte footprint.
type Stats struct {
	Count      int
	TotalBytes int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(embedding) + LENGTH(text_preview)), 0) FROM items`)
	if err := row.Scan(&stats.Count, &stats.TotalBytes); err != nil {
		s.logger.Warn("stats query failed", "error", err)
	}
	return stats
}

// encodeEmbedding converts []float32 to a little-endian byte blob, matching
// sqlitevec.encodeEmbedding's manual IEEE-754 bit banging.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

// decodeEmbedding is the inverse of encodeEmbedding. It returns nil for an
// empty or misaligned blob so callers can treat that as a corrupt row.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

func dotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
