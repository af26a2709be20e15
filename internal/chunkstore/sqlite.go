package chunkstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/graphweave/graphweave/internal/knowledge"
	"github.com/graphweave/graphweave/internal/types"
)

// SqliteChunkStore persists chunks and their embeddings in a local
// SQLite database. Embeddings are stored as packed float64 blobs and
// similarity is computed in Go, so queries are exact brute-force scans
// like the in-memory backend but survive restarts.
type SqliteChunkStore struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// NewSqliteChunkStore opens (creating if necessary) the chunk database
// at path.
func NewSqliteChunkStore(path string, dimensions int) (*SqliteChunkStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, types.WrapError(types.STORE_UNAVAILABLE, "failed to open chunk database", err)
	}

	s := &SqliteChunkStore{
		db:         db,
		dimensions: dimensions,
		logger:     slog.Default().With("component", "chunkstore.sqlite"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqliteChunkStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    id             TEXT PRIMARY KEY,
    content        TEXT NOT NULL,
    embedding      BLOB NOT NULL,
    linked_node_id TEXT NOT NULL DEFAULT '',
    linked_label   TEXT NOT NULL DEFAULT '',
    metadata       TEXT NOT NULL DEFAULT '{}',
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_linked_node ON chunks(linked_node_id);
CREATE INDEX IF NOT EXISTS idx_chunks_linked_label ON chunks(linked_label);
`
	if _, err := s.db.Exec(schema); err != nil {
		return types.WrapError(types.STORE_UNAVAILABLE, "failed to migrate chunk schema", err)
	}
	return nil
}

func (s *SqliteChunkStore) AddChunk(ctx context.Context, chunk *knowledge.Chunk, linkedLabel string) error {
	if chunk == nil {
		return types.NewError(types.VALIDATION_FAILED, "chunk must not be nil")
	}
	if err := chunk.Validate(s.dimensions); err != nil {
		return err
	}
	metadata, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "failed to encode chunk metadata", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO chunks (id, content, embedding, linked_node_id, linked_label, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    content = excluded.content,
    embedding = excluded.embedding,
    linked_node_id = excluded.linked_node_id,
    linked_label = excluded.linked_label,
    metadata = excluded.metadata`,
		chunk.ID.String(), chunk.Content, encodeVector(chunk.Embedding),
		chunk.LinkedNodeID.String(), linkedLabel, string(metadata),
		chunk.CreatedAt.UnixMilli())
	if err != nil {
		return types.WrapError(types.STORE_QUERY_FAILED, "failed to insert chunk", err)
	}
	return nil
}

func (s *SqliteChunkStore) AddBatch(ctx context.Context, chunks []*knowledge.Chunk, linkedLabels []string) error {
	if len(chunks) != len(linkedLabels) {
		return types.NewErrorf(types.VALIDATION_FAILED,
			"chunk and label counts differ: %d vs %d", len(chunks), len(linkedLabels))
	}
	for i, chunk := range chunks {
		if err := s.AddChunk(ctx, chunk, linkedLabels[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *SqliteChunkStore) GetChunk(ctx context.Context, id types.ID) (*knowledge.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, content, embedding, linked_node_id, metadata, created_at
FROM chunks WHERE id = ?`, id.String())

	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, types.NewErrorf(types.CHUNK_NOT_FOUND, "chunk %s not found", id)
	}
	return chunk, err
}

func (s *SqliteChunkStore) FindTopKSimilar(ctx context.Context, embedding []float64, k int) ([]ScoredChunk, error) {
	return s.search(ctx, embedding, k, "", nil)
}

func (s *SqliteChunkStore) FindTopKSimilarWithLabelFilter(ctx context.Context, embedding []float64, k int, label string) ([]ScoredChunk, error) {
	return s.search(ctx, embedding, k, " WHERE linked_label = ?", []any{label})
}

func (s *SqliteChunkStore) search(ctx context.Context, embedding []float64, k int, where string, args []any) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "k must be positive")
	}
	if len(embedding) == 0 {
		return nil, types.NewError(types.VALIDATION_FAILED, "query embedding must not be empty")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, embedding, linked_node_id, metadata, created_at
FROM chunks`+where, args...)
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "similarity query failed", err)
	}
	defer rows.Close()

	var scored []ScoredChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		score, err := CosineSimilarity(embedding, chunk.Embedding)
		if err != nil {
			s.logger.Warn("skipping incomparable chunk", "chunk_id", chunk.ID, "error", err)
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "similarity scan failed", err)
	}

	sortScored(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *SqliteChunkStore) FindByLinkedNodeID(ctx context.Context, nodeID types.ID) ([]*knowledge.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, embedding, linked_node_id, metadata, created_at
FROM chunks WHERE linked_node_id = ? ORDER BY id`, nodeID.String())
	if err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "linked chunk query failed", err)
	}
	defer rows.Close()

	var out []*knowledge.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "linked chunk scan failed", err)
	}
	return out, nil
}

func (s *SqliteChunkStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.ChunkCount); err != nil {
		return Stats{}, types.WrapError(types.STORE_QUERY_FAILED, "failed to count chunks", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE linked_node_id != ''`).Scan(&stats.LinkedCount); err != nil {
		return Stats{}, types.WrapError(types.STORE_QUERY_FAILED, "failed to count linked chunks", err)
	}
	return stats, nil
}

func (s *SqliteChunkStore) Health(ctx context.Context) types.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return types.Unhealthy(err.Error())
	}
	return types.Healthy()
}

func (s *SqliteChunkStore) Close(_ context.Context) error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*knowledge.Chunk, error) {
	var (
		id, content, linkedID, metadata string
		blob                            []byte
		createdAt                       int64
	)
	if err := row.Scan(&id, &content, &blob, &linkedID, &metadata, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to scan chunk row", err)
	}

	chunk := &knowledge.Chunk{
		ID:           types.ID(id),
		Content:      content,
		Embedding:    decodeVector(blob),
		LinkedNodeID: types.ID(linkedID),
		CreatedAt:    time.UnixMilli(createdAt).UTC(),
	}
	if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
		return nil, types.WrapError(types.STORE_QUERY_FAILED, "failed to decode chunk metadata", err)
	}
	return chunk, nil
}

// encodeVector packs an embedding as little-endian float64s.
func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}
