package learned

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/voxelhq/scenepilot/internal/embed"
)

// SQLiteStore persists mappings in a local sqlite database, embedding
// vectors stored as little-endian float32 blobs. Ranking happens in Go:
// the per-parameter candidate sets are small, so a linear cosine scan
// beats pulling in a dedicated vector index.
type SQLiteStore struct {
	db       *sql.DB
	provider embed.Provider
}

const schema = `
CREATE TABLE IF NOT EXISTS learned_mappings (
	id TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	workflow TEXT NOT NULL,
	param TEXT NOT NULL,
	context_text TEXT NOT NULL,
	value TEXT NOT NULL,
	embedding BLOB NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_mappings_lookup
	ON learned_mappings(namespace, workflow, param);
`

// OpenSQLite opens (creating if needed) the store at path.
func OpenSQLite(path string, provider embed.Provider) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open learned store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init learned store schema: %w", err)
	}
	return &SQLiteStore{db: db, provider: provider}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Put(ctx context.Context, namespace, workflow, param, contextText string, value any) error {
	vec, err := s.provider.Embed(ctx, contextText)
	if err != nil {
		return fmt.Errorf("embed mapping context: %w", err)
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode mapping value: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learned_mappings (id, namespace, workflow, param, context_text, value, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), namespace, workflow, param, contextText,
		string(encoded), encodeVector(vec), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store mapping: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, namespace, queryText string, filter Filter, limit int) ([]Hit, error) {
	query, err := s.provider.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sqlQuery := `SELECT id, namespace, workflow, param, context_text, value, embedding, created_at
		FROM learned_mappings WHERE namespace = ?`
	args := []any{namespace}
	if filter.Workflow != "" {
		sqlQuery += " AND workflow = ?"
		args = append(args, filter.Workflow)
	}
	if filter.Param != "" {
		sqlQuery += " AND param = ?"
		args = append(args, filter.Param)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search mappings: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var m Mapping
		var rawValue string
		var blob []byte
		if err := rows.Scan(&m.ID, &m.Namespace, &m.Workflow, &m.Param, &m.Context, &rawValue, &blob, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		if err := json.Unmarshal([]byte(rawValue), &m.Value); err != nil {
			return nil, fmt.Errorf("decode mapping value: %w", err)
		}
		hits = append(hits, Hit{Mapping: m, Similarity: embed.Cosine(query, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func encodeVector(vec []float32) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(vec)*4))
	for _, v := range vec {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func decodeVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
