package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Brent1981/AIProject/internal/embeddings"
)

// SQLiteStore keeps records and their embeddings in SQLite and ranks them
// in process.
type SQLiteStore struct {
	db       *sql.DB
	embedder embeddings.Embedder
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, embedder embeddings.Embedder) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s, err := NewStoreWithDB(db, embedder)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB creates a store on an existing connection.
func NewStoreWithDB(db *sql.DB, embedder embeddings.Embedder) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, embedder: embedder}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);
	`)
	return err
}

// Add embeds and stores text.
func (s *SQLiteStore) Add(ctx context.Context, text string) (string, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}
	id, err := NewID()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, embedding, created_at) VALUES (?, ?, ?, ?)`,
		id, text, embeddings.EncodeVector(vec), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

// Query ranks every stored record by cosine similarity to text.
func (s *SQLiteStore) Query(ctx context.Context, text string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT content, embedding FROM memories ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var (
		contents []string
		vectors  [][]float32
	)
	for rows.Next() {
		var content string
		var blob []byte
		if err := rows.Scan(&content, &blob); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		vec, err := embeddings.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		contents = append(contents, content)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, i := range embeddings.TopK(query, vectors, k) {
		out = append(out, contents[i])
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
