// Package sqlite persists an index snapshot (chunks, their vectors and the
// embedder state they were produced with) in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite" // SQLite driver

	"lexa/internal/domain"
	"lexa/internal/vectorstore"
)

const schema = `
CREATE TABLE chunks (
	seq         INTEGER PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	document_id TEXT NOT NULL,
	position    INTEGER NOT NULL,
	title       TEXT NOT NULL,
	source      TEXT NOT NULL,
	text        TEXT NOT NULL,
	metadata    TEXT NOT NULL,
	vector      BLOB NOT NULL
);

CREATE TABLE embedder_state (
	name  TEXT PRIMARY KEY,
	state BLOB
);
`

// Store is an open snapshot file.
type Store struct {
	db   *sql.DB
	path string
}

// Create makes a new snapshot file at path. The file must not exist.
func Create(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(DELETE)&_pragma=synchronous(FULL)")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Open opens an existing snapshot read-only.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

// PutChunks stores chunks and their vectors in one transaction. Insertion
// order is preserved on load.
func (s *Store) PutChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, title, source, text, metadata, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata for chunk %s: %w", c.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Index, c.Title, c.Source,
			c.Text, string(meta), float32SliceToBytes(vectors[i])); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// PutEmbedderState records the embedder identity and its serialized state.
// state may be nil for embedders that carry none.
func (s *Store) PutEmbedderState(ctx context.Context, name string, state []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedder_state (name, state) VALUES (?, ?)`, name, state)
	if err != nil {
		return fmt.Errorf("storing embedder state: %w", err)
	}
	return nil
}

// EmbedderState returns the recorded embedder identity and state.
func (s *Store) EmbedderState(ctx context.Context) (string, []byte, error) {
	var name string
	var state []byte
	err := s.db.QueryRowContext(ctx, `SELECT name, state FROM embedder_state LIMIT 1`).Scan(&name, &state)
	if err != nil {
		return "", nil, fmt.Errorf("reading embedder state: %w", err)
	}
	return name, state, nil
}

// LoadInto initializes dst and fills it with every stored chunk in
// insertion order. It returns the number of chunks loaded.
func (s *Store) LoadInto(ctx context.Context, dst vectorstore.Storage) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, position, title, source, text, metadata, vector
		FROM chunks ORDER BY seq`)
	if err != nil {
		return 0, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	var vectors [][]float32
	for rows.Next() {
		var c domain.Chunk
		var meta string
		var blob []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Title, &c.Source, &c.Text, &meta, &blob); err != nil {
			return 0, fmt.Errorf("scanning chunk: %w", err)
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &c.Metadata); err != nil {
				return 0, fmt.Errorf("decoding metadata for chunk %s: %w", c.ID, err)
			}
		}
		vec := bytesToFloat32Slice(blob)
		if len(vectors) > 0 && len(vec) != len(vectors[0]) {
			return 0, fmt.Errorf("chunk %s: vector dimension %d, want %d", c.ID, len(vec), len(vectors[0]))
		}
		chunks = append(chunks, c)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating chunks: %w", err)
	}
	if len(chunks) == 0 {
		return 0, errors.New("snapshot holds no chunks")
	}
	if err := dst.Init(len(vectors[0])); err != nil {
		return 0, err
	}
	if err := dst.Upsert(chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
