package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"ragchat/internal/domain"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "vector_store.db"

// Storage persists the knowledge base in a single SQLite table. Row order
// is the insertion order of the chunks.
type Storage struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Storage, error) {
	if path == "" {
		path = DefaultPath
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			position INTEGER PRIMARY KEY,
			source   TEXT NOT NULL,
			text     TEXT NOT NULL,
			vector   BLOB NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

func (s *Storage) Location() string { return s.path }

// Load returns all chunks in insertion order.
func (s *Storage) Load() ([]domain.Chunk, error) {
	rows, err := s.db.Query("SELECT source, text, vector FROM chunks ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.Source, &c.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if c.Vector, err = decodeFloat64Slice(blob); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Save rewrites the table with chunks inside one transaction.
func (s *Storage) Save(chunks []domain.Chunk) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO chunks (position, source, text, vector) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.Exec(i, c.Source, c.Text, encodeFloat64Slice(c.Vector)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Storage) Close() error {
	return s.db.Close()
}

func encodeFloat64Slice(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeFloat64Slice(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector blob of %d bytes", len(b))
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v, nil
}
