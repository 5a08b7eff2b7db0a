// Package store persists versioned artifact records to SQLite. Rows are
// append-only: every save inserts a new version, existing versions are
// never updated in place, so concurrent writers to one name degrade to
// last-write-wins rather than corruption.
//
// Storage location: .forge/store.db
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"fnforge/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Version identifies one saved revision of an artifact.
type Version struct {
	ID        string
	CreatedAt time.Time
}

// Store is the narrow persistence surface the build pipeline consumes.
type Store interface {
	// Save writes data under kind/name and returns the new version id.
	Save(ctx context.Context, kind, name string, data []byte) (string, error)
	// Load reads one version; an empty version means the newest. Absent
	// records fail with an error matching ErrNotFound.
	Load(ctx context.Context, kind, name, version string) ([]byte, error)
	// ListVersions returns all versions of kind/name, newest first.
	ListVersions(ctx context.Context, kind, name string) ([]Version, error)
	// List returns the distinct names saved under kind, sorted.
	List(ctx context.Context, kind string) ([]string, error)
	Close() error
}

// ErrNotFound marks a load for a record that was never saved.
var ErrNotFound = errors.New("artifact not found")

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op   string
	Kind string
	Name string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s failed for %s/%s: %v", e.Op, e.Kind, e.Name, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open creates or opens the artifact database at dbPath.
func Open(dbPath string) (*SQLiteStore, error) {
	logging.StoreDebug("Opening artifact store at path: %s", dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create store directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open store database at %s: %v", dbPath, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize store schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("Artifact store opened at %s", dbPath)
	return s, nil
}

// initialize creates the database schema.
func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		version TEXT UNIQUE NOT NULL,
		data BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_kind_name ON artifacts(kind, name);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save inserts a new version row and returns its id.
func (s *SQLiteStore) Save(ctx context.Context, kind, name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (kind, name, version, data)
		VALUES (?, ?, ?, ?)`,
		kind, name, version, data)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to save %s/%s: %v", kind, name, err)
		return "", &PersistenceError{Op: "save", Kind: kind, Name: name, Err: err}
	}

	logging.StoreDebug("Saved %s/%s version=%s (%d bytes)", kind, name, version, len(data))
	return version, nil
}

// Load reads one version of kind/name. Version ordering follows insertion
// order, so "newest" is the highest row id rather than the timestamp,
// which only has second granularity.
func (s *SQLiteStore) Load(ctx context.Context, kind, name, version string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row *sql.Row
	if version == "" {
		row = s.db.QueryRowContext(ctx, `
			SELECT data FROM artifacts
			WHERE kind = ? AND name = ?
			ORDER BY id DESC LIMIT 1`, kind, name)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT data FROM artifacts
			WHERE kind = ? AND name = ? AND version = ?`, kind, name, version)
	}

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &PersistenceError{Op: "load", Kind: kind, Name: name, Err: ErrNotFound}
		}
		logging.Get(logging.CategoryStore).Error("Failed to load %s/%s: %v", kind, name, err)
		return nil, &PersistenceError{Op: "load", Kind: kind, Name: name, Err: err}
	}
	return data, nil
}

// ListVersions returns every version of kind/name, newest first.
func (s *SQLiteStore) ListVersions(ctx context.Context, kind, name string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT version, created_at FROM artifacts
		WHERE kind = ? AND name = ?
		ORDER BY id DESC`, kind, name)
	if err != nil {
		return nil, &PersistenceError{Op: "listVersions", Kind: kind, Name: name, Err: err}
	}
	defer rows.Close()

	return scanVersions(rows), nil
}

// List returns the distinct artifact names under kind, sorted.
func (s *SQLiteStore) List(ctx context.Context, kind string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT name FROM artifacts
		WHERE kind = ?
		ORDER BY name`, kind)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Kind: kind, Err: err}
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Prune deletes all but the newest keep versions of kind/name and returns
// how many rows went away.
func (s *SQLiteStore) Prune(ctx context.Context, kind, name string, keep int) (int, error) {
	if keep < 1 {
		return 0, &PersistenceError{Op: "prune", Kind: kind, Name: name,
			Err: fmt.Errorf("keep must be at least 1, got %d", keep)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM artifacts
		WHERE kind = ? AND name = ? AND id NOT IN (
			SELECT id FROM artifacts
			WHERE kind = ? AND name = ?
			ORDER BY id DESC
			LIMIT ?
		)`, kind, name, kind, name, keep)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to prune %s/%s: %v", kind, name, err)
		return 0, &PersistenceError{Op: "prune", Kind: kind, Name: name, Err: err}
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		logging.Store("Pruned %d version(s) of %s/%s, kept newest %d", n, kind, name, keep)
	}
	return int(n), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		logging.Store("Closing artifact store at %s", s.dbPath)
		return s.db.Close()
	}
	return nil
}

// scanVersions scans version rows, skipping any that fail to scan.
func scanVersions(rows *sql.Rows) []Version {
	var versions []Version
	for rows.Next() {
		var v Version
		var createdAt string
		if err := rows.Scan(&v.ID, &createdAt); err != nil {
			continue
		}
		v.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
		versions = append(versions, v)
	}
	return versions
}
