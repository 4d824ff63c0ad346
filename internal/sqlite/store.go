// Package sqlite implements the mirror storage backend on SQLite.
// Implements: prd002-sqlite-store R1-R6;
//
//	docs/ARCHITECTURE § SQLite Store.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/mirror/pkg/schema"
	"github.com/mesh-intelligence/mirror/pkg/types"
)

// dbFileName is the SQLite database file created under Config.DataDir.
const dbFileName = "mirror.db"

// timeFormat is the canonical text encoding for TypeTime columns.
const timeFormat = time.RFC3339Nano

// Compile-time interface check: Store must implement types.Store.
var _ types.Store = (*Store)(nil)

// Store implements the types.Store contract over a single SQLite database
// file. The connection opens on Attach and stays open until Detach; each
// SaveChanges rides one transaction from Begin.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
}

// NewStore creates a detached Store; call Attach with a Config to open it.
func NewStore() *Store {
	return &Store{}
}

// Attach opens (creating if needed) the database file under config.DataDir.
// Returns ErrAlreadyAttached if already attached.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return err
	}
	// Foreign keys are enforced per connection in SQLite; opt in once here.
	// WAL keeps column discovery readable while a save transaction is open.
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return err
		}
	}

	s.db = db
	s.config = config
	s.attached = true
	return nil
}

// Detach closes the database. Idempotent; after Detach all operations
// return ErrNotAttached.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}
	s.attached = false
	return nil
}

// Exec runs a raw statement against the attached database. The engine never
// calls this; it exists for schema setup and seeding by CLI wiring and
// tests, which own their tables.
func (s *Store) Exec(stmt string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrNotAttached
	}
	_, err := s.db.Exec(stmt, args...)
	return err
}

// ColumnNames returns the table's column names in declaration order.
func (s *Store) ColumnNames(table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrNotAttached
	}

	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("table_info %q: %w", table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// FetchAll loads every row of the entity's table in rowid order, hydrating
// one entity instance per row through the declared column accessors.
func (s *Store) FetchAll(entity *schema.Entity, columns []string) ([]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrNotAttached
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("fetch %q: no mapped columns", entity.TableName())
	}

	query := fmt.Sprintf("SELECT %s FROM %q ORDER BY rowid",
		quoteAll(columns), entity.TableName())
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", entity.TableName(), err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		item, err := scanEntity(entity, columns, rows)
		if err != nil {
			return nil, fmt.Errorf("fetch %q: %w", entity.TableName(), err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Begin opens the transaction for one save.
func (s *Store) Begin() (types.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil, types.ErrNotAttached
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &storeTx{tx: tx}, nil
}

// scanEntity hydrates one result row into a fresh entity instance.
func scanEntity(entity *schema.Entity, columns []string, rows *sql.Rows) (any, error) {
	targets := make([]any, len(columns))
	for i, name := range columns {
		col, ok := entity.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q: %w", name, schema.ErrUnknownColumn)
		}
		targets[i] = scanTarget(col.Type)
	}
	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	item := entity.New()
	for i, name := range columns {
		col, _ := entity.Column(name)
		value, err := scannedValue(col.Type, targets[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		col.Set(item, value)
	}
	return item, nil
}

// scanTarget returns the sql.Scanner for a column type.
func scanTarget(t schema.Type) any {
	switch t {
	case schema.TypeBool:
		return new(sql.NullBool)
	case schema.TypeInt, schema.TypeInt64:
		return new(sql.NullInt64)
	case schema.TypeFloat:
		return new(sql.NullFloat64)
	case schema.TypeBlob:
		return new([]byte)
	default:
		// text, decimal, uuid, and time all travel as text.
		return new(sql.NullString)
	}
}

// scannedValue converts a scan target back to the engine's value space:
// nil for NULL, else the native Go value for the column type.
func scannedValue(t schema.Type, target any) (any, error) {
	switch t {
	case schema.TypeBool:
		v := target.(*sql.NullBool)
		if !v.Valid {
			return nil, nil
		}
		return v.Bool, nil
	case schema.TypeInt:
		v := target.(*sql.NullInt64)
		if !v.Valid {
			return nil, nil
		}
		return int(v.Int64), nil
	case schema.TypeInt64:
		v := target.(*sql.NullInt64)
		if !v.Valid {
			return nil, nil
		}
		return v.Int64, nil
	case schema.TypeFloat:
		v := target.(*sql.NullFloat64)
		if !v.Valid {
			return nil, nil
		}
		return v.Float64, nil
	case schema.TypeBlob:
		v := target.(*[]byte)
		if *v == nil {
			return nil, nil
		}
		out := make([]byte, len(*v))
		copy(out, *v)
		return out, nil
	case schema.TypeTime:
		v := target.(*sql.NullString)
		if !v.Valid {
			return nil, nil
		}
		parsed, err := time.Parse(timeFormat, v.String)
		if err != nil {
			return nil, fmt.Errorf("parse time %q: %w", v.String, err)
		}
		return parsed, nil
	default:
		v := target.(*sql.NullString)
		if !v.Valid {
			return nil, nil
		}
		return v.String, nil
	}
}

// bindValue converts an engine value to its driver representation.
func bindValue(t schema.Type, value any) any {
	if value == nil {
		return nil
	}
	if t == schema.TypeTime {
		return value.(time.Time).UTC().Format(timeFormat)
	}
	return value
}

// quoteAll renders a quoted, comma-separated identifier list.
func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return strings.Join(quoted, ", ")
}

// generateUUID generates a UUID v7 for string keys, falling back to v4 if
// v7 generation fails.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
