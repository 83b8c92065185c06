package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-energy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-energy/internal/schema"
)

// Logger defines the logging interface for the store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options carries the per-handle database settings applied to every
// datastore file the schema source names.
type Options struct {
	// WALMode enables Write-Ahead Logging on each datastore.
	WALMode bool

	// BusyTimeout is the SQLite lock wait in seconds.
	BusyTimeout int
}

// tableState is the store's view of one table's live columns.
type tableState struct {
	// columns maps column name to its declared type, upper-cased.
	columns map[string]string
}

// Store persists projected records into schema-declared SQLite tables,
// evolving the tables additively as schemas grow.
//
// The schema source names a datastore file per device type; the store
// lazily opens one handle per distinct file and keeps it for the
// process lifetime. Table shapes are cached after the first
// EnsureTable, so steady-state inserts touch no catalogue queries.
//
// Evolution is strictly additive: missing tables are created, missing
// columns are added, and nothing is ever altered, narrowed, or dropped.
// A column whose live type differs from the schema's declaration is
// logged and left alone; SQLite's flexible typing stores the values
// regardless, and destroying operator data to fix a label is not this
// layer's call.
//
// Thread Safety: all methods are safe for concurrent use. DDL is
// serialised; inserts for different devices run concurrently and
// serialise at the SQLite handle.
type Store struct {
	opts Options
	log  Logger

	mu      sync.Mutex
	closed  bool
	handles map[string]*database.DB
	tables  map[string]*tableState
}

// New creates a Store. No files are opened until a schema first needs
// its datastore.
func New(opts Options, log Logger) *Store {
	if log == nil {
		log = noopLogger{}
	}
	return &Store{
		opts:    opts,
		log:     log,
		handles: make(map[string]*database.DB),
		tables:  make(map[string]*tableState),
	}
}

// Handle returns the open database handle for a datastore file, opening
// it on first use.
func (s *Store) Handle(file string) (*database.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handleLocked(file)
}

// handleLocked resolves a handle with s.mu held.
func (s *Store) handleLocked(file string) (*database.DB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if db, ok := s.handles[file]; ok {
		return db, nil
	}

	db, err := database.Open(database.Config{
		Path:        file,
		WALMode:     s.opts.WALMode,
		BusyTimeout: s.opts.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening datastore %q: %w", file, err)
	}

	s.handles[file] = db
	s.log.Info("datastore opened", "file", file)
	return db, nil
}

// tableKey identifies one table across datastore files.
func tableKey(file, table string) string {
	return file + "\x00" + table
}

// EnsureTable makes the schema's table exist with at least the schema's
// columns.
//
// A missing table is created with the full column list. An existing
// table is adopted: its live shape is read from the catalogue and each
// schema column it lacks is added with one ALTER TABLE. Columns present
// with a different declared type are logged and left untouched.
//
// EnsureTable is idempotent; repeat calls against an unchanged schema
// hit the shape cache and return immediately.
//
// Identifiers were validated at schema load and are safe to
// interpolate.
func (s *Store) EnsureTable(ctx context.Context, sch *schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tableKey(sch.File, sch.Table)
	if state, ok := s.tables[key]; ok && coversSchema(state, sch) {
		return nil
	}

	db, err := s.handleLocked(sch.File)
	if err != nil {
		return err
	}

	live, err := tableColumns(ctx, db, sch.Table)
	if err != nil {
		return fmt.Errorf("inspecting table %q in %q: %w", sch.Table, sch.File, err)
	}

	if len(live) == 0 {
		if err := createTable(ctx, db, sch); err != nil {
			return err
		}
		s.log.Info("table created",
			"file", sch.File,
			"table", sch.Table,
			"columns", len(sch.Columns),
		)
		state := &tableState{columns: make(map[string]string, len(sch.Columns))}
		for _, col := range sch.Columns {
			state.columns[col.Name] = col.Type
		}
		s.tables[key] = state
		return nil
	}

	for _, col := range sch.Columns {
		liveType, ok := live[col.Name]
		if !ok {
			alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", sch.Table, col.Name, col.Type)
			if _, err := db.ExecContext(ctx, alter); err != nil {
				return fmt.Errorf("adding column %q to %q in %q: %w",
					col.Name, sch.Table, sch.File, err)
			}
			live[col.Name] = col.Type
			s.log.Info("column added",
				"file", sch.File,
				"table", sch.Table,
				"column", col.Name,
				"type", col.Type,
			)
			continue
		}
		if !strings.EqualFold(liveType, col.Type) {
			s.log.Warn("column type differs from schema",
				"file", sch.File,
				"table", sch.Table,
				"column", col.Name,
				"declared", col.Type,
				"live", liveType,
			)
		}
	}

	s.tables[key] = &tableState{columns: live}
	return nil
}

// coversSchema reports whether a cached shape already includes every
// schema column.
func coversSchema(state *tableState, sch *schema.Schema) bool {
	for _, col := range sch.Columns {
		if _, ok := state.columns[col.Name]; !ok {
			return false
		}
	}
	return true
}

// createTable creates the schema's table: the id surrogate key plus the
// full declared column list. id never appears in a Schema; the parser
// rejects it as reserved.
func createTable(ctx context.Context, db *database.DB, sch *schema.Schema) error {
	defs := make([]string, 0, len(sch.Columns)+1)
	defs = append(defs, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, col := range sch.Columns {
		defs = append(defs, col.Name+" "+col.Type)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sch.Table, strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %q in %q: %w", sch.Table, sch.File, err)
	}
	return nil
}

// tableColumns reads a table's live columns from the catalogue. An
// absent table yields an empty map.
func tableColumns(ctx context.Context, db *database.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	columns := make(map[string]string)
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notNull    int
			dfltValue  any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &primaryKey); err != nil {
			return nil, err
		}
		columns[name] = strings.ToUpper(ctype)
	}
	return columns, rows.Err()
}

// Insert writes one record into the schema's table.
//
// Only the record's columns that exist in the live table are written;
// the rest are dropped for this row. Absent values persist as NULL via
// the record's nil fields. The write is a single INSERT, applied fully
// or not at all, and is never retried here; the caller decides what a
// failed write means for the cycle.
func (s *Store) Insert(ctx context.Context, sch *schema.Schema, rec schema.Record) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	state, ok := s.tables[tableKey(sch.File, sch.Table)]
	db := s.handles[sch.File]
	s.mu.Unlock()

	if !ok || db == nil {
		if err := s.EnsureTable(ctx, sch); err != nil {
			return err
		}
		s.mu.Lock()
		state = s.tables[tableKey(sch.File, sch.Table)]
		db = s.handles[sch.File]
		s.mu.Unlock()
		if state == nil || db == nil {
			return ErrClosed
		}
	}

	columns := make([]string, 0, len(rec.Fields))
	args := make([]any, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		if _, ok := state.columns[f.Column]; !ok {
			continue
		}
		columns = append(columns, f.Column)
		args = append(args, f.Value)
	}

	if len(columns) == 0 {
		s.log.Warn("record has no persistable columns",
			"file", sch.File,
			"table", sch.Table,
		)
		return fmt.Errorf("%w: table %q in %q", ErrNoColumns, sch.Table, sch.File)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sch.Table, strings.Join(columns, ", "), placeholders)

	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("inserting into %q in %q: %w", sch.Table, sch.File, err)
	}

	return nil
}

// Close closes every open datastore handle. The store is unusable
// afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []string
	for file, db := range s.handles {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", file, err))
		}
	}
	s.handles = nil
	s.tables = nil

	if len(errs) > 0 {
		return fmt.Errorf("closing datastores: %s", strings.Join(errs, "; "))
	}
	return nil
}
