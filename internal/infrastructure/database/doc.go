// Package database provides SQLite connectivity for Gray Logic Energy.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Connection pooling and lifecycle management for one datastore file
//   - Health checks used at startup and by the poll loop
//
// Reading tables are not migrated here. Their columns are derived at
// runtime from the schema source by the store, which issues additive-only
// CREATE TABLE / ALTER TABLE ADD COLUMN statements over these handles.
// Because the schema source may spread device types across several files,
// callers usually hold one DB per distinct file rather than a process-wide
// singleton.
//
// Security Considerations:
//   - All queries use parameterised statements for values; identifiers are
//     validated against the schema allow-list before any SQL is assembled
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//   - Single writer connection matches SQLite's locking model
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        "data/energy.db",
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package database
