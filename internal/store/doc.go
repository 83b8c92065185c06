// Package store persists projected records into the SQLite tables the
// schema source declares, evolving those tables additively at runtime.
//
// Most persistence layers own a fixed schema and migrate it with
// versioned scripts. This one cannot: the operator grows the schema
// source by hand, at runtime, and expects new columns to start filling
// on the next poll. The store therefore treats the schema source as the
// desired shape and converges each table towards it with CREATE TABLE
// and ADD COLUMN only. Nothing is ever dropped, renamed, or retyped,
// so a schema mistake can cost at worst an unused column, never data.
//
// # Usage
//
//	st := store.New(store.Options{WALMode: true, BusyTimeout: 5}, log)
//	defer st.Close()
//
//	if err := st.EnsureTable(ctx, sch); err != nil {
//	    return err
//	}
//	if err := st.Insert(ctx, sch, record); err != nil {
//	    return err
//	}
//
// Security considerations:
//   - Table and column names are interpolated into DDL and INSERT
//     statements. They are trusted here because the schema package
//     rejects identifiers outside its allow-list at load time; the
//     store must never receive identifiers from any other source
package store
