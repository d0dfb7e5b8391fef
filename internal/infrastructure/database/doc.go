// Package database provides the SQLite store used for property history.
//
// The store is a single file opened in WAL mode with one connection, which
// matches SQLite's single writer. Update loops never touch it directly: the
// history sink receives committed values from the notification dispatcher
// and writes them here, so a slow disk can delay history but never a cycle.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations live in the top-level migrations package and are embedded into
// the binary. Files are named YYYYMMDD_HHMMSS_description.up.sql with a
// matching .down.sql, and each one is applied in its own transaction.
package database
