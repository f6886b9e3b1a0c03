// Package database provides SQLite connectivity for the PWM output state store.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations supplied as an fs.FS (see the migrations package)
//   - Connection pooling and lifecycle management
//
// The only tables are output_state (last state per output, read at startup)
// and output_state_history (every change, pruned by retention).
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	    Migrations:  migrations.FS,
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
// Migrations are additive-only: new columns must be NULLABLE or carry a
// DEFAULT, and every .up.sql ships with a .down.sql.
package database
