// Package database provides SQLite connectivity for the camera bridge.
//
// The database keeps the camera node list and the last value of every
// reported attribute, which is what lets a restarted bridge rehydrate its
// cameras before discovery runs again.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be nullable or carry a
// default, and each .up.sql should have a matching .down.sql.
package database
