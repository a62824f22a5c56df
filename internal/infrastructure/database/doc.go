// Package database owns the bridge's SQLite store: device shapes for a
// warm restart, the persistent bridge identity (hook id, app id, tunnel
// subdomain), and the attribute history audit trail.
//
// The connection runs in WAL mode with a busy timeout and a single
// pooled connection, matching SQLite's one-writer model. The file is
// chmod 0600: it names every device on the cloud account.
//
// Schema changes ship as embedded migrations (see the migrations
// package) applied by Migrate at startup. Migrations are additive:
// new columns are nullable or defaulted, nothing is dropped or renamed,
// and every .up.sql has a .down.sql for development rollback.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
package database
