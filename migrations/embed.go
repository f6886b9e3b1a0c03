// Package migrations embeds the SQL migrations for the output state store.
//
// Files follow YYYYMMDD_HHMMSS_description.{up,down}.sql and are applied in
// version order by database.DB.Migrate.
package migrations

import "embed"

// FS holds every migration file at its root.
//
//go:embed *.sql
var FS embed.FS
