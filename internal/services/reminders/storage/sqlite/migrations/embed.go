package migrations

import "embed"

// FS contains embedded SQLite migrations for reminders storage.
//
//go:embed *.sql
var FS embed.FS
