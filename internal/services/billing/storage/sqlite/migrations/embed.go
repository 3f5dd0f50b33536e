package migrations

import "embed"

// FS contains embedded SQLite migrations for billing storage.
//
//go:embed *.sql
var FS embed.FS
