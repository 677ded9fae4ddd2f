package migrations

import "embed"

// FS contains embedded SQLite migrations for levels storage.
//
//go:embed *.sql
var FS embed.FS
