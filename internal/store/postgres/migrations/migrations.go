// Package migrations embeds the goose migration files applied at
// startup (grounded on the teacher's internal/db/migrations package).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
