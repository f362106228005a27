// Package migrations holds the goose migrations for the mailadmin schema.
// Go migrations register themselves in init; SQL migrations are embedded.
package migrations

import "embed"

// FS exposes the SQL migrations to goose.
//
//go:embed *.sql
var FS embed.FS
