// Package migrations holds the SQL schema and the runner that applies it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
