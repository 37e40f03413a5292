// Package migrations embeds the SQL schema migrations so the migrate
// command runs against a compiled-in copy instead of a working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
