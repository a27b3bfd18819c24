// Package migrations embeds the SQL schema files applied by hospitalctl.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
