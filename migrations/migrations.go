// Package migrations embeds the SQL schema files so services can run
// them at boot without shipping loose files alongside the binary.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
