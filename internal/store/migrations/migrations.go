// Package migrations embeds the per-dialect schema migrations applied by the
// store on open.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
