// Package appfs embeds assets needed at runtime, starting with the SQL
// migrations applied by the admin app.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
