package eventstore

import "embed"

// Migrations embeds this package's goose migration set so cmd/fixpipeline
// can run them against the configured database on startup without the
// goose CLI binary being present in the deployed image.
//
//go:embed migrations/*.sql
var Migrations embed.FS
