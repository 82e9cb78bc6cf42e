package appfs

import "embed"

// FS holds the SQL migrations & the default permission seed.
//go:embed migrations seeds
var FS embed.FS

const DefaultSeedPath = "seeds/permissions.yaml"
