package catalog

import (
	"bytes"
	_ "embed"

	"github.com/agenthive/hive/internal/model"
)

// defaultCatalog ships a baseline agent roster so the server is usable
// with zero configuration. Deployments with their own roster point
// HIVE_CATALOG_PATH at a JSON file of the same shape.
//
//go:embed agents.json
var defaultCatalog []byte

// Default parses the embedded agent catalog.
func Default() ([]model.AgentRecord, error) {
	return Load(bytes.NewReader(defaultCatalog))
}
