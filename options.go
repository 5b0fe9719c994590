package hive

import (
	"log/slog"

	"github.com/agenthive/hive/internal/catalog"
	"github.com/agenthive/hive/internal/model"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port        int
	databaseURL string
	catalogPath string
	scoringPath string
	apiKey      string
	logger      *slog.Logger
	version     string
	catalog     []model.AgentRecord
}

// WithPort overrides the TCP port from config (HIVE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the execution log location from config
// (HIVE_DATABASE_URL env var). A SQLite file path or a postgres:// URL.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithCatalogPath overrides the agent catalog file from config
// (HIVE_CATALOG_PATH env var).
func WithCatalogPath(path string) Option {
	return func(o *resolvedOptions) { o.catalogPath = path }
}

// WithScoringConfigPath overrides the scoring table file from config
// (HIVE_SCORING_CONFIG_PATH env var).
func WithScoringConfigPath(path string) Option {
	return func(o *resolvedOptions) { o.scoringPath = path }
}

// WithAPIKey overrides the static bearer token from config
// (HIVE_API_KEY env var). Empty leaves authentication disabled.
func WithAPIKey(key string) Option {
	return func(o *resolvedOptions) { o.apiKey = key }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithCatalog replaces the file or embedded catalog with an in-memory
// roster. Takes priority over WithCatalogPath and HIVE_CATALOG_PATH.
func WithCatalog(agents []Agent) Option {
	return func(o *resolvedOptions) {
		records := make([]model.AgentRecord, 0, len(agents))
		for _, a := range agents {
			keywords := a.SpecializationKeywords
			if len(keywords) == 0 {
				keywords = catalog.DeriveKeywords(a.Category, a.Description)
			}
			records = append(records, model.AgentRecord{
				ID:                     a.ID,
				Category:               a.Category,
				Capabilities:           append([]string(nil), a.Capabilities...),
				Description:            a.Description,
				SpecializationKeywords: keywords,
				Complexity:             model.ParseComplexity(a.Complexity),
			})
		}
		o.catalog = records
	}
}
