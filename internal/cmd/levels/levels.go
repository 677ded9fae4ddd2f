// Package levels parses levels service flags and launches the service.
package levels

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/levelvault/internal/platform/cmd"
	server "github.com/louisbranch/levelvault/internal/services/levels/app"
)

// ParseConfig parses environment and flags into the runtime config.
func ParseConfig(fs *flag.FlagSet, args []string) (server.Config, error) {
	cfg := server.ConfigFromEnv()
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The levels SQLite database path")
	fs.StringVar(&cfg.LevelDir, "levels", cfg.LevelDir, "The level payload directory")
	fs.StringVar(&cfg.CatalogURL, "catalog", cfg.CatalogURL, "The external song catalog endpoint")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return server.Config{}, err
	}
	return cfg, nil
}

// Run starts the levels runtime.
func Run(ctx context.Context, cfg server.Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLevels, func(context.Context) error {
		return server.Run(ctx, cfg)
	})
}
