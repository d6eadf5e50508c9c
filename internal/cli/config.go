package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
)

// LoadConfig loads path when given. Otherwise the first config file found in
// the working directory is used, falling back to environment variables.
func LoadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	if path == "" {
		for _, candidate := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path == "" {
		logger.Debug("no config file found, using environment variables")
		return config.LoadFromEnv(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}
