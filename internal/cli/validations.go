package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shivanshkc/tokbench/internal/config"
	"github.com/shivanshkc/tokbench/internal/logging"
)

// loadConfig resolves the configuration of cmd from its flags, the config file
// and the environment, validates it, and installs the configured logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(rootConfigPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})

	return cfg, logger, nil
}
