// Command pipeline runs the cademycode student ETL: once from the command
// line, as a long-running status server, or to migrate the run history schema.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/JonMunkholm/cademycode/internal/config"
	"github.com/JonMunkholm/cademycode/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Extract, clean, audit and load the cademycode student tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (yaml, toml, json or .env); environment variables take precedence")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before configuration, overwriting existing variables")

	root.AddCommand(
		newRunCmd(c),
		newServeCmd(c),
		newMigrateCmd(c),
	)
	return root
}

// load reads the dotenv file, resolves configuration and sets up logging.
func (c *cli) load() error {
	if c.envFile != "" {
		// Overload overwrites existing env vars
		if err := godotenv.Overload(c.envFile); err != nil {
			slog.Debug("no .env file loaded", "path", c.envFile, "error", err)
		} else {
			slog.Info("loaded .env file (overwriting existing env vars)", "path", c.envFile)
		}
	}

	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return err
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	c.cfg = cfg
	return nil
}
