package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/itsChris/qrcomposer/internal/config"
	"github.com/itsChris/qrcomposer/internal/db"
	"github.com/itsChris/qrcomposer/internal/debug"
	"github.com/itsChris/qrcomposer/internal/logging"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "qrcomposer",
		Short:         "Styled QR code path and SVG generator",
		Long:          "qrcomposer turns payloads into styled QR code SVG paths, as a CLI and as an HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to config file")
	root.PersistentFlags().String("db", "", "path to the preset database (default: qrcomposer.db)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json, text)")
	root.PersistentFlags().Bool("dev-mode", false, "enable development mode")

	root.AddCommand(
		newServeCmd(),
		newPathCmd(),
		newSVGCmd(),
		newEncodeCmd(),
		newPresetCmd(),
		newConfigCmd(),
		newDiagnoseCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig loads and validates configuration for cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Dev mode forces debug logging.
	if cfg.Server.DevMode && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func loggingConfig(cfg *config.Config) logging.Config {
	// Validate has already rejected unknown levels.
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	return logging.Config{
		Level:   level,
		Format:  cfg.Logging.Format,
		DevMode: cfg.Server.DevMode,
	}
}

// commandLogger is the logger of one-shot commands. Results go to stdout,
// logs to stderr, and only warnings are shown unless asked for more.
func commandLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	lc := loggingConfig(cfg)
	if f := cmd.Flags().Lookup("log-level"); (f == nil || !f.Changed) && !cfg.Server.DevMode {
		lc.Level = slog.LevelWarn
	}
	lc.Output = cmd.ErrOrStderr()
	return logging.New(lc)
}

func openDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	database, err := db.Open(ctx, cfg.Database.Path, logger, cfg.Server.DevMode)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "qrcomposer %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate configuration and the preset database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "config: ok")

			if _, err := os.Stat(cfg.Database.Path); err != nil {
				fmt.Fprintf(out, "database: %s does not exist yet\n", cfg.Database.Path)
				return nil
			}

			ctx := cmd.Context()
			database, err := openDB(ctx, cfg, commandLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Verify(ctx); err != nil {
				return fmt.Errorf("database %s: %w", cfg.Database.Path, err)
			}
			fmt.Fprintln(out, "database: ok")
			return nil
		},
	})

	return configCmd
}

func newDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run self-tests and report on configuration, certificates and presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			ctx := cmd.Context()
			var database *db.DB
			if _, err := os.Stat(cfg.Database.Path); err == nil {
				if database, err = openDB(ctx, cfg, commandLogger(cmd, cfg)); err != nil {
					return err
				}
				defer database.Close()
			}

			result, err := debug.Run(ctx, debug.Config{
				Version:    version,
				Settings:   cfg,
				DB:         database,
				JSONOutput: jsonOut,
				Writer:     cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			if result.Failed() {
				return fmt.Errorf("diagnostics reported failures")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output the report as JSON")
	return cmd
}
