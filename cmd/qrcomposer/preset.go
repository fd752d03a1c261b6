package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itsChris/qrcomposer/internal/db"
	"github.com/itsChris/qrcomposer/internal/presetfile"
)

func newPresetCmd() *cobra.Command {
	presetCmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage stored style presets",
	}
	presetCmd.AddCommand(
		newPresetListCmd(),
		newPresetImportCmd(),
		newPresetExportCmd(),
		newPresetDeleteCmd(),
	)
	return presetCmd
}

// withDB loads the config, opens the preset database and runs fn.
func withDB(cmd *cobra.Command, fn func(database *db.DB) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg, commandLogger(cmd, cfg))
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

func newPresetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(database *db.DB) error {
				presets, err := database.ListPresets(cmd.Context())
				if err != nil {
					return err
				}
				if len(presets) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no presets")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDESCRIPTION\tUPDATED")
				for _, p := range presets {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Description, p.UpdatedAt.UTC().Format("2006-01-02 15:04:05"))
				}
				return tw.Flush()
			})
		},
	}
}

func newPresetImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import presets from a YAML file",
		Long:  "Import presets from a YAML file. Existing presets with the same name are replaced. Either every preset in the file is stored or none is.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := presetfile.Load(args[0])
			if err != nil {
				return err
			}
			return withDB(cmd, func(database *db.DB) error {
				if err := database.ImportPresets(cmd.Context(), presets); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d presets\n", len(presets))
				return nil
			})
		},
	}
}

func newPresetExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Export all presets to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(database *db.DB) error {
				presets, err := database.ListPresets(cmd.Context())
				if err != nil {
					return err
				}
				if err := presetfile.Save(args[0], presets); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d presets to %s\n", len(presets), args[0])
				return nil
			})
		},
	}
}

func newPresetDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(database *db.DB) error {
				deleted, err := database.DeletePreset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("preset %q not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted preset %s\n", args[0])
				return nil
			})
		},
	}
}
