package main

import (
	"fmt"
	"io"

	"github.com/openmined/storagebrowser/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the config file from the current flags and environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if utils.FileExists(cfg.Path) && !force {
				fmt.Fprintln(w, "Config already exists, use --force to replace it")
				printConfig(w, cfg.Path, cfg.ServerURL, cfg.StorageType, cfg.DataDir)
				return nil
			}

			if err := cfg.Save(cfg.Path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			printSuccess(w, "config written")
			printConfig(w, cfg.Path, cfg.ServerURL, cfg.StorageType, cfg.DataDir)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing config file")
	return cmd
}

func printConfig(w io.Writer, path, server, storageType, dataDir string) {
	fmt.Fprintf(w, "Config Path:  %s\n", green.Render(path))
	fmt.Fprintf(w, "Server:       %s\n", cyan.Render(server))
	fmt.Fprintf(w, "Storage Type: %s\n", cyan.Render(storageType))
	fmt.Fprintf(w, "Data Dir:     %s\n", cyan.Render(dataDir))
}
