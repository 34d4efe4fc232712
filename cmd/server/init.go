package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prasenjit/firescope/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Creates config.yaml with the default settings and the data directory used
by sqlite storage.

If config.yaml already exists, it will not be overwritten unless --force is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Path where to initialize")
}

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configFile := filepath.Join(absPath, "config.yaml")
	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	cfg := config.Default()
	dataDir := filepath.Join(absPath, filepath.Dir(cfg.Storage.Path))
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dataDir, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created directory: %s\n", dataDir)

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	header := "# FireScope configuration\n# Every option can be overridden with FIRESCOPE_<SECTION>_<KEY>\n\n"
	if err := os.WriteFile(configFile, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", configFile)

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Initialization complete! Start the server with:")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "  cd %s\n", absPath)
	fmt.Fprintln(cmd.OutOrStdout(), "  firescope serve")
	return nil
}
