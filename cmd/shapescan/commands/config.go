package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JNZader/shapescan/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage shapescan configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration, including values from
config file, environment variables, and defaults.

Examples:
  # Show config in YAML format
  shapescan config show

  # Show config as JSON
  shapescan config show --json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .shapescan.yaml",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var (
	configShowJSON  bool
	configInitPath  string
	configInitForce bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output as JSON")
	configInitCmd.Flags().StringVar(&configInitPath, "path", ".shapescan.yaml", "file to write")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, loader, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if configShowJSON {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if !isQuiet() {
		if configFile := loader.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(out, "# Config file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(out, "# No config file found, using defaults\n\n")
		}
	}
	return writeConfigYAML(cmd, cfg)
}

func writeConfigYAML(cmd *cobra.Command, cfg *config.Config) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if !configInitForce {
		if _, err := os.Stat(configInitPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", configInitPath)
		}
	}

	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return WriteOutput(string(data), configInitPath)
}
