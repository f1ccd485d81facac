package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/promisingcoder/decision-scraper/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/decision-scraper.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new decision-scraper configuration file",
		Long: `Initialize creates a new .decision-scraper configuration file in the current directory.

The generated file includes:
- Default page limit and URL patterns to skip
- Commented examples for site-specific settings
- The lookup order of configuration files

Examples:
  # Create .decision-scraper in current directory
  decision-scraper init

  # Create config file in the XDG config directory
  decision-scraper init --xdg

  # Create config file at a specific path
  decision-scraper init -o myconfig.yaml

  # Force overwrite existing file
  decision-scraper init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().Bool("xdg", false,
		"Write config.yaml to the XDG config directory instead")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	useXDG, err := cmd.Flags().GetBool("xdg")
	if err != nil {
		return err
	}
	if useXDG {
		outputPath = filepath.Join(config.XDGConfigDir(), "config.yaml")
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := configTemplate.ReadFile("templates/decision-scraper.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write configuration file
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure site-specific settings such as:")
	fmt.Fprintln(out, "  - Cookies and headers sent to a site")
	fmt.Fprintln(out, "  - Page limit per site")
	fmt.Fprintln(out, "  - URL patterns to ignore or follow")

	return nil
}
