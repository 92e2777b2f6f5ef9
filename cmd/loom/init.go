package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/config"
)

var initUserConfig bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a directory for use with Loom",
	Long: `Initialize a directory for use with Loom.

This command creates the .loom directory structure (logs, signals) and
checks that credentials are available. With --user-config it also writes
a commented default config file to the user config path.

The directory argument is optional and defaults to the current directory.

Examples:
  loom init                 # Initialize current directory
  loom init ./myproject     # Initialize a specific directory
  loom init --user-config   # Also write ~/.config/loom/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initUserConfig, "user-config", false, "Write a default user config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Loom in %s...\n\n", absPath)

	for _, sub := range []string{"logs", "signals"} {
		if err := os.MkdirAll(filepath.Join(absPath, ".loom", sub), 0755); err != nil {
			return fmt.Errorf("creating .loom/%s: %w", sub, err)
		}
	}
	printStatus("✓", "Created .loom directory structure", color.FgGreen)

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set (you can set it later)", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	if initUserConfig {
		configPath := config.GetUserConfigPath()
		if err := config.WriteDefault(configPath); err != nil {
			printStatus("⚠", fmt.Sprintf("Config not written: %v", err), color.FgYellow)
		} else {
			printStatus("✓", fmt.Sprintf("Wrote default config to %s", configPath), color.FgGreen)
		}
	}

	fmt.Printf("\n%s Loom initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  loom run \"explain what this project does\"")
	return nil
}

// printStatus prints a status line with color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
