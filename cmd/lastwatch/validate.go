package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goodtune/lastwatch/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the Lastwatch configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Printf("✅ Configuration is valid: %s\n\n", configPath)

	bold := color.New(color.Bold)
	bold.Println("Summary")
	fmt.Printf("  Accounts:     %d configured", len(cfg.Monitor.Accounts))
	disabled := 0
	for _, acct := range cfg.Monitor.Accounts {
		if !acct.IsEnabled() {
			disabled++
		}
	}
	if disabled > 0 {
		fmt.Printf(" (%d disabled)", disabled)
	}
	fmt.Println()
	fmt.Printf("  Threshold:    %d minutes\n", cfg.Monitor.ThresholdMinutes)
	fmt.Printf("  Schedule:     %s\n", cfg.Monitor.Schedule)
	fmt.Printf("  Alert policy: %s\n", cfg.Monitor.AlertPolicy)
	fmt.Printf("  Storage:      %s\n", cfg.Storage.Type)
	if cfg.Telegram.Enabled {
		fmt.Printf("  Telegram:     enabled\n")
	} else {
		fmt.Printf("  Telegram:     disabled (alerts go to the log)\n")
	}

	if len(cfg.Monitor.Accounts) == 0 {
		yellow := color.New(color.FgYellow, color.Bold)
		fmt.Println()
		yellow.Println("⚠️  No accounts configured; cycles will have nothing to do.")
	}

	return nil
}
