package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/lastwatch/internal/config"
	"github.com/goodtune/lastwatch/internal/lastfm"
	"github.com/goodtune/lastwatch/internal/monitor"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var checkThreshold int

var checkCmd = &cobra.Command{
	Use:   "check [username...]",
	Short: "Check account activity interactively",
	Long: `Fetch the latest Last.fm activity for the configured accounts (or the named
subset) and print how each one would be classified. Nothing is sent to Telegram.`,
	Example: `  lastwatch -c config.yaml check
  lastwatch check alice bob
  lastwatch check --threshold 60`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkThreshold, "threshold", 0, "Inactivity threshold in minutes (default: configured value)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	threshold := cfg.Monitor.ThresholdMinutes
	if checkThreshold > 0 {
		threshold = checkThreshold
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	client := lastfm.NewClient(lastfm.Config{
		APIKey:    cfg.LastFM.APIKey,
		BaseURL:   cfg.LastFM.BaseURL,
		Timeout:   config.ParseDuration(cfg.LastFM.Timeout, lastfm.DefaultTimeout),
		RetryWait: config.ParseDuration(cfg.LastFM.RetryWait, lastfm.DefaultRetryWait),
	}, logger)

	policy, err := monitor.ParseAlertPolicy(cfg.Monitor.AlertPolicy)
	if err != nil {
		return err
	}
	tracker := monitor.NewTracker(time.Duration(threshold)*time.Minute, policy, logger)

	accounts := selectAccounts(cfg.Monitor.Accounts, args)
	if len(accounts) == 0 {
		return fmt.Errorf("no matching accounts to check")
	}

	spacing := config.ParseDuration(cfg.Monitor.RequestSpacing, monitor.DefaultRequestSpacing)

	printCheckHeader(threshold)

	ctx := context.Background()
	for i, acct := range accounts {
		if i > 0 && spacing > 0 {
			time.Sleep(spacing)
		}
		checkAccount(ctx, client, tracker, acct)
	}

	printCheckFooter()
	return nil
}

// selectAccounts filters the configured accounts to the named subset. With no
// names, all accounts are checked, disabled ones included: check is a
// diagnostic, not a cycle.
func selectAccounts(configured []config.AccountConfig, names []string) []monitor.Account {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	var out []monitor.Account
	for _, acct := range configured {
		if len(names) > 0 && !wanted[acct.Username] {
			continue
		}
		out = append(out, monitor.Account{
			Username:   acct.Username,
			ProfileURL: acct.ProfileURL,
			Enabled:    true,
		})
	}
	return out
}

func checkAccount(ctx context.Context, client *lastfm.Client, tracker *monitor.Tracker, acct monitor.Account) {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	handle := acct.ProfileURL
	if handle == "" {
		handle = acct.Username
	}
	handle = lastfm.HandleFromProfile(handle)

	raw, err := client.RecentTrack(ctx, handle)
	var sig lastfm.Signal
	ok := false
	if err == nil {
		sig, ok = lastfm.Normalize(raw)
	}

	status, entry := tracker.Classify(acct, sig, ok)

	fmt.Printf("%-20s ", acct.Username)
	switch status {
	case monitor.StatusActive:
		green.Print("ACTIVE")
		if sig.Kind == lastfm.KindLive {
			fmt.Printf("      now playing: %s — %s", sig.Track, sig.Artist)
		} else {
			fmt.Printf("      last track: %s — %s", sig.Track, sig.Artist)
		}
	case monitor.StatusInactive:
		red.Print("INACTIVE")
		if entry != nil {
			fmt.Printf("    for %s", entry.Elapsed())
		}
	default:
		yellow.Print("NO DATA")
		if err != nil {
			fmt.Printf("     %v", err)
		} else {
			fmt.Print("     track record has no usable timestamp")
		}
	}
	fmt.Println()
}

func printCheckHeader(threshold int) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("LAST.FM ACTIVITY CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Inactivity threshold: %d minutes\n", threshold)
	fmt.Println()
}

func printCheckFooter() {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
