package main

import (
	"fmt"
	"io"
	"os"

	"assessment-jobs/internal/client"
	"assessment-jobs/internal/config"
	"assessment-jobs/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfg      *config.ClientConfig
	api      *client.Client
	clientID string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "genctl",
	Short: "Submit and track assessment generation jobs",
	Long: `genctl talks to the assessment job API.

Examples:
  genctl submit --title "Unit 3" --doc d1 --doc d2 --mode deferred --wait
  genctl status <job-id>
  genctl wait <job-id> --resource <resource-id>
  genctl publish <resource-id> --start 2026-03-01T09:30 --tz Europe/Berlin
  genctl delete <resource-id>`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logger.SetLevel("debug")
		} else {
			logger.SetOutput(io.Discard)
		}

		loaded, err := config.LoadClient()
		if err != nil {
			return err
		}
		cfg = loaded
		api = client.NewClient(cfg.APIBaseURL, cfg.RequestTimeout)
		api.ClientID = clientID
		return nil
	},
}

func init() {
	hostname, _ := os.Hostname()
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", hostname, "client identity sent for rate limiting")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log polling details")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(publishCmd)
}

func pollerConfig() client.PollerConfig {
	return client.PollerConfig{
		Interval:             cfg.PollInterval,
		MaxAttempts:          cfg.MaxPollAttempts,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		MaxNotFound:          cfg.MaxNotFound,
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
