package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/repoharvest/ghfetch/internal/config"
	"github.com/repoharvest/ghfetch/pkg/client"
	"github.com/repoharvest/ghfetch/pkg/logging"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show the current API point budget",
	Long: `
The quota command probes the rateLimit endpoint and prints the points
remaining in the current window. The probe itself costs no points.
`,
	RunE: runQuota,
}

func runQuota(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	clientCfg := client.DefaultConfig(cfg.Token, cfg.UserAgent)
	if cfg.Endpoint != "" {
		clientCfg.Endpoint = cfg.Endpoint
	}
	apiClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	status, err := apiClient.RateLimit(cmd.Context())
	if err != nil {
		return fmt.Errorf("probe rate limit: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "remaining: %d\nresets at: %s (in %s)\n",
		status.Remaining,
		status.ResetAt.Local().Format(time.RFC1123),
		time.Until(status.ResetAt).Round(time.Second))
	return nil
}
