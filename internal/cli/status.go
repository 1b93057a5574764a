package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/rewardbot/internal/config"
	"github.com/soyeahso/rewardbot/internal/llm"
	"github.com/soyeahso/rewardbot/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show rewardbot status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rewardbot %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:     %s\n", paths.Config)
			fmt.Fprintf(out, "Data:       %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:       %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:     error loading: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Server:     port=%d bind=%s rateLimit=%d/%s\n",
				cfg.Server.Port, cfg.Server.Bind, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window)

			for _, b := range []struct {
				name string
				ep   config.BackendEndpoint
			}{
				{"rewards", cfg.Backends.Rewards},
				{"customer", cfg.Backends.Customer},
				{"redemption", cfg.Backends.Redemption},
			} {
				fmt.Fprintf(out, "Backend:    %-10s %s (timeout %s)\n", b.name, b.ep.BaseURL, b.ep.Timeout)
			}

			br := cfg.Resilience.Breaker
			fmt.Fprintf(out, "Breaker:    threshold=%d window=%s cooldown=%s\n", br.FailureThreshold, br.Window, br.Cooldown)

			cache := cfg.Cache.Backend
			if cache == "redis" {
				cache += " " + cfg.Cache.Redis.Addr
			}
			fmt.Fprintf(out, "Cache:      %s context=%s response=%s\n", cache, cfg.Cache.ContextTTL, cfg.Cache.ResponseTTL)

			registry := llm.NewRegistryFromConfig(cfg.Generation, log)
			if providers := registry.List(); len(providers) > 0 {
				fmt.Fprintf(out, "Generation: %s (available: %s)\n", cfg.Generation.Provider, strings.Join(providers, ", "))
			} else {
				fmt.Fprintln(out, "Generation: templates only")
			}

			if cfg.History.Enabled {
				path := cfg.History.Path
				if path == "" {
					path = paths.History
				}
				fmt.Fprintf(out, "History:    %s\n", path)
			} else {
				fmt.Fprintln(out, "History:    disabled")
			}
			if len(cfg.Events.Brokers) > 0 {
				fmt.Fprintf(out, "Events:     %s -> %s\n", strings.Join(cfg.Events.Brokers, ","), cfg.Events.Topic)
			}
			if cfg.Telemetry.Enabled {
				fmt.Fprintf(out, "Telemetry:  %s %s\n", cfg.Telemetry.Exporter, cfg.Telemetry.Endpoint)
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
