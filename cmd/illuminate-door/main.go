// Illuminate-door turns lights on when a door opens and puts them back the
// way they were a while after it closes.
//
// Each configured automation watches one door sensor. On open, every
// controlled light or switch that is off (or not at its configured
// brightness or colour) is snapshotted and switched on. On close, a timer
// restores each entity to its snapshot. Turning an entity off by hand
// while the door is open exempts it until the override clear timer runs.
//
// Usage:
//
//	illuminate-door [run] [--config path]
//	illuminate-door validate [--config path]
//	illuminate-door activity [--automation name] [--limit n]
//	illuminate-door version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// defaultConfigPath is used when neither --config nor ILLUMINATE_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnvVar names the environment fallback for --config.
	configEnvVar = "ILLUMINATE_CONFIG"
)

func main() {
	// Cancel on Ctrl+C or SIGTERM so the automations shut down cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root command with no
// subcommand starts the service.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "illuminate-door",
		Short: "Door-triggered light automation",
		Long: `Illuminate-door switches lights on when a door opens and restores them
after it closes, leaving alone anything a person switched off by hand.

It connects either to an MQTT broker or to Home Assistant, as selected by
host.backend in the configuration file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd.Context(), resolveConfigPath(configPath))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		fmt.Sprintf("Path to config file (default $%s or %s)", configEnvVar, defaultConfigPath))

	root.AddCommand(
		newRunCmd(&configPath),
		newValidateCmd(&configPath),
		newActivityCmd(&configPath),
		newVersionCmd(),
	)

	return root
}

// resolveConfigPath applies the --config, ILLUMINATE_CONFIG, default order.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "illuminate-door %s (commit %s, built %s, %s)\n",
				version, commit, date, runtime.Version())
		},
	}
}
