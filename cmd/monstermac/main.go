// Package main provides the CLI entry point for the MonsterMac keyed-MAC
// service.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flickpp/ppenc/internal/config"
	"github.com/flickpp/ppenc/internal/logging"
	"github.com/flickpp/ppenc/internal/metrics"
	"github.com/flickpp/ppenc/internal/monstermac"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "monstermac",
		Short:   "MonsterMac keyed-MAC service",
		Long:    "MonsterMac computes HMAC-SHA256(secret, body) for a POSTed body, resolving its secret via MODE0/MODE16/MODE32.",
		Version: "dev",
	}

	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the MonsterMac service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			m := metrics.Default()

			resolver, err := monstermac.NewResolver(cfg.MonsterMac)
			if err != nil {
				return fmt.Errorf("failed to construct secret resolver: %w", err)
			}

			srv := monstermac.NewServer(cfg.MonsterMac.Address, resolver, logger, m)
			if err := srv.Start(); err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}

			logger.Info("monstermac started",
				logging.KeyComponent, "monstermac",
				logging.KeyMonsterMacMode, string(cfg.MonsterMac.Mode),
			)
			fmt.Printf("monstermac listening on %s (mode=%s)\n", srv.Address(), cfg.MonsterMac.Mode)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			return srv.Stop()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to configuration file")

	return cmd
}
