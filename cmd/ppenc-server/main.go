// Package main provides the CLI entry point for the PPEnc stream server.
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
	"github.com/flickpp/ppenc/internal/streamserver"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "ppenc-server",
		Short:   "PPEnc stream server",
		Long:    "ppenc-server accepts PPEnc channels over TCP, running the channel-establishment handshake against MonsterMac before decrypting each frame.",
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
		Short: "Run the PPEnc stream server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			m := metrics.Default()

			srv := streamserver.NewServer(
				cfg.Stream.Address,
				cfg.Stream.MonsterMacURL,
				cfg.Stream.HandshakeTimeout,
				logger,
				m,
			)
			if err := srv.Start(); err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}

			logger.Info("ppenc-server started",
				logging.KeyComponent, "ppenc-server",
				logging.KeyLocalAddr, srv.Address().String(),
			)
			fmt.Printf("ppenc-server listening on %s\n", srv.Address())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logger.Info("ppenc-server shutting down", logging.KeyComponent, "ppenc-server")
			return srv.Stop()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./config.yaml", "Path to configuration file")

	return cmd
}
