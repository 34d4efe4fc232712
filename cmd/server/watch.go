package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prasenjit/firescope/internal/logging"
	"github.com/prasenjit/firescope/internal/models"
	"github.com/prasenjit/firescope/internal/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream decoded records from a running server",
	Long: `Connects to the record stream of a FireScope server and prints every record
as one JSON line. Reconnects follow the transport settings of the config.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchURL string
	watchTab string
)

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "ws://localhost:8080/_api/stream", "Stream URL of the server")
	watchCmd.Flags().StringVar(&watchTab, "tab", transport.WildcardTab, "Tab context to subscribe to")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := logging.Setup(os.Stderr, cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(cmd.OutOrStdout())
	client := transport.NewClient(transport.ClientOptions{
		URL:                  watchURL,
		TabID:                watchTab,
		HeartbeatInterval:    cfg.Transport.Heartbeat,
		MaxReconnectAttempts: cfg.Transport.MaxReconnectAttempts,
		ReconnectDelay:       cfg.Transport.ReconnectDelay,
		Logger:               logger,
	}, func(rec *models.Record) {
		if err := enc.Encode(rec); err != nil {
			logger.Warn("failed to print record", "error", err)
		}
	})

	err = client.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("stream closed: %w", err)
}
