/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/mq"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect item change events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log item events from EVENTS_CHANNEL until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.NewBackend(ctx, cfg.Events)
		if err != nil {
			return err
		}
		publisher := mq.NewPublisher(backend, cfg.Events.Channel, logger)
		defer publisher.Close()

		logger.Info("tailing events", zap.String("backend", cfg.Events.Backend), zap.String("channel", cfg.Events.Channel))
		err = publisher.Tail(ctx, func(e mq.ItemEvent) error {
			logger.Info(string(e.Type),
				zap.String("item_id", e.ItemID),
				zap.String("item_type", string(e.ItemType)),
				zap.String("item_name", e.ItemName),
				zap.Int64("at", e.At))
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
