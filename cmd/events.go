/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/menucraft/apiserver/config"
	"github.com/menucraft/apiserver/internal/events"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the menu-event channel",
}

var eventsListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Tail menu events from the configured broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		bus, err := events.Connect(cmd.Context(), cfg.Events)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		if bus == nil {
			return errors.New("no events backend configured")
		}
		defer func() {
			_ = bus.Close()
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		slog.Info("listening for menu events", "channel", cfg.Events.Channel)
		err = bus.Subscribe(ctx, cfg.Events.Channel, func(_ context.Context, msg events.Message) error {
			slog.Info("menu event",
				"id", msg.ID,
				"action", msg.Attributes["action"],
				"payload", string(msg.Data),
			)
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
	eventsCmd.AddCommand(eventsListenCmd)
}
