package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"printerbot/internal/handlers"
	"printerbot/internal/publisher"
	"printerbot/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: telemetry, HTTP API, websocket stream and MQTT mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(parent context.Context, cctx *commandContext) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	rt, err := cctx.open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	log := rt.log

	if err := rt.session.CheckConnection(ctx); err != nil {
		log.Errorw("controller_unreachable_at_startup", "url", rt.cfg.Controller.URL, "err", err)
		return err
	}
	// Announcement subscription is best effort; the service logs failures.
	_ = rt.svc.AnnounceFeed(ctx)

	go rt.svc.Run(ctx, rt.cfg.PollInterval)
	go rt.svc.Follow(ctx)

	if rt.cfg.MQTT.Broker != "" {
		pub, err := publisher.Dial(rt.cfg.MQTT, log)
		if err != nil {
			log.Errorw("mqtt_connect_failed", "broker", rt.cfg.MQTT.Broker, "err", err)
		} else {
			go pub.Run(ctx, rt.cfg.PollInterval, rt.svc.Snapshot)
		}
	}

	apiHandler := handlers.NewHandler(rt.svc, log, rt.metrics.Handler())
	srv := &server.Server{}
	errc := make(chan error, 1)
	go func() {
		log.Infow("http_listening", "port", rt.cfg.Server.Port)
		errc <- srv.Run(rt.cfg.Server.Port, apiHandler.InitRoutes())
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			log.Errorw("http_server_failed", "err", err)
			return err
		}
	}

	log.Infow("shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
