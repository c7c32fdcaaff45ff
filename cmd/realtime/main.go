package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	gtfsrtadapter "github.com/samirrijal/breadcrumbs/internal/adapters/gtfsrt"
	natsadapter "github.com/samirrijal/breadcrumbs/internal/adapters/nats"
	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/pkg/config"
	"github.com/samirrijal/breadcrumbs/internal/pkg/logging"
)

// realtime polls a GTFS-RT VehiclePositions feed and publishes the fixes of
// one vehicle as trail samples.
func main() {
	cfg, err := config.Load("breadcrumbs-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	if cfg.GTFSRT.VehiclePositionsURL == "" || cfg.GTFSRT.VehicleID == "" {
		log.Fatal("gtfsrt.vehicle_positions_url and gtfsrt.vehicle_id are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	poller := gtfsrtadapter.NewPoller(cfg.GTFSRT.VehiclePositionsURL, cfg.GTFSRT.VehicleID, cfg.Trail.SourceID, nil)

	slog.Info("realtime poller starting",
		"feed", cfg.GTFSRT.VehiclePositionsURL,
		"vehicle", cfg.GTFSRT.VehicleID,
		"subject", natsadapter.SampleSubject(cfg.Trail.SourceID),
		"interval", cfg.GTFSRT.PollInterval,
	)

	err = poller.Run(ctx, cfg.GTFSRT.PollInterval, func(ctx context.Context, s domain.Sample) error {
		return pub.PublishSample(ctx, &s)
	})
	if err != nil {
		log.Fatalf("poller: %v", err)
	}
	slog.Info("realtime poller stopped")
}
