package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	gpxadapter "github.com/samirrijal/breadcrumbs/internal/adapters/gpx"
	natsadapter "github.com/samirrijal/breadcrumbs/internal/adapters/nats"
	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/pkg/config"
	"github.com/samirrijal/breadcrumbs/internal/pkg/logging"
)

// replay publishes the points of a recorded GPX track as trail samples.
//
//	replay -speed 10 walk.gpx
func main() {
	speed := flag.Float64("speed", 0, "replay speed factor; 0 sends every point immediately")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatal("usage: replay [-speed N] <file.gpx>")
	}

	cfg, err := config.Load("breadcrumbs-replay")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples, err := gpxadapter.NewFileSource(flag.Arg(0), cfg.Trail.SourceID).Samples(ctx)
	if err != nil {
		log.Fatalf("read track: %v", err)
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	slog.Info("replaying track",
		"file", flag.Arg(0),
		"points", len(samples),
		"subject", natsadapter.SampleSubject(cfg.Trail.SourceID),
		"speed", *speed,
	)

	sent := 0
	err = gpxadapter.Replay(ctx, samples, *speed, func(ctx context.Context, s domain.Sample) error {
		if err := pub.PublishSample(ctx, &s); err != nil {
			return err
		}
		sent++
		return nil
	})
	if err != nil {
		slog.Error("replay interrupted", "sent", sent, "error", err)
		return
	}
	slog.Info("replay finished", "sent", sent)
}
