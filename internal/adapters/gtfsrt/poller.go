package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
	"github.com/samirrijal/breadcrumbs/internal/pkg/metrics"
)

// Poller reads a GTFS-RT VehiclePositions feed and turns the fixes of one
// vehicle into samples. It implements ports.SampleSource.
type Poller struct {
	url       string
	vehicleID string
	sourceID  string
	client    *http.Client

	// last feed timestamp already emitted, so repeated polls of an
	// unchanged feed yield nothing
	lastTS uint64
}

// NewPoller creates a poller. A nil client uses a 15s-timeout default.
func NewPoller(url, vehicleID, sourceID string, client *http.Client) *Poller {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Poller{url: url, vehicleID: vehicleID, sourceID: sourceID, client: client}
}

// Samples fetches the feed once and returns fixes newer than the previous call.
func (p *Poller) Samples(ctx context.Context) ([]domain.Sample, error) {
	data, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}
	fixes, err := ParseVehiclePositions(data, p.vehicleID)
	if err != nil {
		return nil, err
	}

	out := fixes[:0]
	for _, f := range fixes {
		ts := uint64(f.Time.Unix())
		if ts <= p.lastTS {
			continue
		}
		p.lastTS = ts
		f.SourceID = p.sourceID
		out = append(out, f)
	}
	return out, nil
}

// Run polls every interval and hands each new fix to emit until ctx is done.
// Poll errors are logged and counted, not returned.
func (p *Poller) Run(ctx context.Context, interval time.Duration, emit func(context.Context, domain.Sample) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		samples, err := p.Samples(ctx)
		if err != nil {
			metrics.FeedPollErrors.WithLabelValues("gtfsrt").Inc()
			slog.Warn("gtfs-rt poll failed", "url", p.url, "error", err)
		}
		for _, s := range samples {
			if err := emit(ctx, s); err != nil {
				return fmt.Errorf("emit sample: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ParseVehiclePositions decodes a FeedMessage and returns the positions of
// vehicleID ordered as they appear in the feed. The vehicle is matched on
// its descriptor id, then its label, then the entity id. Entities without a
// timestamp use the feed header's.
func ParseVehiclePositions(data []byte, vehicleID string) ([]domain.Sample, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	var headerTS uint64
	if fm.GetHeader() != nil {
		headerTS = fm.GetHeader().GetTimestamp()
	}

	var out []domain.Sample
	for _, e := range fm.GetEntity() {
		vp := e.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		if !matchesVehicle(e, vehicleID) {
			continue
		}
		ts := vp.GetTimestamp()
		if ts == 0 {
			ts = headerTS
		}
		out = append(out, domain.Sample{
			Lat:  float64(vp.GetPosition().GetLatitude()),
			Lon:  float64(vp.GetPosition().GetLongitude()),
			Time: time.Unix(int64(ts), 0).UTC(),
		})
	}
	return out, nil
}

func matchesVehicle(e *gtfsrtpb.FeedEntity, vehicleID string) bool {
	if d := e.GetVehicle().GetVehicle(); d != nil {
		if d.GetId() == vehicleID || d.GetLabel() == vehicleID {
			return true
		}
	}
	return e.GetId() == vehicleID
}
