package gpxadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

// FileSource reads a recorded GPX track. It implements ports.SampleSource.
type FileSource struct {
	path     string
	sourceID string
}

// NewFileSource creates a source for the GPX file at path.
func NewFileSource(path, sourceID string) *FileSource {
	return &FileSource{path: path, sourceID: sourceID}
}

// Samples parses the whole file.
func (f *FileSource) Samples(ctx context.Context) ([]domain.Sample, error) {
	g, err := gpx.ParseFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX file: %w", err)
	}
	return samplesFrom(g, f.sourceID), nil
}

// ParseBytes converts GPX data into samples.
func ParseBytes(data []byte, sourceID string) ([]domain.Sample, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX data: %w", err)
	}
	return samplesFrom(g, sourceID), nil
}

// samplesFrom flattens every track segment in document order. Files without
// tracks fall back to their routes.
func samplesFrom(g *gpx.GPX, sourceID string) []domain.Sample {
	var out []domain.Sample
	add := func(p gpx.GPXPoint) {
		out = append(out, domain.Sample{
			SourceID: sourceID,
			Lat:      p.Latitude,
			Lon:      p.Longitude,
			Time:     p.Timestamp,
		})
	}

	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				add(p)
			}
		}
	}
	if len(out) == 0 {
		for _, route := range g.Routes {
			for _, p := range route.Points {
				add(p)
			}
		}
	}
	return out
}

// Replay hands samples to emit in order. With speed > 0 it sleeps the
// recorded gap between fixes divided by speed; untimed fixes are sent
// back to back. It stops early when ctx is done.
func Replay(ctx context.Context, samples []domain.Sample, speed float64, emit func(context.Context, domain.Sample) error) error {
	for i, s := range samples {
		if speed > 0 && i > 0 && !s.Time.IsZero() && !samples[i-1].Time.IsZero() {
			if gap := s.Time.Sub(samples[i-1].Time); gap > 0 {
				timer := time.NewTimer(time.Duration(float64(gap) / speed))
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(ctx, s); err != nil {
			return fmt.Errorf("emit sample %d: %w", i, err)
		}
	}
	return nil
}
