package gpxadapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/breadcrumbs/internal/core/domain"
)

const trackGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>morning walk</name>
    <trkseg>
      <trkpt lat="43.2630" lon="-2.9350"><time>2026-03-01T08:00:00Z</time></trkpt>
      <trkpt lat="43.2640" lon="-2.9340"><time>2026-03-01T08:00:10Z</time></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="43.2650" lon="-2.9330"><time>2026-03-01T08:00:20Z</time></trkpt>
    </trkseg>
  </trk>
</gpx>`

const routeGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <rte>
    <rtept lat="1.0" lon="2.0"></rtept>
    <rtept lat="1.5" lon="2.5"></rtept>
  </rte>
</gpx>`

func TestParseBytes_Track(t *testing.T) {
	samples, err := ParseBytes([]byte(trackGPX), "walker")
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, "walker", samples[0].SourceID)
	assert.InDelta(t, 43.263, samples[0].Lat, 1e-9)
	assert.InDelta(t, -2.933, samples[2].Lon, 1e-9)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 20, 0, time.UTC), samples[2].Time.UTC())
}

func TestParseBytes_RouteFallback(t *testing.T) {
	samples, err := ParseBytes([]byte(routeGPX), "planner")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.True(t, samples[0].Time.IsZero())
}

func TestParseBytes_Invalid(t *testing.T) {
	_, err := ParseBytes([]byte("not xml"), "x")
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.gpx")
	require.NoError(t, os.WriteFile(path, []byte(trackGPX), 0o644))

	samples, err := NewFileSource(path, "walker").Samples(context.Background())
	require.NoError(t, err)
	assert.Len(t, samples, 3)
}

func TestReplay_EmitsInOrder(t *testing.T) {
	samples, err := ParseBytes([]byte(trackGPX), "walker")
	require.NoError(t, err)

	var got []domain.Sample
	err = Replay(context.Background(), samples, 0, func(_ context.Context, s domain.Sample) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}

func TestReplay_StopsOnEmitError(t *testing.T) {
	samples, err := ParseBytes([]byte(trackGPX), "walker")
	require.NoError(t, err)

	boom := errors.New("boom")
	calls := 0
	err = Replay(context.Background(), samples, 0, func(context.Context, domain.Sample) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestReplay_PacedHonoursCancel(t *testing.T) {
	samples, err := ParseBytes([]byte(trackGPX), "walker")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err = Replay(ctx, samples, 1, func(context.Context, domain.Sample) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
