package geogrid

import (
	"context"
	"testing"
	"time"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

func TestPointEPSG(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     int
	}{
		{"arctic", 72.0, 10.0, 3413},
		{"antarctic", -75.0, 10.0, 3031},
		{"northern utm 31", 48.85, 2.35, 32631},
		{"southern utm 23", -23.55, -46.63, 32723},
		{"wrapped longitude", 35.0, 200.0, 32601 + int((200.0-360.0+177)/6.0+0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PointEPSG(tt.lat, tt.lon)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PointEPSG(0, 0)
	assert.Error(t, err)
}

func TestAssignSpacingConvention(t *testing.T) {
	x, y, err := assignSpacing(f(5), f(10), defaultXPostingDeg, defaultYPostingDeg)
	require.NoError(t, err)
	assert.Equal(t, 5.0, x)
	assert.Equal(t, -10.0, y) // Y spacing is always stored negative

	x, y, err = assignSpacing(nil, nil, defaultXPostingM, defaultYPostingM)
	require.NoError(t, err)
	assert.Equal(t, defaultXPostingM, x)
	assert.Equal(t, -defaultYPostingM, y)

	_, _, err = assignSpacing(f(-1), nil, defaultXPostingM, defaultYPostingM)
	assert.Error(t, err)
	_, _, err = assignSpacing(nil, f(0), defaultXPostingM, defaultYPostingM)
	assert.Error(t, err)
}

func TestCheckSnapValues(t *testing.T) {
	assert.NoError(t, checkSnapValues(nil, nil, 5, -10))
	assert.NoError(t, checkSnapValues(f(30), f(30), 5, -10))
	assert.Error(t, checkSnapValues(f(-30), nil, 5, -10))
	assert.Error(t, checkSnapValues(f(7), nil, 5, -10))
	assert.Error(t, checkSnapValues(nil, f(25), 5, -10))
}

func TestSnapGridExpandsOutward(t *testing.T) {
	g := GeoGrid{StartX: 403.0, StartY: 1207.0, SpacingX: 5, SpacingY: -10, Width: 100, Length: 50, EPSG: 32631}
	snapped := snapGrid(g, f(30), f(30), g.EndX(), g.EndY())

	assert.Equal(t, 390.0, snapped.StartX)
	assert.Equal(t, 1230.0, snapped.StartY)
	assert.LessOrEqual(t, snapped.StartX, g.StartX)
	assert.GreaterOrEqual(t, snapped.StartY, g.StartY)
	assert.GreaterOrEqual(t, snapped.EndX(), g.EndX())
	assert.LessOrEqual(t, snapped.EndY(), g.EndY())
}

func testBurst(id string, lon, lat float64) *burst.Burst {
	return &burst.Burst{
		BurstID:      id,
		SensingStart: time.Date(2022, 5, 1, 12, 0, 0, 0, time.UTC),
		Polarization: "VV",
		Center:       [2]float64{lon, lat},
	}
}

func fixedBounds(b Bounds) BoundsFunc {
	return func(context.Context, *burst.Burst, float64, float64, int) (Bounds, error) {
		return b, nil
	}
}

func TestGenerateOneGridPerBurstID(t *testing.T) {
	bursts := []*burst.Burst{
		testBurst("t071_151200_iw1", 2.35, 48.85),
		testBurst("t071_151200_iw1", 2.35, 48.85), // second polarization
		testBurst("t071_151201_iw1", 2.40, 48.90),
	}
	bounds := Bounds{XMin: 400000, YMin: 5400000, XMax: 500000, YMax: 5420000}

	calls := 0
	boundsOf := func(_ context.Context, b *burst.Burst, x, y float64, epsg int) (Bounds, error) {
		calls++
		return bounds, nil
	}

	grids, err := Generate(context.Background(), bursts, Params{XPosting: f(5), YPosting: f(10)}, 4326, boundsOf)
	require.NoError(t, err)

	assert.Len(t, grids, 2)
	assert.Equal(t, 2, calls, "bounds derived once per burst id")

	g := grids["t071_151200_iw1"]
	assert.Equal(t, 32631, g.EPSG)
	assert.Equal(t, 400000.0, g.StartX)
	assert.Equal(t, 5420000.0, g.StartY)
	assert.Equal(t, 20000, g.Width)
	assert.Equal(t, 2000, g.Length)
}

func TestGenerateUserOverrides(t *testing.T) {
	bursts := []*burst.Burst{testBurst("t071_151200_iw1", 2.35, 48.85)}
	bounds := Bounds{XMin: 400000, YMin: 5400000, XMax: 500000, YMax: 5420000}

	p := Params{
		OutputEPSG:   i(32632),
		XPosting:     f(5),
		YPosting:     f(10),
		TopLeftX:     f(410000),
		BottomRightY: f(5410000),
	}
	grids, err := Generate(context.Background(), bursts, p, 4326, fixedBounds(bounds))
	require.NoError(t, err)

	g := grids["t071_151200_iw1"]
	assert.Equal(t, 32632, g.EPSG)
	assert.Equal(t, 410000.0, g.StartX)
	assert.Equal(t, 18000, g.Width)
	assert.Equal(t, 1000, g.Length)
}

func TestGenerateRejectsBadEPSG(t *testing.T) {
	bursts := []*burst.Burst{testBurst("t071_151200_iw1", 2.35, 48.85)}
	_, err := Generate(context.Background(), bursts, Params{OutputEPSG: i(99)}, 4326,
		fixedBounds(Bounds{XMin: 0, YMin: 0, XMax: 1, YMax: 1}))
	assert.Error(t, err)
}

func TestDecimate(t *testing.T) {
	g := GeoGrid{StartX: 400000, StartY: 5420000, SpacingX: 5, SpacingY: -10, Width: 20000, Length: 2000, EPSG: 32631}
	d := Decimate(g, 40)

	assert.Equal(t, g.StartX, d.StartX)
	assert.Equal(t, g.StartY, d.StartY)
	assert.Equal(t, 200.0, d.SpacingX)
	assert.Equal(t, -400.0, d.SpacingY)
	assert.Equal(t, 501, d.Width)
	assert.Equal(t, 51, d.Length)
	assert.Equal(t, g.EPSG, d.EPSG)
}

func TestGeoTransform(t *testing.T) {
	g := GeoGrid{StartX: 400000, StartY: 5420000, SpacingX: 5, SpacingY: -10}
	assert.Equal(t, [6]float64{400000, 5, 0, 5420000, 0, -10}, g.GeoTransform())
}
