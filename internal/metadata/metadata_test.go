package metadata

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBurst() *burst.Burst {
	return &burst.Burst{
		BurstID:      "t064_135518_iw1",
		PlatformID:   "S1A",
		Polarization: "VV",
		SensingStart: time.Date(2022, 5, 1, 6, 30, 0, 0, time.UTC),
		SensingStop:  time.Date(2022, 5, 1, 6, 30, 3, 0, time.UTC),
		IPFVersion:   "3.40",
		Wavelength:   0.05546576,
		Center:       [2]float64{-118.2, 34.1},
		Border: [][2]float64{
			{-118.4, 34.0}, {-118.0, 34.0}, {-118.0, 34.2}, {-118.4, 34.2}, {-118.4, 34.0},
		},
	}
}

func TestBuildGeoCslcCentroid(t *testing.T) {
	m := BuildGeoCslc(sampleBurst(), geogrid.GeoGrid{EPSG: 32611}, "/dem.tif", "", true, false, false)

	assert.InDelta(t, -118.2, m.Center[0], 1e-9)
	assert.InDelta(t, 34.1, m.Center[1], 1e-9)
	assert.Len(t, m.Footprint, 5)
	assert.True(t, m.IsReference)
}

func TestBuildGeoCslcDegenerateBorder(t *testing.T) {
	b := sampleBurst()
	b.Border = nil

	m := BuildGeoCslc(b, geogrid.GeoGrid{}, "/dem.tif", "", false, false, false)

	// Falls back to the annotation center when no polygon is available.
	assert.Equal(t, b.Center, m.Center)
	assert.Empty(t, m.Footprint)
}

func TestMetadataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t064_135518_iw1_VV.json")

	m := BuildGeoCslc(sampleBurst(), geogrid.GeoGrid{EPSG: 32611, Width: 100}, "/dem.tif",
		"/ref/t064_135518_iw1", false, true, false)
	require.NoError(t, m.ToFile(path))

	got, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, m.BurstID, got.BurstID)
	assert.Equal(t, m.Grid, got.Grid)
	assert.True(t, got.EAPCorrected)
	assert.Equal(t, "/ref/t064_135518_iw1", got.ReferencePath)
}
