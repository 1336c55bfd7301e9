// Package engine fronts the external geometry/radar processing toolchain.
// Every numerically significant operation of the pipeline (radar-to-ground
// inversion, coregistration, resampling, geocoding, correction modeling)
// happens behind this interface; the rest of the repository only sequences
// and parameterizes the calls.
package engine

import (
	"context"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/lut"
)

// GeometryParams are the shared geo2rdr solver knobs.
type GeometryParams struct {
	Threshold     float64
	NumIter       int
	LinesPerBlock int
}

// GPU selects the execution device inside the engine. The engine falls back
// to the CPU path on its own when the device is unavailable.
type GPU struct {
	Enabled bool
	ID      int
}

// ValidRegion is the valid-data window of a burst, in radar grid pixels.
type ValidRegion struct {
	FirstLine   int
	LastLine    int
	FirstSample int
	LastSample  int
}

// Rdr2GeoRequest derives topography layers for one burst.
type Rdr2GeoRequest struct {
	Burst     *burst.Burst
	DEMPath   string
	OutputDir string
	Geometry  GeometryParams

	ComputeLatitude            bool
	ComputeLongitude           bool
	ComputeHeight              bool
	ComputeIncidenceAngle      bool
	ComputeLocalIncidenceAngle bool
	ComputeAzimuthAngle        bool
	ComputeLayoverShadowMask   bool

	GPU GPU
}

// Geo2RdrRequest computes coregistration offsets of a secondary burst
// against archived reference topography.
type Geo2RdrRequest struct {
	Burst     *burst.Burst
	TopoPath  string // reference topo raster (VRT)
	OutputDir string
	Geometry  GeometryParams
	GPU       GPU
}

// ResampleRequest interpolates a secondary burst SLC onto the reference
// grid using precomputed offsets.
type ResampleRequest struct {
	Burst         *burst.Burst
	InputRaster   string
	OffsetsDir    string
	OutputPath    string
	LinesPerBlock int
	FlattenPhase  bool
}

// GeocodeSLCRequest geocodes one burst SLC onto its output grid, applying
// native Doppler, the azimuth carrier, and optional correction LUTs.
type GeocodeSLCRequest struct {
	Burst        *burst.Burst
	InputRaster  string
	OutputRaster string
	DEMPath      string
	Grid         geogrid.GeoGrid
	Geometry     GeometryParams
	OutputFormat string // GDAL driver of the output raster, e.g. "ENVI"
	Flatten      bool
	ValidRegion  ValidRegion
	RangeLUT     lut.LUT2d
	AzimuthLUT   lut.LUT2d
	ScratchDir   string
}

// GeocodeRasterRequest geocodes a single-band radar-domain raster
// (topography layer, calibration LUT) onto the output grid.
type GeocodeRasterRequest struct {
	Burst        *burst.Burst
	InputRaster  string
	OutputRaster string
	DEMPath      string
	Grid         geogrid.GeoGrid
	Geometry     GeometryParams
	BlockSize    int
	Interpolator string // "bilinear" unless stated; "nearest" for masks
	Decimation   int    // >1 multilooks the radar grid first
}

// EAPRequest applies the elevation antenna pattern phase correction to a
// staged burst SLC.
type EAPRequest struct {
	Burst        *burst.Burst
	InputRaster  string
	OutputRaster string
}

// SplitSpectrumRequest splits the burst range bandwidth into low/high
// sub-band images stacked with the full-band SLC.
type SplitSpectrumRequest struct {
	Burst             *burst.Burst
	InputRaster       string
	LowBandBandwidth  float64
	HighBandBandwidth float64
	WindowType        string
	WindowShape       float64
	ScratchDir        string
}

// Engine is the geometry engine capability set consumed by the workflows.
// Calls are synchronous, operate on whole-burst extents, and report failure
// through the returned error, which callers propagate without retry.
type Engine interface {
	// GroundBounds maps a burst radar grid to its ground bounding box in the
	// requested projection. Seeds geogrid generation.
	GroundBounds(ctx context.Context, b *burst.Burst, xSpacing, ySpacing float64, epsg int) (geogrid.Bounds, error)

	Rdr2Geo(ctx context.Context, req Rdr2GeoRequest) error
	Geo2Rdr(ctx context.Context, req Geo2RdrRequest) error
	Resample(ctx context.Context, req ResampleRequest) error
	GeocodeSLC(ctx context.Context, req GeocodeSLCRequest) error
	GeocodeRaster(ctx context.Context, req GeocodeRasterRequest) error

	ApplyEAPCorrection(ctx context.Context, req EAPRequest) error
	// SplitRangeSpectrum returns the path of the sub-banded raster stack.
	SplitRangeSpectrum(ctx context.Context, req SplitSpectrumRequest) (string, error)

	lut.Source
}
