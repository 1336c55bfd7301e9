package lut

import (
	"context"
	"fmt"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
)

// LUT2d is a gridded correction surface with a defined origin and spacing.
// X runs along slant range, Y along azimuth time.
type LUT2d struct {
	XStart   float64   `json:"x_start"`
	YStart   float64   `json:"y_start"`
	XSpacing float64   `json:"x_spacing"`
	YSpacing float64   `json:"y_spacing"`
	Width    int       `json:"width"`
	Length   int       `json:"length"`
	Data     []float64 `json:"data"`
}

// IsZero reports an unpopulated LUT, which geocoding treats as "no
// correction".
func (l LUT2d) IsZero() bool {
	return l.Width == 0 && l.Length == 0 && len(l.Data) == 0
}

// Add sums two LUTs defined on the same grid.
func (l LUT2d) Add(other LUT2d) (LUT2d, error) {
	if l.Width != other.Width || l.Length != other.Length {
		return LUT2d{}, fmt.Errorf("lut shapes differ: %dx%d vs %dx%d",
			l.Length, l.Width, other.Length, other.Width)
	}
	out := LUT2d{
		XStart:   l.XStart,
		YStart:   l.YStart,
		XSpacing: l.XSpacing,
		YSpacing: l.YSpacing,
		Width:    l.Width,
		Length:   l.Length,
		Data:     make([]float64, len(l.Data)),
	}
	for i := range l.Data {
		out.Data[i] = l.Data[i] + other.Data[i]
	}
	return out, nil
}

// Spacing is the LUT sampling: range step in meters, azimuth step in seconds.
type Spacing struct {
	RangeStep   float64
	AzimuthStep float64
}

// DefaultSpacing matches the engine defaults for correction surfaces.
var DefaultSpacing = Spacing{RangeStep: 200, AzimuthStep: 0.25}

// Source produces the individual model-based correction surfaces. The
// geometry engine implements it; tests substitute fixtures.
type Source interface {
	BistaticDelay(ctx context.Context, b *burst.Burst, sp Spacing) (LUT2d, error)
	SteeringDoppler(ctx context.Context, b *burst.Burst, sp Spacing) (LUT2d, error)
	// AzimuthFMMismatch models the FM-rate mismatch over the DEM; tecPath is
	// the IONEX archive for the ionosphere term, empty when unavailable.
	AzimuthFMMismatch(ctx context.Context, b *burst.Burst, demPath, tecPath, scratchDir string, sp Spacing) (LUT2d, error)
}

// ComputeGeocodingCorrections assembles the slant-range and azimuth
// correction LUTs applied during burst geocoding: the range LUT is the
// geometrical and steering Doppler surface, the azimuth LUT the sum of the
// bistatic delay and the azimuth FM-rate mismatch.
func ComputeGeocodingCorrections(ctx context.Context, src Source, b *burst.Burst,
	demPath, tecPath, scratchDir string, sp Spacing) (rg, az LUT2d, err error) {

	if demPath == "" {
		return rg, az, fmt.Errorf("DEM for azimuth FM rate mismatch was not provided")
	}

	rg, err = src.SteeringDoppler(ctx, b, sp)
	if err != nil {
		return rg, az, fmt.Errorf("failed to compute steering doppler lut: %v", err)
	}

	bistatic, err := src.BistaticDelay(ctx, b, sp)
	if err != nil {
		return rg, az, fmt.Errorf("failed to compute bistatic delay lut: %v", err)
	}
	mismatch, err := src.AzimuthFMMismatch(ctx, b, demPath, tecPath, scratchDir, sp)
	if err != nil {
		return rg, az, fmt.Errorf("failed to compute azimuth fm rate mismatch lut: %v", err)
	}

	az, err = bistatic.Add(mismatch)
	if err != nil {
		return rg, az, fmt.Errorf("failed to combine azimuth correction luts: %v", err)
	}
	return rg, az, nil
}
