package geogrid

import (
	"context"
	"fmt"
	"math"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
)

// GeoGrid defines one output map grid: origin, spacing, size and projection.
// Grids are value types and never mutated after Generate returns them.
type GeoGrid struct {
	StartX   float64 `json:"start_x"`
	StartY   float64 `json:"start_y"`
	SpacingX float64 `json:"spacing_x"`
	SpacingY float64 `json:"spacing_y"`
	Width    int     `json:"width"`
	Length   int     `json:"length"`
	EPSG     int     `json:"epsg"`
}

// EndX is the bottom-right X coordinate of the grid.
func (g GeoGrid) EndX() float64 { return g.StartX + g.SpacingX*float64(g.Width) }

// EndY is the bottom-right Y coordinate of the grid. SpacingY is negative so
// this is south of StartY.
func (g GeoGrid) EndY() float64 { return g.StartY + g.SpacingY*float64(g.Length) }

// GeoTransform returns the GDAL-style affine transform of the grid.
func (g GeoGrid) GeoTransform() [6]float64 {
	return [6]float64{g.StartX, g.SpacingX, 0, g.StartY, 0, g.SpacingY}
}

// Bounds is the map-projected bounding box of a radar grid, as reported by
// the geometry engine.
type Bounds struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Params carries the user geocoding overrides; nil means "derive a default".
type Params struct {
	OutputEPSG   *int
	XPosting     *float64
	YPosting     *float64
	TopLeftX     *float64
	TopLeftY     *float64
	BottomRightX *float64
	BottomRightY *float64
	XSnap        *float64
	YSnap        *float64
}

// BoundsFunc maps a burst radar grid onto ground bounds in the given EPSG at
// the given postings. Implemented by the geometry engine.
type BoundsFunc func(ctx context.Context, b *burst.Burst, xSpacing, ySpacing float64, epsg int) (Bounds, error)

// PointEPSG picks the output projection for a point: polar stereographic
// beyond ±60° latitude, the containing UTM zone otherwise.
func PointEPSG(lat, lon float64) (int, error) {
	if lon >= 180.0 {
		lon -= 360.0
	}
	switch {
	case lat >= 60.0:
		return 3413, nil
	case lat <= -60.0:
		return 3031, nil
	case lat > 0:
		return 32601 + int(math.Round((lon+177)/6.0)), nil
	case lat < 0:
		return 32701 + int(math.Round((lon+177)/6.0)), nil
	}
	return 0, fmt.Errorf("could not determine EPSG for lat %f, lon %f", lat, lon)
}

func checkEPSG(epsg int) error {
	if epsg < 1024 || epsg > 32767 {
		return fmt.Errorf("epsg %d out of bounds", epsg)
	}
	return nil
}

// assignSpacing validates user postings and falls back to defaults. Postings
// are given positive; the Y spacing of the grid is negative by convention.
func assignSpacing(xPosting, yPosting *float64, xDefault, yDefault float64) (float64, float64, error) {
	xSpacing := xDefault
	if xPosting != nil {
		xSpacing = *xPosting
	}
	ySpacing := yDefault
	if yPosting != nil {
		ySpacing = *yPosting
	}
	if xSpacing <= 0 {
		return 0, 0, fmt.Errorf("pixel spacing in X direction must be > 0 (x_posting: %f)", xSpacing)
	}
	if ySpacing <= 0 {
		return 0, 0, fmt.Errorf("pixel spacing in Y direction must be > 0 (y_posting: %f)", ySpacing)
	}
	return xSpacing, -ySpacing, nil
}

// gridSize returns the pixel count covering [start, stop) at the given
// spacing, rounding outward.
func gridSize(stop, start, spacing float64) int {
	return int(math.Ceil((stop - start) / spacing))
}

// applyOverrides adjusts the engine-derived grid to the user start/end
// coordinates, recomputing the size so coverage is preserved.
func applyOverrides(g GeoGrid, p Params) GeoGrid {
	if p.TopLeftX != nil {
		endX := g.EndX()
		g.StartX = *p.TopLeftX
		g.Width = gridSize(endX, g.StartX, g.SpacingX)
	}
	if p.BottomRightX != nil {
		g.Width = gridSize(*p.BottomRightX, g.StartX, g.SpacingX)
	}
	if p.TopLeftY != nil {
		endY := g.EndY()
		g.StartY = *p.TopLeftY
		g.Length = gridSize(endY, g.StartY, g.SpacingY)
	}
	if p.BottomRightY != nil {
		g.Length = gridSize(*p.BottomRightY, g.StartY, g.SpacingY)
	}
	return g
}

// checkSnapValues rejects non-positive snaps and snaps that are not an exact
// multiple of the grid spacing.
func checkSnapValues(xSnap, ySnap *float64, xSpacing, ySpacing float64) error {
	if xSnap != nil {
		if *xSnap <= 0 {
			return fmt.Errorf("snap value in X direction must be > 0 (x_snap: %f)", *xSnap)
		}
		if math.Mod(*xSnap, xSpacing) != 0 {
			return fmt.Errorf("x_snap must be an exact multiple of spacing in X direction")
		}
	}
	if ySnap != nil {
		if *ySnap <= 0 {
			return fmt.Errorf("snap value in Y direction must be > 0 (y_snap: %f)", *ySnap)
		}
		if math.Mod(*ySnap, -ySpacing) != 0 {
			return fmt.Errorf("y_snap must be an exact multiple of spacing in Y direction")
		}
	}
	return nil
}

func snapCoord(val, snap float64, round func(float64) float64) float64 {
	return round(val/snap) * snap
}

// snapGrid expands the grid outward so its corners land on snap multiples.
func snapGrid(g GeoGrid, xSnap, ySnap *float64, xEnd, yEnd float64) GeoGrid {
	if xSnap == nil && ySnap == nil {
		return g
	}
	if xSnap != nil {
		g.StartX = snapCoord(g.StartX, *xSnap, math.Floor)
		xEnd = snapCoord(xEnd, *xSnap, math.Ceil)
	}
	if ySnap != nil {
		g.StartY = snapCoord(g.StartY, *ySnap, math.Ceil)
		yEnd = snapCoord(yEnd, *ySnap, math.Floor)
	}
	g.Width = gridSize(xEnd, g.StartX, g.SpacingX)
	g.Length = gridSize(yEnd, g.StartY, g.SpacingY)
	return g
}

// Defaults for postings: degrees when the output projection matches a
// geographic DEM, meters otherwise.
const (
	defaultXPostingDeg = 4.5e-5
	defaultYPostingDeg = 9.0e-5
	defaultXPostingM   = 5.0
	defaultYPostingM   = 10.0
)

// Generate builds one grid per burst id. Bursts sharing an id (different
// polarizations) share the (first) grid. The engine supplies the initial
// ground bounds of each radar grid.
func Generate(ctx context.Context, bursts []*burst.Burst, p Params, demEPSG int, boundsOf BoundsFunc) (map[string]GeoGrid, error) {
	grids := make(map[string]GeoGrid)

	for _, b := range bursts {
		if _, done := grids[b.BurstID]; done {
			continue
		}

		epsg := 0
		if p.OutputEPSG != nil {
			epsg = *p.OutputEPSG
		} else {
			var err error
			if epsg, err = PointEPSG(b.Center[1], b.Center[0]); err != nil {
				return nil, err
			}
		}
		if err := checkEPSG(epsg); err != nil {
			return nil, err
		}

		xDefault, yDefault := defaultXPostingM, defaultYPostingM
		if epsg == demEPSG {
			xDefault, yDefault = defaultXPostingDeg, defaultYPostingDeg
		}
		xSpacing, ySpacing, err := assignSpacing(p.XPosting, p.YPosting, xDefault, yDefault)
		if err != nil {
			return nil, err
		}

		bounds, err := boundsOf(ctx, b, xSpacing, ySpacing, epsg)
		if err != nil {
			return nil, fmt.Errorf("failed to derive ground bounds for burst %s: %v", b.BurstID, err)
		}

		grid := GeoGrid{
			StartX:   bounds.XMin,
			StartY:   bounds.YMax,
			SpacingX: xSpacing,
			SpacingY: ySpacing,
			Width:    gridSize(bounds.XMax, bounds.XMin, xSpacing),
			Length:   gridSize(bounds.YMin, bounds.YMax, ySpacing),
			EPSG:     epsg,
		}

		grid = applyOverrides(grid, p)

		xEnd, yEnd := grid.EndX(), grid.EndY()
		if p.BottomRightX != nil {
			xEnd = *p.BottomRightX
		}
		if p.BottomRightY != nil {
			yEnd = *p.BottomRightY
		}
		if err := checkSnapValues(p.XSnap, p.YSnap, xSpacing, ySpacing); err != nil {
			return nil, err
		}
		grids[b.BurstID] = snapGrid(grid, p.XSnap, p.YSnap, xEnd, yEnd)
	}

	return grids, nil
}

// Decimate shrinks a grid by an integer factor, covering the same footprint
// with coarser pixels. Used for calibration and noise LUT geocoding.
func Decimate(g GeoGrid, factor int) GeoGrid {
	return GeoGrid{
		StartX:   g.StartX,
		StartY:   g.StartY,
		SpacingX: g.SpacingX * float64(factor),
		SpacingY: g.SpacingY * float64(factor),
		Width:    g.Width/factor + 1,
		Length:   g.Length/factor + 1,
		EPSG:     g.EPSG,
	}
}
