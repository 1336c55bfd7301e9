package runconfig

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
)

// OutputPaths is the pair of directories everything for one (burst id,
// date) unit lands in, plus helpers for the product file names inside them.
type OutputPaths struct {
	OutputDirectory  string
	ScratchDirectory string
}

// HDF5Path is the geocoded product container for a burst + polarization.
func (p OutputPaths) HDF5Path(idPol string) string {
	return filepath.Join(p.OutputDirectory, idPol+".h5")
}

// SlcPath is the geocoded SLC raster for a burst + polarization.
func (p OutputPaths) SlcPath(idPol string) string {
	return filepath.Join(p.OutputDirectory, idPol+".slc")
}

// MetadataPath is the JSON sidecar for a burst + polarization.
func (p OutputPaths) MetadataPath(idPol string) string {
	return filepath.Join(p.OutputDirectory, idPol+".json")
}

// BrowsePath is the quicklook image for a burst + polarization.
func (p OutputPaths) BrowsePath(idPol string) string {
	return filepath.Join(p.OutputDirectory, idPol+"_browse.png")
}

// TopoHDF5Path is the geocoded topography layer container.
func (p OutputPaths) TopoHDF5Path() string {
	return filepath.Join(p.OutputDirectory, "topo.h5")
}

// GeoRunConfig extends RunConfig with the per-burst output grids and
// deterministic output paths needed by the geocoding workflows.
type GeoRunConfig struct {
	*RunConfig
	DEMEpsg     int
	GeoGrids    map[string]geogrid.GeoGrid // keyed by burst id
	OutputPaths map[string]OutputPaths     // keyed by burst IDDate
}

// geocodingParams translates the YAML geocoding group into grid parameters.
func (c *RunConfig) geocodingParams() geogrid.Params {
	g := c.Groups.Processing.Geocoding
	return geogrid.Params{
		OutputEPSG:   g.OutputEPSG,
		XPosting:     g.XPosting,
		YPosting:     g.YPosting,
		TopLeftX:     g.TopLeft.X,
		TopLeftY:     g.TopLeft.Y,
		BottomRightX: g.BottomRight.X,
		BottomRightY: g.BottomRight.Y,
		XSnap:        g.XSnap,
		YSnap:        g.YSnap,
	}
}

// NewGeo derives the geogrids and output paths for an already loaded
// RunConfig. The engine supplies radar grid ground bounds through boundsOf.
func NewGeo(ctx context.Context, cfg *RunConfig, demEPSG int, boundsOf geogrid.BoundsFunc) (*GeoRunConfig, error) {
	grids, err := geogrid.Generate(ctx, cfg.Bursts, cfg.geocodingParams(), demEPSG, boundsOf)
	if err != nil {
		return nil, fmt.Errorf("failed to generate geogrids: %v", err)
	}

	paths := make(map[string]OutputPaths)
	for _, b := range cfg.Bursts {
		key := b.IDDate()
		if _, done := paths[key]; done {
			continue
		}
		paths[key] = OutputPaths{
			OutputDirectory:  cfg.OutputDir(b.BurstID, b.DateString()),
			ScratchDirectory: cfg.ScratchDir(b.BurstID, b.DateString()),
		}
	}

	return &GeoRunConfig{
		RunConfig:   cfg,
		DEMEpsg:     demEPSG,
		GeoGrids:    grids,
		OutputPaths: paths,
	}, nil
}

// LoadGeo loads and validates a geocoding run configuration. boundsOf is a
// factory so callers can build the ground-bounds provider from the loaded
// configuration (the engine's GPU selection lives in the worker group).
func LoadGeo(ctx context.Context, path, workflowName string, boundsOf func(*RunConfig) geogrid.BoundsFunc) (*GeoRunConfig, error) {
	cfg, err := Load(path, workflowName)
	if err != nil {
		return nil, err
	}
	demEPSG, err := DEMEpsg(cfg.DEM())
	if err != nil {
		return nil, err
	}
	// A geographic DEM footprint can be compared against the burst borders
	// directly; partial coverage produces unusable topography layers.
	if demEPSG == 4326 {
		ring, err := DEMRing(cfg.DEM())
		if err != nil {
			return nil, err
		}
		for _, b := range cfg.Bursts {
			if !b.FullyCovers(ring) {
				return nil, fmt.Errorf("DEM does not fully cover burst %s", b.BurstID)
			}
		}
	}
	return NewGeo(ctx, cfg, demEPSG, boundsOf(cfg))
}
