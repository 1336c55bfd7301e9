package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/engine"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/product"
	"github.com/burstlab/s1-cslc-poc/internal/runconfig"
	"github.com/burstlab/s1-cslc-poc/internal/utils"
)

const topoGroup = product.MetadataPath + "/topo"

type metadataLayer struct {
	name         string
	description  string
	kind         product.DatasetKind
	interpolator string
}

// RunGeocodeMetadata geocodes the topography layers of each reference
// burst onto the output grid and collects them in a topo container.
func RunGeocodeMetadata(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig, summary *Summary) error {
	workflowStart := time.Now()
	opts := cfg.Groups.Processing.Rdr2Geo

	layers := enabledLayers(opts)
	if len(layers) == 0 {
		fmt.Println("geocode_metadata: no topography layers enabled, nothing to do")
		return nil
	}

	for _, b := range coregistrationUnits(cfg.Bursts) {
		start := time.Now()
		grid, ok := cfg.GeoGrids[b.BurstID]
		if !ok {
			return fmt.Errorf("no geogrid generated for burst %s", b.BurstID)
		}
		paths, ok := cfg.OutputPaths[b.IDDate()]
		if !ok {
			return fmt.Errorf("no output paths derived for %s", b.IDDate())
		}
		for _, dir := range []string{paths.OutputDirectory, paths.ScratchDirectory} {
			if err := utils.EnsureDirectory(dir); err != nil {
				return err
			}
		}

		// Without a fresh rdr2geo run the layers come from the archive the
		// cslc workflow left in the product directory.
		rdrDir := paths.OutputDirectory
		if opts.Enabled {
			rdrDir = filepath.Join(paths.ScratchDirectory, "rdr2geo")
			if err := utils.EnsureDirectory(rdrDir); err != nil {
				return err
			}
			req := engine.Rdr2GeoRequest{
				Burst:     b,
				DEMPath:   cfg.DEM(),
				OutputDir: rdrDir,
				Geometry:  geometryParams(cfg.RunConfig),

				ComputeLatitude:            opts.ComputeLatitude,
				ComputeLongitude:           opts.ComputeLongitude,
				ComputeHeight:              opts.ComputeHeight,
				ComputeIncidenceAngle:      opts.ComputeIncidenceAngle,
				ComputeLocalIncidenceAngle: opts.ComputeLocalIncidenceAngle,
				ComputeAzimuthAngle:        opts.ComputeAzimuthAngle,
				ComputeLayoverShadowMask:   opts.ComputeLayoverShadowMask,

				GPU: gpuParams(cfg.RunConfig),
			}
			if err := eng.Rdr2Geo(ctx, req); err != nil {
				return fmt.Errorf("failed to run rdr2geo for %s: %v", b.IDDate(), err)
			}
		}

		topoPath := paths.TopoHDF5Path()
		h5, err := product.Create(topoPath)
		if err != nil {
			return err
		}
		if err := geocodeLayers(ctx, eng, cfg, b, grid, rdrDir, paths, h5, layers); err != nil {
			h5.Close()
			return err
		}
		if err := h5.Close(); err != nil {
			return fmt.Errorf("failed to close topo container %s: %v", topoPath, err)
		}

		summary.Add(b.BurstID, b.DateString(), b.Polarization, "geocode_metadata", topoPath, start)
		logStageDone("geocode_metadata", b.IDDate(), start)
	}

	fmt.Printf("geocode_metadata workflow ran in %.2fs\n", time.Since(workflowStart).Seconds())
	return nil
}

func enabledLayers(opts runconfig.Rdr2GeoOptions) []metadataLayer {
	all := []struct {
		enabled bool
		layer   metadataLayer
	}{
		{opts.ComputeLongitude, metadataLayer{"x", "interpolated longitude coordinate", product.Float32Dataset, "bilinear"}},
		{opts.ComputeLatitude, metadataLayer{"y", "interpolated latitude coordinate", product.Float32Dataset, "bilinear"}},
		{opts.ComputeHeight, metadataLayer{"z", "interpolated height above ellipsoid", product.Float32Dataset, "bilinear"}},
		{opts.ComputeIncidenceAngle, metadataLayer{"incidence_angle", "incidence angle in degrees", product.Float32Dataset, "bilinear"}},
		{opts.ComputeLocalIncidenceAngle, metadataLayer{"local_incidence_angle", "local incidence angle in degrees", product.Float32Dataset, "bilinear"}},
		{opts.ComputeAzimuthAngle, metadataLayer{"azimuth_angle", "sensor azimuth angle in degrees", product.Float32Dataset, "bilinear"}},
		{opts.ComputeLayoverShadowMask, metadataLayer{"layover_shadow_mask", "layover and shadow mask", product.ByteDataset, "nearest"}},
	}
	var layers []metadataLayer
	for _, entry := range all {
		if entry.enabled {
			layers = append(layers, entry.layer)
		}
	}
	return layers
}

func geocodeLayers(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig,
	b *burst.Burst, grid geogrid.GeoGrid, rdrDir string, paths runconfig.OutputPaths,
	h5 *product.File, layers []metadataLayer) error {

	geocodedDir := filepath.Join(paths.ScratchDirectory, "geocoded")
	if err := utils.EnsureDirectory(geocodedDir); err != nil {
		return err
	}

	for _, layer := range layers {
		outputRaster := filepath.Join(geocodedDir, layer.name+".geo.tif")
		req := engine.GeocodeRasterRequest{
			Burst:        b,
			InputRaster:  filepath.Join(rdrDir, layer.name+".rdr"),
			OutputRaster: outputRaster,
			DEMPath:      cfg.DEM(),
			Grid:         grid,
			Geometry:     geometryParams(cfg.RunConfig),
			BlockSize:    cfg.Groups.Processing.Geo2Rdr.LinesPerBlock * grid.Width * 4,
			Interpolator: layer.interpolator,
			Decimation:   1,
		}
		if err := eng.GeocodeRaster(ctx, req); err != nil {
			return fmt.Errorf("failed to geocode %s layer for %s: %v", layer.name, b.IDDate(), err)
		}
		if err := stampGeoreferencing(outputRaster, grid); err != nil {
			return err
		}

		if err := h5.InitGeocodedDataset(topoGroup, layer.name, grid, layer.kind, layer.description); err != nil {
			return err
		}
		if err := h5.CopyRaster(topoGroup, layer.name, outputRaster, layer.kind); err != nil {
			return err
		}
	}
	return nil
}
