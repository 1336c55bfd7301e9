package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/burstlab/s1-cslc-poc/internal/engine"
	"github.com/burstlab/s1-cslc-poc/internal/runconfig"
	"github.com/burstlab/s1-cslc-poc/internal/utils"
)

// RunRdr2Geo derives topography layers for the stack reference bursts and
// archives the radar grid each secondary will coregister against.
func RunRdr2Geo(ctx context.Context, eng engine.Engine, cfg *runconfig.RunConfig, summary *Summary) error {
	workflowStart := time.Now()
	opts := cfg.Groups.Processing.Rdr2Geo

	for _, b := range coregistrationUnits(cfg.Bursts) {
		start := time.Now()
		outDir := cfg.OutputDir(b.BurstID, b.DateString())
		if err := utils.EnsureDirectory(outDir); err != nil {
			return err
		}

		req := engine.Rdr2GeoRequest{
			Burst:     b,
			DEMPath:   cfg.DEM(),
			OutputDir: outDir,
			Geometry:  geometryParams(cfg),

			ComputeLatitude:            opts.ComputeLatitude,
			ComputeLongitude:           opts.ComputeLongitude,
			ComputeHeight:              opts.ComputeHeight,
			ComputeIncidenceAngle:      opts.ComputeIncidenceAngle,
			ComputeLocalIncidenceAngle: opts.ComputeLocalIncidenceAngle,
			ComputeAzimuthAngle:        opts.ComputeAzimuthAngle,
			ComputeLayoverShadowMask:   opts.ComputeLayoverShadowMask,

			GPU: gpuParams(cfg),
		}
		if err := eng.Rdr2Geo(ctx, req); err != nil {
			return fmt.Errorf("failed to run rdr2geo for %s: %v", b.IDDate(), err)
		}

		gridPath := filepath.Join(outDir, "radar_grid.txt")
		if err := b.AsRadarGrid().ToFile(gridPath); err != nil {
			return err
		}

		summary.Add(b.BurstID, b.DateString(), b.Polarization, "rdr2geo", outDir, start)
		logStageDone("rdr2geo", b.IDDate(), start)
	}

	fmt.Printf("rdr2geo workflow ran in %.2fs\n", time.Since(workflowStart).Seconds())
	return nil
}
