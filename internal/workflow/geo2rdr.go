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

// RunGeo2Rdr computes coregistration offsets for each secondary burst
// against the archived reference topography, once per (burst id, date).
func RunGeo2Rdr(ctx context.Context, eng engine.Engine, cfg *runconfig.RunConfig, summary *Summary) error {
	workflowStart := time.Now()

	for _, b := range coregistrationUnits(cfg.Bursts) {
		start := time.Now()
		refDir, err := referenceDir(cfg.ReferencePath(), b.BurstID)
		if err != nil {
			return err
		}

		offsetsDir := filepath.Join(cfg.ScratchDir(b.BurstID, b.DateString()), "geo2rdr")
		if err := utils.EnsureDirectory(offsetsDir); err != nil {
			return err
		}

		req := engine.Geo2RdrRequest{
			Burst:     b,
			TopoPath:  referenceTopoPath(refDir),
			OutputDir: offsetsDir,
			Geometry:  geometryParams(cfg),
			GPU:       gpuParams(cfg),
		}
		if err := eng.Geo2Rdr(ctx, req); err != nil {
			return fmt.Errorf("failed to run geo2rdr for %s: %v", b.IDDate(), err)
		}

		summary.Add(b.BurstID, b.DateString(), b.Polarization, "geo2rdr", offsetsDir, start)
		logStageDone("geo2rdr", b.IDDate(), start)
	}

	fmt.Printf("geo2rdr workflow ran in %.2fs\n", time.Since(workflowStart).Seconds())
	return nil
}
