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

// RunResample interpolates every secondary burst polarization onto the
// reference grid using the offsets RunGeo2Rdr left in scratch.
func RunResample(ctx context.Context, eng engine.Engine, cfg *runconfig.RunConfig, summary *Summary) error {
	workflowStart := time.Now()
	opts := cfg.Groups.Processing.Resample

	for _, b := range cfg.Bursts {
		start := time.Now()
		scratchDir := cfg.ScratchDir(b.BurstID, b.DateString())
		if err := utils.EnsureDirectory(scratchDir); err != nil {
			return err
		}

		vrtPath := filepath.Join(scratchDir, b.IDPol()+".vrt")
		if err := b.SlcToVRT(vrtPath); err != nil {
			return err
		}

		outputPath := coregisteredPath(scratchDir, b.IDPol())
		req := engine.ResampleRequest{
			Burst:         b,
			InputRaster:   vrtPath,
			OffsetsDir:    filepath.Join(scratchDir, "geo2rdr"),
			OutputPath:    outputPath,
			LinesPerBlock: opts.LinesPerBlock,
			FlattenPhase:  opts.FlattenPhase,
		}
		if err := eng.Resample(ctx, req); err != nil {
			return fmt.Errorf("failed to resample %s: %v", b.IDPol(), err)
		}

		summary.Add(b.BurstID, b.DateString(), b.Polarization, "resample", outputPath, start)
		logStageDone("resample", b.IDPol(), start)
	}

	fmt.Printf("resample workflow ran in %.2fs\n", time.Since(workflowStart).Seconds())
	return nil
}
