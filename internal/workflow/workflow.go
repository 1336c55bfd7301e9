// Package workflow sequences the geometry engine calls that turn staged
// burst annotations into coregistered and geocoded products.
package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/engine"
	"github.com/burstlab/s1-cslc-poc/internal/runconfig"
)

func geometryParams(cfg *runconfig.RunConfig) engine.GeometryParams {
	g := cfg.Groups.Processing.Geo2Rdr
	return engine.GeometryParams{
		Threshold:     g.Threshold,
		NumIter:       g.NumIter,
		LinesPerBlock: g.LinesPerBlock,
	}
}

func gpuParams(cfg *runconfig.RunConfig) engine.GPU {
	return engine.GPU{
		Enabled: cfg.Groups.Worker.GPUEnabled,
		ID:      cfg.Groups.Worker.GPUID,
	}
}

// coregistrationUnits keeps the first burst of every (burst id, date) pair.
// Polarizations of the same pair share one set of geometry products, so the
// radar-grid stages run once per pair no matter how many were staged.
func coregistrationUnits(bursts []*burst.Burst) []*burst.Burst {
	seen := make(map[string]bool)
	units := make([]*burst.Burst, 0, len(bursts))
	for _, b := range bursts {
		if seen[b.IDDate()] {
			continue
		}
		seen[b.IDDate()] = true
		units = append(units, b)
	}
	return units
}

// referenceDir locates the archived reference products for a burst id under
// the configured reference path. Exactly one date directory is expected.
func referenceDir(refPath, burstID string) (string, error) {
	base := filepath.Join(refPath, burstID)
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("failed to read reference directory %s: %v", base, err)
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			dates = append(dates, e.Name())
		}
	}
	if len(dates) == 0 {
		return "", fmt.Errorf("no reference products found under %s", base)
	}
	sort.Strings(dates)
	return filepath.Join(base, dates[0]), nil
}

func referenceTopoPath(refDir string) string {
	return filepath.Join(refDir, "topo.vrt")
}

func coregisteredPath(scratchDir, idPol string) string {
	return filepath.Join(scratchDir, idPol+"_coregistered.slc")
}

func logStageDone(stage, unit string, start time.Time) {
	fmt.Printf("%s for %s ran in %.2fs\n", stage, unit, time.Since(start).Seconds())
}

// RunCSLC runs the radar-domain half of the pipeline: topography for the
// stack reference, coregistration and resampling for secondaries.
func RunCSLC(ctx context.Context, eng engine.Engine, cfg *runconfig.RunConfig, summary *Summary) error {
	if cfg.IsReference() {
		return RunRdr2Geo(ctx, eng, cfg, summary)
	}
	if err := RunGeo2Rdr(ctx, eng, cfg, summary); err != nil {
		return err
	}
	return RunResample(ctx, eng, cfg, summary)
}
