package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/burstlab/s1-cslc-poc/internal/browse"
	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/eap"
	"github.com/burstlab/s1-cslc-poc/internal/engine"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/iono"
	"github.com/burstlab/s1-cslc-poc/internal/lut"
	"github.com/burstlab/s1-cslc-poc/internal/metadata"
	"github.com/burstlab/s1-cslc-poc/internal/product"
	"github.com/burstlab/s1-cslc-poc/internal/properties"
	"github.com/burstlab/s1-cslc-poc/internal/qa"
	"github.com/burstlab/s1-cslc-poc/internal/runconfig"
	"github.com/burstlab/s1-cslc-poc/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// lutDecimationFactor multilooks the radar grid before calibration and
// noise LUTs are geocoded. The surfaces are smooth, full resolution would
// only inflate the product.
const lutDecimationFactor = 40

// RunGeocodeSLC geocodes every staged burst polarization onto its output
// grid and assembles the full product set: georeferenced SLC raster, HDF5
// container with calibration and noise layers, QA report, JSON sidecar and
// browse image.
func RunGeocodeSLC(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig, summary *Summary) error {
	workflowStart := time.Now()
	var tecPaths map[string]string
	if cfg.Groups.Processing.CorrectionLUTs.Enabled && cfg.Groups.DynamicAncillaryFileGroup.TECFile == "" {
		tecPaths = prefetchTEC(ctx, cfg)
	}
	bar := progressbar.Default(int64(len(cfg.Bursts)), "geocoding bursts")

	for _, b := range cfg.Bursts {
		if err := geocodeBurst(ctx, eng, cfg, b, tecPaths, summary); err != nil {
			return err
		}
		bar.Add(1)
	}

	fmt.Printf("geocode workflow ran in %.2fs\n", time.Since(workflowStart).Seconds())
	return nil
}

func geocodeBurst(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig,
	b *burst.Burst, tecPaths map[string]string, summary *Summary) error {

	start := time.Now()
	idPol := b.IDPol()
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

	inputRaster, err := stageInputRaster(cfg, b, paths)
	if err != nil {
		return err
	}

	correction, err := eap.Check(b.IPFVersion)
	if err != nil {
		return err
	}
	eapApplied := false
	if correction.Phase {
		corrected := filepath.Join(paths.ScratchDirectory, idPol+"_eap.slc")
		req := engine.EAPRequest{Burst: b, InputRaster: inputRaster, OutputRaster: corrected}
		if err := eng.ApplyEAPCorrection(ctx, req); err != nil {
			return fmt.Errorf("failed to apply EAP correction to %s: %v", idPol, err)
		}
		inputRaster = corrected
		eapApplied = true
	}

	splitOpts := cfg.Groups.Processing.RangeSplitSpectrum
	if splitOpts.Enabled {
		stacked, err := eng.SplitRangeSpectrum(ctx, engine.SplitSpectrumRequest{
			Burst:             b,
			InputRaster:       inputRaster,
			LowBandBandwidth:  splitOpts.LowBandBandwidth,
			HighBandBandwidth: splitOpts.HighBandBandwidth,
			WindowType:        splitOpts.WindowType,
			WindowShape:       splitOpts.WindowShape,
			ScratchDir:        paths.ScratchDirectory,
		})
		if err != nil {
			return fmt.Errorf("failed to split range spectrum of %s: %v", idPol, err)
		}
		inputRaster = stacked
	}

	var rangeLUT, azimuthLUT lut.LUT2d
	lutOpts := cfg.Groups.Processing.CorrectionLUTs
	if lutOpts.Enabled {
		tecPath := cfg.Groups.DynamicAncillaryFileGroup.TECFile
		if tecPath == "" {
			tecPath = tecPaths[b.DateString()]
		}
		spacing := lut.Spacing{RangeStep: lutOpts.RangeSpacing, AzimuthStep: lutOpts.AzimuthSpacing}
		rangeLUT, azimuthLUT, err = lut.ComputeGeocodingCorrections(
			ctx, eng, b, cfg.DEM(), tecPath, paths.ScratchDirectory, spacing)
		if err != nil {
			return err
		}
	}

	outputRaster := paths.SlcPath(idPol)
	req := engine.GeocodeSLCRequest{
		Burst:        b,
		InputRaster:  inputRaster,
		OutputRaster: outputRaster,
		DEMPath:      cfg.DEM(),
		Grid:         grid,
		Geometry:     geometryParams(cfg.RunConfig),
		OutputFormat: cfg.Groups.Processing.Geocoding.OutputFormat,
		Flatten:      cfg.Groups.Processing.Geocoding.Flatten,
		ValidRegion: engine.ValidRegion{
			FirstLine:   b.FirstValidLine,
			LastLine:    b.LastValidLine,
			FirstSample: b.FirstValidSample,
			LastSample:  b.LastValidSample,
		},
		RangeLUT:   rangeLUT,
		AzimuthLUT: azimuthLUT,
		ScratchDir: paths.ScratchDirectory,
	}
	if err := eng.GeocodeSLC(ctx, req); err != nil {
		return fmt.Errorf("failed to geocode %s: %v", idPol, err)
	}
	if err := stampGeoreferencing(outputRaster, grid); err != nil {
		return err
	}

	sidecar := metadata.BuildGeoCslc(b, grid, cfg.DEM(), cfg.ReferencePath(),
		cfg.IsReference(), eapApplied, splitOpts.Enabled)
	if err := sidecar.ToFile(paths.MetadataPath(idPol)); err != nil {
		return err
	}
	if err := browse.Render(outputRaster, paths.BrowsePath(idPol)); err != nil {
		return err
	}

	if err := writeProduct(ctx, eng, cfg, b, grid, paths, outputRaster); err != nil {
		return err
	}

	summary.Add(b.BurstID, b.DateString(), b.Polarization, "geocode_slc", outputRaster, start)
	logStageDone("geocode_slc", idPol, start)
	return nil
}

// stageInputRaster resolves the radar-domain SLC to geocode: the annotated
// measurement for the stack reference, the coregistered raster left by the
// resample workflow for secondaries.
func stageInputRaster(cfg *runconfig.GeoRunConfig, b *burst.Burst, paths runconfig.OutputPaths) (string, error) {
	if cfg.IsReference() {
		vrtPath := filepath.Join(paths.ScratchDirectory, b.IDPol()+".vrt")
		if err := b.SlcToVRT(vrtPath); err != nil {
			return "", err
		}
		return vrtPath, nil
	}
	raster := coregisteredPath(paths.ScratchDirectory, b.IDPol())
	if err := utils.CheckFilePath(raster); err != nil {
		return "", fmt.Errorf("coregistered raster for %s not found, run the cslc workflow first: %v",
			b.IDPol(), err)
	}
	return raster, nil
}

// stampGeoreferencing writes the output grid projection and geotransform
// onto a raster the engine produced without georeferencing.
func stampGeoreferencing(path string, grid geogrid.GeoGrid) error {
	ds, err := godal.Open(path, godal.Update())
	if err != nil {
		return fmt.Errorf("failed to open geocoded raster %s: %v", path, err)
	}
	defer ds.Close()

	sr, err := godal.NewSpatialRefFromEPSG(grid.EPSG)
	if err != nil {
		return fmt.Errorf("failed to build spatial ref for EPSG %d: %v", grid.EPSG, err)
	}
	defer sr.Close()

	if err := ds.SetSpatialRef(sr); err != nil {
		return fmt.Errorf("failed to set projection on %s: %v", path, err)
	}
	if err := ds.SetGeoTransform(grid.GeoTransform()); err != nil {
		return fmt.Errorf("failed to set geotransform on %s: %v", path, err)
	}
	return nil
}

// writeProduct assembles the HDF5 container for one geocoded burst.
func writeProduct(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig,
	b *burst.Burst, grid geogrid.GeoGrid, paths runconfig.OutputPaths, slcRaster string) error {

	idPol := b.IDPol()
	h5, err := product.Create(paths.HDF5Path(idPol))
	if err != nil {
		return err
	}
	defer h5.Close()

	if err := geocodeCalibrationLUTs(ctx, eng, cfg, b, grid, paths, h5); err != nil {
		return err
	}
	if err := geocodeNoiseLUTs(ctx, eng, cfg, b, grid, paths, h5); err != nil {
		return err
	}

	report, err := qa.RunRaster(slcRaster, geocodedMaskPath(paths), orbitType(b))
	if err != nil {
		return err
	}
	if err := report.ToHDF5(h5); err != nil {
		return fmt.Errorf("failed to write QA group for %s: %v", idPol, err)
	}
	qaPath := filepath.Join(paths.OutputDirectory, idPol+"_qa.json")
	return report.ToFile(qaPath)
}

// prefetchTEC pulls the ionosphere TEC archives for every sensing date and
// returns local paths keyed by date string. Missing archive access
// downgrades to a warning, the correction LUTs still cover the
// deterministic geometry terms. The download directory is the shared
// ancillary root when configured, so dates are fetched once across runs.
func prefetchTEC(ctx context.Context, cfg *runconfig.GeoRunConfig) map[string]string {
	dir := properties.RootPath()
	if dir == "" {
		dir = cfg.ScratchPath()
	}
	client, err := iono.NewClient(ctx, dir)
	if err != nil {
		fmt.Printf("skipping TEC prefetch: %v\n", err)
		return nil
	}
	seen := make(map[string]bool)
	var dates []time.Time
	for _, b := range cfg.Bursts {
		if seen[b.DateString()] {
			continue
		}
		seen[b.DateString()] = true
		dates = append(dates, b.SensingStart)
	}
	paths, err := client.Prefetch(ctx, dates)
	if err != nil {
		fmt.Printf("TEC prefetch incomplete: %v\n", err)
	}
	return paths
}

// geocodedMaskPath returns the layover/shadow mask the metadata workflow
// geocoded for this unit, or empty when the layer was never produced.
func geocodedMaskPath(paths runconfig.OutputPaths) string {
	mask := filepath.Join(paths.ScratchDirectory, "geocoded", "layover_shadow_mask.geo.tif")
	if _, err := os.Stat(mask); err != nil {
		return ""
	}
	return mask
}

func orbitType(b *burst.Burst) string {
	if b.Orbit.Type == "" {
		return "unknown"
	}
	return b.Orbit.Type
}
