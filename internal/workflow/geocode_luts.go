package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/engine"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/product"
	"github.com/burstlab/s1-cslc-poc/internal/runconfig"
	"github.com/burstlab/s1-cslc-poc/internal/utils"
)

const (
	calibrationGroup = product.MetadataPath + "/calibration_information"
	noiseGroup       = product.MetadataPath + "/noise_information"
)

// decimatedRadarSize mirrors how the output grid is decimated: every
// factor-th sample plus the closing one.
func decimatedRadarSize(size, factor int) int {
	return size/factor + 1
}

// buildLutRaster expands a slant-range calibration vector into a decimated
// radar-domain raster: linear interpolation along range, constant along
// azimuth.
func buildLutRaster(vector []float64, width, length int) []float32 {
	row := make([]float32, width)
	switch {
	case len(vector) == 1 || width == 1:
		for i := range row {
			row[i] = float32(vector[0])
		}
	default:
		scale := float64(len(vector)-1) / float64(width-1)
		for i := range row {
			pos := float64(i) * scale
			lo := int(pos)
			if lo >= len(vector)-1 {
				row[i] = float32(vector[len(vector)-1])
				continue
			}
			frac := pos - float64(lo)
			row[i] = float32(vector[lo]*(1-frac) + vector[lo+1]*frac)
		}
	}

	data := make([]float32, width*length)
	for y := 0; y < length; y++ {
		copy(data[y*width:(y+1)*width], row)
	}
	return data
}

func writeLutRaster(path string, data []float32, width, length int) error {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, width, length)
	if err != nil {
		return fmt.Errorf("failed to create LUT raster %s: %v", path, err)
	}
	defer ds.Close()
	if err := ds.Bands()[0].Write(0, 0, data, width, length); err != nil {
		return fmt.Errorf("failed to write LUT raster %s: %v", path, err)
	}
	return nil
}

func geocodeLut(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig,
	b *burst.Burst, grid geogrid.GeoGrid, paths runconfig.OutputPaths,
	h5 *product.File, group, name string, vector []float64, description string) error {

	if len(vector) == 0 {
		return nil
	}

	scratchDir := filepath.Join(paths.ScratchDirectory, "lut")
	if err := utils.EnsureDirectory(scratchDir); err != nil {
		return err
	}

	width := decimatedRadarSize(b.RadarGrid.Width, lutDecimationFactor)
	length := decimatedRadarSize(b.RadarGrid.Length, lutDecimationFactor)
	inputRaster := filepath.Join(scratchDir, name+".tif")
	if err := writeLutRaster(inputRaster, buildLutRaster(vector, width, length), width, length); err != nil {
		return err
	}

	decGrid := geogrid.Decimate(grid, lutDecimationFactor)
	outputRaster := filepath.Join(scratchDir, name+".geo.tif")
	req := engine.GeocodeRasterRequest{
		Burst:        b,
		InputRaster:  inputRaster,
		OutputRaster: outputRaster,
		DEMPath:      cfg.DEM(),
		Grid:         decGrid,
		Geometry:     geometryParams(cfg.RunConfig),
		BlockSize:    cfg.Groups.Processing.Geo2Rdr.LinesPerBlock * decGrid.Width * 4,
		Interpolator: "bilinear",
		Decimation:   lutDecimationFactor,
	}
	if err := eng.GeocodeRaster(ctx, req); err != nil {
		return fmt.Errorf("failed to geocode %s LUT for %s: %v", name, b.IDPol(), err)
	}

	if err := h5.InitGeocodedDataset(group, name, decGrid, product.Float32Dataset, description); err != nil {
		return err
	}
	return h5.CopyRaster(group, name, outputRaster, product.Float32Dataset)
}

// geocodeCalibrationLUTs geocodes the radiometric calibration vectors onto
// the decimated output grid and stores them in the product container.
func geocodeCalibrationLUTs(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig,
	b *burst.Burst, grid geogrid.GeoGrid, paths runconfig.OutputPaths, h5 *product.File) error {

	luts := []struct {
		name        string
		vector      []float64
		description string
	}{
		{"gamma", b.Calibration.Gamma, "calibration gamma factor"},
		{"sigma_naught", b.Calibration.SigmaNaught, "calibration sigma naught factor"},
		{"dn", b.Calibration.Dn, "calibration digital number factor"},
	}
	for _, l := range luts {
		if err := geocodeLut(ctx, eng, cfg, b, grid, paths, h5,
			calibrationGroup, l.name, l.vector, l.description); err != nil {
			return err
		}
	}
	return nil
}

// geocodeNoiseLUTs geocodes the thermal noise vector alongside the
// calibration layers.
func geocodeNoiseLUTs(ctx context.Context, eng engine.Engine, cfg *runconfig.GeoRunConfig,
	b *burst.Burst, grid geogrid.GeoGrid, paths runconfig.OutputPaths, h5 *product.File) error {

	return geocodeLut(ctx, eng, cfg, b, grid, paths, h5,
		noiseGroup, "thermal_noise_lut", b.ThermalNoiseLUT, "thermal noise correction")
}
