package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/lut"
	"github.com/burstlab/s1-cslc-poc/internal/properties"
)

// Exec drives the geometry engine command line tool as a subprocess, one
// invocation per capability call. Structured query results come back as
// JSON on stdout; processing output goes straight to the requested rasters.
type Exec struct {
	bin string
	gpu GPU
}

// NewExec returns an engine bound to the given binary. An empty bin falls
// back to the environment / PATH lookup.
func NewExec(bin string, gpu GPU) *Exec {
	if bin == "" {
		bin = properties.EngineBin()
	}
	return &Exec{bin: bin, gpu: gpu}
}

func (e *Exec) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.bin, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %v", filepath.Base(e.bin), args[0], err)
	}
	return stdout.Bytes(), nil
}

func (e *Exec) runJSON(ctx context.Context, args []string, out interface{}) error {
	raw, err := e.run(ctx, args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: unparsable output: %v", filepath.Base(e.bin), args[0], err)
	}
	return nil
}

func (e *Exec) gpuArgs() []string {
	if !e.gpu.Enabled {
		return nil
	}
	return []string{"--gpu", "--gpu-id", strconv.Itoa(e.gpu.ID)}
}

func geometryArgs(p GeometryParams) []string {
	return []string{
		"--threshold", strconv.FormatFloat(p.Threshold, 'g', -1, 64),
		"--numiter", strconv.Itoa(p.NumIter),
		"--lines-per-block", strconv.Itoa(p.LinesPerBlock),
	}
}

func gridArgs(g geogrid.GeoGrid) []string {
	return []string{
		"--grid-start-x", strconv.FormatFloat(g.StartX, 'g', -1, 64),
		"--grid-start-y", strconv.FormatFloat(g.StartY, 'g', -1, 64),
		"--grid-spacing-x", strconv.FormatFloat(g.SpacingX, 'g', -1, 64),
		"--grid-spacing-y", strconv.FormatFloat(g.SpacingY, 'g', -1, 64),
		"--grid-width", strconv.Itoa(g.Width),
		"--grid-length", strconv.Itoa(g.Length),
		"--grid-epsg", strconv.Itoa(g.EPSG),
	}
}

func spacingArgs(sp lut.Spacing) []string {
	return []string{
		"--range-step", strconv.FormatFloat(sp.RangeStep, 'g', -1, 64),
		"--azimuth-step", strconv.FormatFloat(sp.AzimuthStep, 'g', -1, 64),
	}
}

// GroundBounds implements Engine.
func (e *Exec) GroundBounds(ctx context.Context, b *burst.Burst, xSpacing, ySpacing float64, epsg int) (geogrid.Bounds, error) {
	args := []string{
		"ground-bounds",
		"--burst", b.AnnotationPath,
		"--spacing-x", strconv.FormatFloat(xSpacing, 'g', -1, 64),
		"--spacing-y", strconv.FormatFloat(ySpacing, 'g', -1, 64),
		"--epsg", strconv.Itoa(epsg),
	}
	var bounds geogrid.Bounds
	if err := e.runJSON(ctx, args, &bounds); err != nil {
		return geogrid.Bounds{}, err
	}
	return bounds, nil
}

// Rdr2Geo implements Engine.
func (e *Exec) Rdr2Geo(ctx context.Context, req Rdr2GeoRequest) error {
	args := []string{
		"rdr2geo",
		"--burst", req.Burst.AnnotationPath,
		"--dem", req.DEMPath,
		"--output-dir", req.OutputDir,
	}
	args = append(args, geometryArgs(req.Geometry)...)
	layers := []struct {
		flag    string
		enabled bool
	}{
		{"--latitude", req.ComputeLatitude},
		{"--longitude", req.ComputeLongitude},
		{"--height", req.ComputeHeight},
		{"--incidence-angle", req.ComputeIncidenceAngle},
		{"--local-incidence-angle", req.ComputeLocalIncidenceAngle},
		{"--azimuth-angle", req.ComputeAzimuthAngle},
		{"--layover-shadow-mask", req.ComputeLayoverShadowMask},
	}
	for _, layer := range layers {
		if layer.enabled {
			args = append(args, layer.flag)
		}
	}
	args = append(args, e.gpuArgs()...)
	_, err := e.run(ctx, args)
	return err
}

// Geo2Rdr implements Engine.
func (e *Exec) Geo2Rdr(ctx context.Context, req Geo2RdrRequest) error {
	args := []string{
		"geo2rdr",
		"--burst", req.Burst.AnnotationPath,
		"--topo", req.TopoPath,
		"--output-dir", req.OutputDir,
	}
	args = append(args, geometryArgs(req.Geometry)...)
	args = append(args, e.gpuArgs()...)
	_, err := e.run(ctx, args)
	return err
}

// Resample implements Engine.
func (e *Exec) Resample(ctx context.Context, req ResampleRequest) error {
	args := []string{
		"resample",
		"--burst", req.Burst.AnnotationPath,
		"--input", req.InputRaster,
		"--offsets-dir", req.OffsetsDir,
		"--output", req.OutputPath,
		"--lines-per-block", strconv.Itoa(req.LinesPerBlock),
	}
	if req.FlattenPhase {
		args = append(args, "--flatten")
	}
	_, err := e.run(ctx, args)
	return err
}

// GeocodeSLC implements Engine. Correction LUTs are staged as JSON files in
// the request scratch directory and handed to the engine by path.
func (e *Exec) GeocodeSLC(ctx context.Context, req GeocodeSLCRequest) error {
	args := []string{
		"geocode-slc",
		"--burst", req.Burst.AnnotationPath,
		"--input", req.InputRaster,
		"--output", req.OutputRaster,
		"--dem", req.DEMPath,
		"--first-line", strconv.Itoa(req.ValidRegion.FirstLine),
		"--last-line", strconv.Itoa(req.ValidRegion.LastLine),
		"--first-sample", strconv.Itoa(req.ValidRegion.FirstSample),
		"--last-sample", strconv.Itoa(req.ValidRegion.LastSample),
	}
	args = append(args, gridArgs(req.Grid)...)
	args = append(args, geometryArgs(req.Geometry)...)
	if req.OutputFormat != "" {
		args = append(args, "--output-format", req.OutputFormat)
	}
	if req.Flatten {
		args = append(args, "--flatten")
	}

	for _, l := range []struct {
		flag string
		lut  lut.LUT2d
		name string
	}{
		{"--range-lut", req.RangeLUT, "range_lut.json"},
		{"--azimuth-lut", req.AzimuthLUT, "azimuth_lut.json"},
	} {
		if l.lut.IsZero() {
			continue
		}
		path := filepath.Join(req.ScratchDir, l.name)
		if err := writeLUT(path, l.lut); err != nil {
			return err
		}
		args = append(args, l.flag, path)
	}

	_, err := e.run(ctx, args)
	return err
}

// GeocodeRaster implements Engine.
func (e *Exec) GeocodeRaster(ctx context.Context, req GeocodeRasterRequest) error {
	args := []string{
		"geocode-raster",
		"--burst", req.Burst.AnnotationPath,
		"--input", req.InputRaster,
		"--output", req.OutputRaster,
		"--dem", req.DEMPath,
	}
	args = append(args, gridArgs(req.Grid)...)
	args = append(args, geometryArgs(req.Geometry)...)
	if req.BlockSize > 0 {
		args = append(args, "--block-size", strconv.Itoa(req.BlockSize))
	}
	if req.Interpolator != "" {
		args = append(args, "--interpolator", req.Interpolator)
	}
	if req.Decimation > 1 {
		args = append(args, "--decimation", strconv.Itoa(req.Decimation))
	}
	_, err := e.run(ctx, args)
	return err
}

// ApplyEAPCorrection implements Engine.
func (e *Exec) ApplyEAPCorrection(ctx context.Context, req EAPRequest) error {
	args := []string{
		"eap-correction",
		"--burst", req.Burst.AnnotationPath,
		"--input", req.InputRaster,
		"--output", req.OutputRaster,
	}
	_, err := e.run(ctx, args)
	return err
}

// SplitRangeSpectrum implements Engine.
func (e *Exec) SplitRangeSpectrum(ctx context.Context, req SplitSpectrumRequest) (string, error) {
	output := filepath.Join(req.ScratchDir, req.Burst.IDPol()+"_split_spectrum.vrt")
	args := []string{
		"split-spectrum",
		"--burst", req.Burst.AnnotationPath,
		"--input", req.InputRaster,
		"--output", output,
		"--low-band", strconv.FormatFloat(req.LowBandBandwidth, 'g', -1, 64),
		"--high-band", strconv.FormatFloat(req.HighBandBandwidth, 'g', -1, 64),
		"--window", req.WindowType,
		"--window-shape", strconv.FormatFloat(req.WindowShape, 'g', -1, 64),
	}
	if _, err := e.run(ctx, args); err != nil {
		return "", err
	}
	return output, nil
}

// BistaticDelay implements lut.Source.
func (e *Exec) BistaticDelay(ctx context.Context, b *burst.Burst, sp lut.Spacing) (lut.LUT2d, error) {
	return e.lutQuery(ctx, append([]string{"bistatic-delay", "--burst", b.AnnotationPath}, spacingArgs(sp)...))
}

// SteeringDoppler implements lut.Source.
func (e *Exec) SteeringDoppler(ctx context.Context, b *burst.Burst, sp lut.Spacing) (lut.LUT2d, error) {
	return e.lutQuery(ctx, append([]string{"steering-doppler", "--burst", b.AnnotationPath}, spacingArgs(sp)...))
}

// AzimuthFMMismatch implements lut.Source.
func (e *Exec) AzimuthFMMismatch(ctx context.Context, b *burst.Burst, demPath, tecPath, scratchDir string, sp lut.Spacing) (lut.LUT2d, error) {
	args := []string{
		"az-fm-mismatch",
		"--burst", b.AnnotationPath,
		"--dem", demPath,
		"--scratch-dir", scratchDir,
	}
	if tecPath != "" {
		args = append(args, "--tec", tecPath)
	}
	return e.lutQuery(ctx, append(args, spacingArgs(sp)...))
}

func (e *Exec) lutQuery(ctx context.Context, args []string) (lut.LUT2d, error) {
	var l lut.LUT2d
	if err := e.runJSON(ctx, args, &l); err != nil {
		return lut.LUT2d{}, err
	}
	return l, nil
}

func writeLUT(path string, l lut.LUT2d) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode lut: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to stage lut %s: %v", path, err)
	}
	return nil
}
