package workflow

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/engine"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/lut"
	"github.com/burstlab/s1-cslc-poc/internal/qa"
	"github.com/burstlab/s1-cslc-poc/internal/rdrgrid"
	"github.com/burstlab/s1-cslc-poc/internal/runconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

// fakeEngine records every request and fabricates just enough output for
// the drivers to keep going.
type fakeEngine struct {
	mu            sync.Mutex
	rdr2geo       []engine.Rdr2GeoRequest
	geo2rdr       []engine.Geo2RdrRequest
	resample      []engine.ResampleRequest
	geocodeSLC    []engine.GeocodeSLCRequest
	geocodeRaster []engine.GeocodeRasterRequest
	eap           []engine.EAPRequest
	split         []engine.SplitSpectrumRequest
	mismatchTEC   []string
}

func (f *fakeEngine) GroundBounds(_ context.Context, b *burst.Burst, _, _ float64, _ int) (geogrid.Bounds, error) {
	return geogrid.Bounds{XMin: 400000, YMin: 3990000, XMax: 410000, YMax: 4000000}, nil
}

func (f *fakeEngine) Rdr2Geo(_ context.Context, req engine.Rdr2GeoRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rdr2geo = append(f.rdr2geo, req)
	return nil
}

func (f *fakeEngine) Geo2Rdr(_ context.Context, req engine.Geo2RdrRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geo2rdr = append(f.geo2rdr, req)
	return nil
}

func (f *fakeEngine) Resample(_ context.Context, req engine.ResampleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resample = append(f.resample, req)
	return nil
}

func writeComplexRaster(path string, width, height int) error {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.CFloat32, width, height)
	if err != nil {
		return err
	}
	defer ds.Close()
	data := make([]complex64, width*height)
	for i := range data {
		data[i] = complex(float32(i%5+1), 1)
	}
	return ds.Bands()[0].Write(0, 0, data, width, height)
}

func (f *fakeEngine) GeocodeSLC(_ context.Context, req engine.GeocodeSLCRequest) error {
	f.mu.Lock()
	f.geocodeSLC = append(f.geocodeSLC, req)
	f.mu.Unlock()
	return writeComplexRaster(req.OutputRaster, req.Grid.Width, req.Grid.Length)
}

func (f *fakeEngine) GeocodeRaster(_ context.Context, req engine.GeocodeRasterRequest) error {
	f.mu.Lock()
	f.geocodeRaster = append(f.geocodeRaster, req)
	f.mu.Unlock()

	ds, err := godal.Create(godal.GTiff, req.OutputRaster, 1, godal.Float32, req.Grid.Width, req.Grid.Length)
	if err != nil {
		return err
	}
	defer ds.Close()
	data := make([]float32, req.Grid.Width*req.Grid.Length)
	return ds.Bands()[0].Write(0, 0, data, req.Grid.Width, req.Grid.Length)
}

func (f *fakeEngine) ApplyEAPCorrection(_ context.Context, req engine.EAPRequest) error {
	f.mu.Lock()
	f.eap = append(f.eap, req)
	f.mu.Unlock()
	return writeComplexRaster(req.OutputRaster, 4, 4)
}

func (f *fakeEngine) SplitRangeSpectrum(_ context.Context, req engine.SplitSpectrumRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.split = append(f.split, req)
	return filepath.Join(req.ScratchDir, req.Burst.IDPol()+"_split_spectrum.vrt"), nil
}

func smallLUT() lut.LUT2d {
	return lut.LUT2d{XSpacing: 200, YSpacing: 0.25, Width: 2, Length: 2, Data: []float64{0, 0, 0, 0}}
}

func (f *fakeEngine) BistaticDelay(_ context.Context, _ *burst.Burst, _ lut.Spacing) (lut.LUT2d, error) {
	return smallLUT(), nil
}

func (f *fakeEngine) SteeringDoppler(_ context.Context, _ *burst.Burst, _ lut.Spacing) (lut.LUT2d, error) {
	return smallLUT(), nil
}

func (f *fakeEngine) AzimuthFMMismatch(_ context.Context, _ *burst.Burst, _, tecPath, _ string, _ lut.Spacing) (lut.LUT2d, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mismatchTEC = append(f.mismatchTEC, tecPath)
	return smallLUT(), nil
}

func testBurst(t *testing.T, dir, id, date, pol string) *burst.Burst {
	t.Helper()
	tiff := filepath.Join(dir, "measurement.tif")
	if _, err := os.Stat(tiff); os.IsNotExist(err) {
		require.NoError(t, writeComplexRaster(tiff, 8, 4))
	}
	sensing, err := time.Parse("20060102", date)
	require.NoError(t, err)
	return &burst.Burst{
		BurstID:      id,
		PlatformID:   "S1A",
		SensingStart: sensing,
		SensingStop:  sensing.Add(3 * time.Second),
		Polarization: pol,
		IPFVersion:   "3.40",
		Center:       [2]float64{-118.2, 34.1},
		RadarGrid:    rdrgrid.RadarGrid{Width: 8, Length: 4, Wavelength: 0.055},
		TiffPath:     tiff,
	}
}

func testConfig(t *testing.T, isReference bool, bursts []*burst.Burst) *runconfig.RunConfig {
	t.Helper()
	root := t.TempDir()
	cfg := &runconfig.RunConfig{Name: "test", Bursts: bursts}
	cfg.Groups.InputFileGroup.ReferenceBurst.IsReference = isReference
	cfg.Groups.DynamicAncillaryFileGroup.DEMFile = filepath.Join(root, "dem.tif")
	cfg.Groups.ProductPathGroup.ProductPath = filepath.Join(root, "product")
	cfg.Groups.ProductPathGroup.ScratchPath = filepath.Join(root, "scratch")
	cfg.Groups.Processing.Geo2Rdr = runconfig.GeometryOptions{Threshold: 1e-8, NumIter: 25, LinesPerBlock: 1000}
	cfg.Groups.Processing.Rdr2Geo.ComputeLatitude = true
	cfg.Groups.Processing.Rdr2Geo.ComputeLayoverShadowMask = true
	cfg.Groups.Processing.Resample.LinesPerBlock = 1000
	return cfg
}

func testGeoConfig(t *testing.T, cfg *runconfig.RunConfig, eng engine.Engine) *runconfig.GeoRunConfig {
	t.Helper()
	gcfg, err := runconfig.NewGeo(context.Background(), cfg, 32611, eng.GroundBounds)
	require.NoError(t, err)
	return gcfg
}

func TestRunCSLCReferenceOnlyComputesTopography(t *testing.T) {
	dir := t.TempDir()
	bursts := []*burst.Burst{
		testBurst(t, dir, "t064_135518_iw1", "20220501", "VV"),
		testBurst(t, dir, "t064_135518_iw1", "20220501", "VH"),
		testBurst(t, dir, "t064_135519_iw1", "20220501", "VV"),
	}
	cfg := testConfig(t, true, bursts)
	eng := &fakeEngine{}

	require.NoError(t, RunCSLC(context.Background(), eng, cfg, nil))

	// One topography run per (burst id, date), polarizations share it.
	assert.Len(t, eng.rdr2geo, 2)
	assert.Empty(t, eng.geo2rdr)
	assert.Empty(t, eng.resample)

	// The archived radar grid is written next to the topography layers.
	gridPath := filepath.Join(cfg.OutputDir("t064_135518_iw1", "20220501"), "radar_grid.txt")
	grid, err := rdrgrid.FromFile(gridPath)
	require.NoError(t, err)
	assert.Equal(t, 8, grid.Width)
}

func TestRunCSLCSecondaryCoregistersOncePerUnit(t *testing.T) {
	dir := t.TempDir()
	bursts := []*burst.Burst{
		testBurst(t, dir, "t064_135518_iw1", "20220512", "VV"),
		testBurst(t, dir, "t064_135518_iw1", "20220512", "VH"),
	}
	cfg := testConfig(t, false, bursts)
	refPath := filepath.Join(t.TempDir(), "reference")
	require.NoError(t, os.MkdirAll(filepath.Join(refPath, "t064_135518_iw1", "20220501"), 0755))
	cfg.Groups.InputFileGroup.ReferenceBurst.Path = refPath
	eng := &fakeEngine{}

	require.NoError(t, RunCSLC(context.Background(), eng, cfg, nil))

	// Offsets are shared between polarizations, resampling is not.
	require.Len(t, eng.geo2rdr, 1)
	assert.Len(t, eng.resample, 2)
	assert.Empty(t, eng.rdr2geo)

	assert.Equal(t,
		filepath.Join(refPath, "t064_135518_iw1", "20220501", "topo.vrt"),
		eng.geo2rdr[0].TopoPath)
	assert.Equal(t, eng.resample[0].OffsetsDir, eng.geo2rdr[0].OutputDir)
}

func TestRunCSLCSecondaryMissingReference(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, false, []*burst.Burst{testBurst(t, dir, "t064_135518_iw1", "20220512", "VV")})
	cfg.Groups.InputFileGroup.ReferenceBurst.Path = filepath.Join(t.TempDir(), "missing")

	err := RunCSLC(context.Background(), &fakeEngine{}, cfg, nil)
	assert.Error(t, err)
}

func TestRunGeocodeSLCReference(t *testing.T) {
	dir := t.TempDir()
	b := testBurst(t, dir, "t064_135518_iw1", "20220501", "VV")
	cfg := testConfig(t, true, []*burst.Burst{b})
	eng := &fakeEngine{}
	gcfg := testGeoConfig(t, cfg, eng)
	summary := NewSummary()

	require.NoError(t, RunGeocodeSLC(context.Background(), eng, gcfg, summary))

	require.Len(t, eng.geocodeSLC, 1)
	req := eng.geocodeSLC[0]
	// IPF 3.40 needs no antenna pattern correction and the reference is
	// staged straight from its measurement.
	assert.Empty(t, eng.eap)
	assert.Equal(t, ".vrt", filepath.Ext(req.InputRaster))
	assert.True(t, req.RangeLUT.IsZero())

	paths := gcfg.OutputPaths[b.IDDate()]
	for _, want := range []string{
		paths.SlcPath(b.IDPol()),
		paths.MetadataPath(b.IDPol()),
		paths.BrowsePath(b.IDPol()),
		paths.HDF5Path(b.IDPol()),
	} {
		_, err := os.Stat(want)
		assert.NoError(t, err, want)
	}

	// The geocoded raster is georeferenced on the output grid.
	ds, err := godal.Open(paths.SlcPath(b.IDPol()))
	require.NoError(t, err)
	defer ds.Close()
	gt, err := ds.GeoTransform()
	require.NoError(t, err)
	assert.Equal(t, gcfg.GeoGrids[b.BurstID].GeoTransform(), gt)

	records := summary.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "geocode_slc", records[0].Stage)
}

func TestRunGeocodeSLCAppliesEAPForOldIPF(t *testing.T) {
	dir := t.TempDir()
	b := testBurst(t, dir, "t064_135518_iw1", "20220501", "VV")
	b.IPFVersion = "2.10"
	cfg := testConfig(t, true, []*burst.Burst{b})
	eng := &fakeEngine{}
	gcfg := testGeoConfig(t, cfg, eng)

	require.NoError(t, RunGeocodeSLC(context.Background(), eng, gcfg, nil))

	require.Len(t, eng.eap, 1)
	require.Len(t, eng.geocodeSLC, 1)
	// The corrected raster feeds the geocoder.
	assert.Equal(t, eng.eap[0].OutputRaster, eng.geocodeSLC[0].InputRaster)
}

func TestRunGeocodeSLCWithCorrectionsAndSplitSpectrum(t *testing.T) {
	dir := t.TempDir()
	b := testBurst(t, dir, "t064_135518_iw1", "20220501", "VV")
	cfg := testConfig(t, true, []*burst.Burst{b})
	cfg.Groups.Processing.CorrectionLUTs = runconfig.CorrectionLUTs{
		Enabled: true, RangeSpacing: 200, AzimuthSpacing: 0.25,
	}
	cfg.Groups.Processing.RangeSplitSpectrum.Enabled = true
	cfg.Groups.Processing.RangeSplitSpectrum.WindowType = "tukey"
	eng := &fakeEngine{}
	gcfg := testGeoConfig(t, cfg, eng)

	require.NoError(t, RunGeocodeSLC(context.Background(), eng, gcfg, nil))

	require.Len(t, eng.split, 1)
	require.Len(t, eng.geocodeSLC, 1)
	req := eng.geocodeSLC[0]
	assert.Contains(t, req.InputRaster, "split_spectrum")
	assert.False(t, req.RangeLUT.IsZero())
	assert.False(t, req.AzimuthLUT.IsZero())
}

func TestRunGeocodeSLCForwardsTECAndOutputFormat(t *testing.T) {
	dir := t.TempDir()
	b := testBurst(t, dir, "t064_135518_iw1", "20220501", "VV")
	cfg := testConfig(t, true, []*burst.Burst{b})
	cfg.Groups.Processing.CorrectionLUTs = runconfig.CorrectionLUTs{
		Enabled: true, RangeSpacing: 200, AzimuthSpacing: 0.25,
	}
	tec := filepath.Join(dir, "jplg1210.22i.Z")
	require.NoError(t, os.WriteFile(tec, []byte("ionex"), 0o644))
	cfg.Groups.DynamicAncillaryFileGroup.TECFile = tec
	cfg.Groups.Processing.Geocoding.OutputFormat = "ENVI"
	eng := &fakeEngine{}
	gcfg := testGeoConfig(t, cfg, eng)

	require.NoError(t, RunGeocodeSLC(context.Background(), eng, gcfg, nil))

	// The configured IONEX archive reaches the FM-rate mismatch computation.
	require.Len(t, eng.mismatchTEC, 1)
	assert.Equal(t, tec, eng.mismatchTEC[0])

	require.Len(t, eng.geocodeSLC, 1)
	assert.Equal(t, "ENVI", eng.geocodeSLC[0].OutputFormat)
}

func writeMaskRaster(path string, width, height int, mask []uint8) error {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Byte, width, height)
	if err != nil {
		return err
	}
	defer ds.Close()
	return ds.Bands()[0].Write(0, 0, mask, width, height)
}

func TestRunGeocodeSLCClassifiesGeocodedMask(t *testing.T) {
	dir := t.TempDir()
	b := testBurst(t, dir, "t064_135518_iw1", "20220501", "VV")
	cfg := testConfig(t, true, []*burst.Burst{b})
	eng := &fakeEngine{}
	gcfg := testGeoConfig(t, cfg, eng)

	// A layover/shadow mask geocoded by the metadata workflow feeds the QA
	// classification: one valid, one shadow, one layover, one both pixel.
	paths := gcfg.OutputPaths[b.IDDate()]
	maskDir := filepath.Join(paths.ScratchDirectory, "geocoded")
	require.NoError(t, os.MkdirAll(maskDir, 0o755))
	require.NoError(t, writeMaskRaster(
		filepath.Join(maskDir, "layover_shadow_mask.geo.tif"), 2, 2, []uint8{0, 1, 2, 3}))

	require.NoError(t, RunGeocodeSLC(context.Background(), eng, gcfg, nil))

	data, err := os.ReadFile(filepath.Join(paths.OutputDirectory, b.IDPol()+"_qa.json"))
	require.NoError(t, err)
	var report qa.Report
	require.NoError(t, json.Unmarshal(data, &report))
	require.NotNil(t, report.Classification)
	assert.InDelta(t, 25.0, report.Classification.PercentShadow, 1e-9)
	assert.InDelta(t, 25.0, report.Classification.PercentLayover, 1e-9)
	assert.InDelta(t, 25.0, report.Classification.PercentLayoverShadow, 1e-9)
}

func TestRunGeocodeSLCSecondaryRequiresCoregisteredRaster(t *testing.T) {
	dir := t.TempDir()
	b := testBurst(t, dir, "t064_135518_iw1", "20220512", "VV")
	cfg := testConfig(t, false, []*burst.Burst{b})
	cfg.Groups.InputFileGroup.ReferenceBurst.Path = t.TempDir()
	eng := &fakeEngine{}
	gcfg := testGeoConfig(t, cfg, eng)

	err := RunGeocodeSLC(context.Background(), eng, gcfg, nil)
	assert.Error(t, err)
	assert.Empty(t, eng.geocodeSLC)
}

func TestRunGeocodeMetadata(t *testing.T) {
	dir := t.TempDir()
	bursts := []*burst.Burst{
		testBurst(t, dir, "t064_135518_iw1", "20220501", "VV"),
		testBurst(t, dir, "t064_135518_iw1", "20220501", "VH"),
	}
	cfg := testConfig(t, true, bursts)
	cfg.Groups.Processing.Rdr2Geo.Enabled = true
	eng := &fakeEngine{}
	gcfg := testGeoConfig(t, cfg, eng)

	require.NoError(t, RunGeocodeMetadata(context.Background(), eng, gcfg, nil))

	// One rdr2geo and one layer set per (burst id, date).
	assert.Len(t, eng.rdr2geo, 1)
	// Latitude + mask were enabled in the fixture config.
	require.Len(t, eng.geocodeRaster, 2)
	assert.Equal(t, "bilinear", eng.geocodeRaster[0].Interpolator)
	assert.Equal(t, "nearest", eng.geocodeRaster[1].Interpolator)

	topoPath := gcfg.OutputPaths[bursts[0].IDDate()].TopoHDF5Path()
	_, err := os.Stat(topoPath)
	assert.NoError(t, err)
}

func TestBuildLutRaster(t *testing.T) {
	data := buildLutRaster([]float64{1, 3}, 3, 2)

	require.Len(t, data, 6)
	assert.InDelta(t, 1, data[0], 1e-6)
	assert.InDelta(t, 2, data[1], 1e-6)
	assert.InDelta(t, 3, data[2], 1e-6)
	// Constant along azimuth.
	assert.Equal(t, data[:3], data[3:])
}

func TestDecimatedRadarSize(t *testing.T) {
	assert.Equal(t, 26, decimatedRadarSize(1000, 40))
	assert.Equal(t, 1, decimatedRadarSize(8, 40))
}

func TestSummaryWrite(t *testing.T) {
	summary := NewSummary()
	summary.Add("t064_135518_iw1", "20220501", "VV", "rdr2geo", "/out", time.Now())

	path := filepath.Join(t.TempDir(), "run_summary.csv")
	require.NoError(t, summary.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "burst_id")
	assert.Contains(t, string(data), "rdr2geo")
}
