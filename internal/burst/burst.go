package burst

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/burstlab/s1-cslc-poc/internal/rdrgrid"
	"github.com/burstlab/s1-cslc-poc/internal/utils"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Poly1d is a 1-D polynomial with standardization parameters, as exported by
// the burst reader for Doppler and azimuth FM rate.
type Poly1d struct {
	Coeffs []float64 `json:"coeffs"`
	Mean   float64   `json:"mean"`
	Std    float64   `json:"std"`
}

// Order returns the polynomial order.
func (p Poly1d) Order() int {
	if len(p.Coeffs) == 0 {
		return 0
	}
	return len(p.Coeffs) - 1
}

// OrbitTime describes the uniform time axis of the orbit state vectors,
// in seconds relative to the reference epoch.
type OrbitTime struct {
	First   float64 `json:"first"`
	Spacing float64 `json:"spacing"`
	Size    int     `json:"size"`
}

// Last returns the time of the final state vector.
func (t OrbitTime) Last() float64 {
	if t.Size == 0 {
		return t.First
	}
	return t.First + float64(t.Size-1)*t.Spacing
}

// Orbit is the burst orbit segment: uniformly spaced ECEF state vectors.
type Orbit struct {
	RefEpoch   time.Time    `json:"ref_epoch"`
	Time       OrbitTime    `json:"time"`
	Positions  [][3]float64 `json:"positions"`
	Velocities [][3]float64 `json:"velocities"`
	// Type is the ephemeris source, "precise" or "restituted".
	Type string `json:"type,omitempty"`
}

// Calibration holds the radiometric calibration vectors from the burst
// annotation, sampled along slant range.
type Calibration struct {
	Gamma       []float64 `json:"gamma"`
	SigmaNaught []float64 `json:"sigma_naught"`
	Dn          []float64 `json:"dn"`
}

// Burst is a read-only record of a single Sentinel-1 acquisition unit as
// parsed by the external burst reader and exported to a JSON annotation.
// Nothing in this repository mutates it.
type Burst struct {
	BurstID      string    `json:"burst_id"`
	PlatformID   string    `json:"platform_id"`
	SensingStart time.Time `json:"sensing_start"`
	SensingStop  time.Time `json:"sensing_stop"`
	Polarization string    `json:"polarization"`
	IPFVersion   string    `json:"ipf_version"`

	RadarCenterFrequency float64 `json:"radar_center_frequency"`
	Wavelength           float64 `json:"wavelength"`
	AzimuthSteerRate     float64 `json:"azimuth_steer_rate"`
	AzimuthTimeInterval  float64 `json:"azimuth_time_interval"`
	SlantRangeTime       float64 `json:"slant_range_time"`
	StartingRange        float64 `json:"starting_range"`
	RangeSamplingRate    float64 `json:"range_sampling_rate"`
	RangePixelSpacing    float64 `json:"range_pixel_spacing"`
	RangeBandwidth       float64 `json:"range_bandwidth"`

	AzimuthFMRate Poly1d `json:"azimuth_fm_rate"`
	Doppler       Poly1d `json:"doppler"`

	Orbit          Orbit  `json:"orbit"`
	OrbitDirection string `json:"orbit_direction"`

	RadarGrid rdrgrid.RadarGrid `json:"radar_grid"`

	Center [2]float64   `json:"center"` // lon, lat in degrees
	Border [][2]float64 `json:"border"` // closed ring of lon, lat pairs

	// Valid-data region inside the full burst extent.
	FirstValidSample int `json:"first_valid_sample"`
	LastValidSample  int `json:"last_valid_sample"`
	FirstValidLine   int `json:"first_valid_line"`
	LastValidLine    int `json:"last_valid_line"`

	// Measurement source inside the SAFE archive.
	TiffPath string `json:"tiff_path"`
	IBurst   int    `json:"i_burst"`

	RangeWindowType        string  `json:"range_window_type"`
	RangeWindowCoefficient float64 `json:"range_window_coefficient"`

	Calibration     Calibration `json:"calibration"`
	ThermalNoiseLUT []float64   `json:"thermal_noise_lut"`

	// AnnotationPath is where this record was loaded from; engine calls take
	// it to rebuild native burst objects on their side.
	AnnotationPath string `json:"-"`
}

// DateString formats the sensing date the way output directories are keyed.
func (b *Burst) DateString() string {
	return b.SensingStart.Format("20060102")
}

// IDDate identifies the unit of work shared between polarizations of the
// same burst.
func (b *Burst) IDDate() string {
	return b.BurstID + "_" + b.DateString()
}

// IDPol is the burst id + polarization stem used for product file names.
func (b *Burst) IDPol() string {
	return fmt.Sprintf("%s_%s", b.BurstID, b.Polarization)
}

// AsRadarGrid resolves the radar grid of the burst, backfilling fields the
// annotation reader left empty from the burst scalars.
func (b *Burst) AsRadarGrid() rdrgrid.RadarGrid {
	g := b.RadarGrid
	if g.Wavelength == 0 {
		g.Wavelength = b.Wavelength
	}
	if g.PRF == 0 && b.AzimuthTimeInterval > 0 {
		g.PRF = 1 / b.AzimuthTimeInterval
	}
	if g.StartingRange == 0 {
		g.StartingRange = b.StartingRange
	}
	if g.RangePixelSpacing == 0 {
		g.RangePixelSpacing = b.RangePixelSpacing
	}
	if g.RefEpoch.IsZero() {
		g.RefEpoch = b.Orbit.RefEpoch
	}
	if g.SensingStart == 0 && !g.RefEpoch.IsZero() {
		g.SensingStart = b.SensingStart.Sub(g.RefEpoch).Seconds()
	}
	return g
}

// FullyCovers reports whether the lon/lat ring contains the whole burst
// border. Used to reject ancillary rasters that only partially overlap the
// burst. A burst without a border polygon cannot be checked and passes.
func (b *Burst) FullyCovers(ring [][2]float64) bool {
	if len(b.Border) == 0 {
		return true
	}
	if len(ring) < 4 {
		return false
	}
	cover := make(orb.Ring, 0, len(ring))
	for _, pt := range ring {
		cover = append(cover, orb.Point{pt[0], pt[1]})
	}
	for _, pt := range b.Border {
		if !planar.RingContains(cover, orb.Point{pt[0], pt[1]}) {
			return false
		}
	}
	return true
}

// SlcToVRT stages the burst measurement as a VRT raster so the engine can
// read the single burst out of the swath TIFF.
func (b *Burst) SlcToVRT(vrtPath string) error {
	if err := b.validForVRT(); err != nil {
		return err
	}
	srcWin := []string{
		"-srcwin",
		"0", fmt.Sprint(b.IBurst * b.RadarGrid.Length),
		fmt.Sprint(b.RadarGrid.Width), fmt.Sprint(b.RadarGrid.Length),
	}
	ds, err := godal.BuildVRT(vrtPath, []string{b.TiffPath}, srcWin)
	if err != nil {
		return fmt.Errorf("failed to build burst VRT: %v", err)
	}
	return ds.Close()
}

func (b *Burst) validForVRT() error {
	if b.TiffPath == "" {
		return fmt.Errorf("burst %s has no measurement tiff path", b.BurstID)
	}
	if b.RadarGrid.Width <= 0 || b.RadarGrid.Length <= 0 {
		return fmt.Errorf("burst %s has an empty radar grid", b.BurstID)
	}
	return nil
}

// LoadAnnotation reads one burst annotation JSON written by the burst reader.
func LoadAnnotation(path string) (*Burst, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read burst annotation: %v", err)
	}

	var b Burst
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse burst annotation %s: %v", path, err)
	}
	if b.BurstID == "" {
		return nil, fmt.Errorf("burst annotation %s has no burst_id", path)
	}
	if b.Polarization == "" {
		return nil, fmt.Errorf("burst annotation %s has no polarization", path)
	}
	if safe := safeComponent(b.TiffPath); safe != "" {
		mode, err := utils.PolarizationModeFromSafeName(safe)
		if err != nil {
			return nil, fmt.Errorf("burst annotation %s: %v", path, err)
		}
		if !modeContains(mode, b.Polarization) {
			return nil, fmt.Errorf("burst annotation %s: polarization %s does not match acquisition mode %s of %s",
				path, b.Polarization, mode, safe)
		}
	}
	b.AnnotationPath = path
	return &b, nil
}

// safePolarizations maps the SAFE name polarization mode token to the
// channel polarizations an acquisition in that mode can contain.
var safePolarizations = map[string][]string{
	"SH": {"HH"},
	"SV": {"VV"},
	"DH": {"HH", "HV"},
	"DV": {"VV", "VH"},
}

func modeContains(mode, pol string) bool {
	for _, p := range safePolarizations[strings.ToUpper(mode)] {
		if strings.EqualFold(p, pol) {
			return true
		}
	}
	return false
}

// safeComponent returns the .SAFE directory component of a measurement
// path, or "" when the path does not run through a SAFE archive.
func safeComponent(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.HasSuffix(part, ".SAFE") {
			return part
		}
	}
	return ""
}

// LoadDir loads every *.json annotation under dir, sorted by file name so the
// burst iteration order is deterministic. An empty pols filter keeps all
// polarizations.
func LoadDir(dir string, pols []string) ([]*Burst, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read burst annotation directory: %v", err)
	}

	keep := func(pol string) bool {
		if len(pols) == 0 {
			return true
		}
		for _, p := range pols {
			if strings.EqualFold(p, pol) {
				return true
			}
		}
		return false
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	bursts := make([]*Burst, 0, len(names))
	for _, name := range names {
		b, err := LoadAnnotation(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if !keep(b.Polarization) {
			continue
		}
		bursts = append(bursts, b)
	}
	if len(bursts) == 0 {
		return nil, fmt.Errorf("no burst annotations found in %s", dir)
	}
	return bursts, nil
}
