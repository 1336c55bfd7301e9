package runconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/utils"
	"gopkg.in/yaml.v3"
)

// Document is the top level YAML layout of a run configuration.
type Document struct {
	RunConfig struct {
		Name   string `yaml:"name"`
		Groups Groups `yaml:"groups"`
	} `yaml:"runconfig"`
}

// Groups mirrors the runconfig group tree supplied by the user.
type Groups struct {
	InputFileGroup            InputFileGroup            `yaml:"input_file_group"`
	DynamicAncillaryFileGroup DynamicAncillaryFileGroup `yaml:"dynamic_ancillary_file_group"`
	ProductPathGroup          ProductPathGroup          `yaml:"product_path_group"`
	Processing                Processing                `yaml:"processing"`
	Worker                    Worker                    `yaml:"worker"`
}

type InputFileGroup struct {
	BurstAnnotationDir string         `yaml:"burst_annotation_dir"`
	ReferenceBurst     ReferenceBurst `yaml:"reference_burst"`
}

// ReferenceBurst selects between the reference (topography) and secondary
// (coregistration + resampling) paths and locates the archived reference.
type ReferenceBurst struct {
	IsReference bool   `yaml:"is_reference"`
	Path        string `yaml:"path"`
}

type DynamicAncillaryFileGroup struct {
	DEMFile string `yaml:"dem_file"`
	TECFile string `yaml:"tec_file"`
}

type ProductPathGroup struct {
	ProductPath string `yaml:"product_path"`
	ScratchPath string `yaml:"scratch_path"`
}

type Processing struct {
	Polarization       []string           `yaml:"polarization"`
	Geocoding          Geocoding          `yaml:"geocoding"`
	Geo2Rdr            GeometryOptions    `yaml:"geo2rdr"`
	Rdr2Geo            Rdr2GeoOptions     `yaml:"rdr2geo"`
	Resample           ResampleOptions    `yaml:"resample"`
	CorrectionLUTs     CorrectionLUTs     `yaml:"correction_luts"`
	RangeSplitSpectrum RangeSplitSpectrum `yaml:"range_split_spectrum"`
}

// GeometryOptions are the geo2rdr solver knobs shared by every stage that
// inverts the radar geometry.
type GeometryOptions struct {
	Threshold     float64 `yaml:"threshold"`
	NumIter       int     `yaml:"numiter"`
	LinesPerBlock int     `yaml:"lines_per_block"`
}

// Rdr2GeoOptions toggles the topography layers to compute and, for geocoding
// workflows, whether to regenerate and geocode them.
type Rdr2GeoOptions struct {
	Enabled               bool `yaml:"enabled"`
	GeocodeMetadataLayers bool `yaml:"geocode_metadata_layers"`

	ComputeLatitude            bool `yaml:"compute_latitude"`
	ComputeLongitude           bool `yaml:"compute_longitude"`
	ComputeHeight              bool `yaml:"compute_height"`
	ComputeIncidenceAngle      bool `yaml:"compute_incidence_angle"`
	ComputeLocalIncidenceAngle bool `yaml:"compute_local_incidence_angle"`
	ComputeAzimuthAngle        bool `yaml:"compute_azimuth_angle"`
	ComputeLayoverShadowMask   bool `yaml:"compute_layover_shadow_mask"`
}

type ResampleOptions struct {
	FlattenPhase  bool `yaml:"flatten_phase"`
	LinesPerBlock int  `yaml:"lines_per_block"`
}

type Geocoding struct {
	OutputFormat string   `yaml:"output_format"`
	Flatten      bool     `yaml:"flatten"`
	OutputEPSG   *int     `yaml:"output_epsg"`
	XPosting     *float64 `yaml:"x_posting"`
	YPosting     *float64 `yaml:"y_posting"`
	TopLeft      Corner   `yaml:"top_left"`
	BottomRight  Corner   `yaml:"bottom_right"`
	XSnap        *float64 `yaml:"x_snap"`
	YSnap        *float64 `yaml:"y_snap"`
}

type Corner struct {
	X *float64 `yaml:"x"`
	Y *float64 `yaml:"y"`
}

type CorrectionLUTs struct {
	Enabled        bool    `yaml:"enabled"`
	RangeSpacing   float64 `yaml:"range_spacing"`   // meters
	AzimuthSpacing float64 `yaml:"azimuth_spacing"` // seconds
}

type RangeSplitSpectrum struct {
	Enabled           bool    `yaml:"enabled"`
	LowBandBandwidth  float64 `yaml:"low_band_bandwidth"`
	HighBandBandwidth float64 `yaml:"high_band_bandwidth"`
	WindowType        string  `yaml:"window_type"`
	WindowShape       float64 `yaml:"window_shape"`
}

type Worker struct {
	GPUEnabled bool `yaml:"gpu_enabled"`
	GPUID      int  `yaml:"gpu_id"`
}

// RunConfig is the loaded, validated configuration for radar-domain
// workflows. It is not modified after Load returns.
type RunConfig struct {
	Name   string
	Groups Groups
	Bursts []*burst.Burst
}

// defaultDocument seeds a Document with the processing defaults; the user
// YAML is decoded over it so omitted fields keep their default values.
func defaultDocument() Document {
	var doc Document
	doc.RunConfig.Name = "s1_cslc_workflow"
	p := &doc.RunConfig.Groups.Processing
	p.Polarization = nil // all polarizations
	p.Geocoding.OutputFormat = "ENVI"
	p.Geocoding.Flatten = true
	p.Geo2Rdr = GeometryOptions{Threshold: 1e-8, NumIter: 25, LinesPerBlock: 1000}
	p.Rdr2Geo = Rdr2GeoOptions{
		ComputeLatitude:            true,
		ComputeLongitude:           true,
		ComputeHeight:              true,
		ComputeIncidenceAngle:      true,
		ComputeLocalIncidenceAngle: true,
		ComputeAzimuthAngle:        true,
		ComputeLayoverShadowMask:   true,
	}
	p.Resample = ResampleOptions{LinesPerBlock: 1000}
	p.CorrectionLUTs = CorrectionLUTs{RangeSpacing: 200, AzimuthSpacing: 0.25}
	p.RangeSplitSpectrum = RangeSplitSpectrum{WindowType: "tukey", WindowShape: 0.25}
	return doc
}

// Load reads a YAML run configuration, applies defaults, loads the burst
// set, and validates the result. workflowName only labels log output.
func Load(path, workflowName string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run config: %v", err)
	}

	doc := defaultDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse run config %s: %v", path, err)
	}

	cfg := &RunConfig{
		Name:   doc.RunConfig.Name,
		Groups: doc.RunConfig.Groups,
	}
	if cfg.Name == "" {
		cfg.Name = workflowName
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.Bursts, err = burst.LoadDir(
		cfg.Groups.InputFileGroup.BurstAnnotationDir,
		cfg.Groups.Processing.Polarization)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsReference reports whether this run processes the stack reference burst.
func (c *RunConfig) IsReference() bool {
	return c.Groups.InputFileGroup.ReferenceBurst.IsReference
}

// DEM returns the configured DEM path.
func (c *RunConfig) DEM() string {
	return c.Groups.DynamicAncillaryFileGroup.DEMFile
}

// ScratchPath returns the scratch directory root.
func (c *RunConfig) ScratchPath() string {
	return c.Groups.ProductPathGroup.ScratchPath
}

// ProductPath returns the product directory root.
func (c *RunConfig) ProductPath() string {
	return c.Groups.ProductPathGroup.ProductPath
}

// ReferencePath is the directory holding the archived reference burst
// topography and radar grid.
func (c *RunConfig) ReferencePath() string {
	return c.Groups.InputFileGroup.ReferenceBurst.Path
}

func (c *RunConfig) validate() error {
	in := c.Groups.InputFileGroup
	if in.BurstAnnotationDir == "" {
		return fmt.Errorf("run config is missing input_file_group.burst_annotation_dir")
	}
	if err := utils.CheckDirectory(in.BurstAnnotationDir); err != nil {
		return err
	}
	if !in.ReferenceBurst.IsReference {
		if in.ReferenceBurst.Path == "" {
			return fmt.Errorf("secondary burst run config is missing reference_burst.path")
		}
		if err := utils.CheckDirectory(in.ReferenceBurst.Path); err != nil {
			return err
		}
	}

	if c.DEM() == "" {
		return fmt.Errorf("run config is missing dynamic_ancillary_file_group.dem_file")
	}
	if err := utils.CheckFilePath(c.DEM()); err != nil {
		return err
	}

	if err := utils.CheckWriteDir(c.ScratchPath()); err != nil {
		return err
	}
	if err := utils.CheckWriteDir(c.ProductPath()); err != nil {
		return err
	}
	return nil
}

// ScratchDir returns the per-burst scratch directory for an id + date pair.
func (c *RunConfig) ScratchDir(burstID, dateStr string) string {
	return filepath.Join(c.ScratchPath(), burstID, dateStr)
}

// OutputDir returns the per-burst product directory for an id + date pair.
func (c *RunConfig) OutputDir(burstID, dateStr string) string {
	return filepath.Join(c.ProductPath(), burstID, dateStr)
}
