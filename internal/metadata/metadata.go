// Package metadata assembles the JSON sidecar written next to each
// geocoded burst product.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/burstlab/s1-cslc-poc/internal/burst"
	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// GeoCslc captures everything needed to interpret a geocoded burst
// without re-reading the annotation it came from.
type GeoCslc struct {
	BurstID        string    `json:"burst_id"`
	PlatformID     string    `json:"platform_id"`
	Polarization   string    `json:"polarization"`
	SensingStart   time.Time `json:"sensing_start"`
	SensingStop    time.Time `json:"sensing_stop"`
	IPFVersion     string    `json:"ipf_version"`
	IsReference    bool      `json:"is_reference"`
	DEMPath        string    `json:"dem_path"`
	ReferencePath  string    `json:"reference_path,omitempty"`
	ProcessedAt    time.Time `json:"processed_at"`
	Wavelength     float64   `json:"wavelength"`
	AzimuthFMRate  burst.Poly1d `json:"azimuth_fm_rate"`
	DopplerPoly    burst.Poly1d `json:"doppler_poly"`
	Orbit          burst.Orbit  `json:"orbit"`
	Grid           geogrid.GeoGrid `json:"geo_grid"`
	Footprint      [][2]float64    `json:"footprint"`
	Center         [2]float64      `json:"center"`
	NoDataValue    string          `json:"nodata"`
	EAPCorrected   bool            `json:"elevation_antenna_pattern_correction"`
	IonoCorrection bool            `json:"ionosphere_correction"`
}

// BuildGeoCslc gathers the sidecar content for one geocoded burst.
func BuildGeoCslc(b *burst.Burst, grid geogrid.GeoGrid, demPath, referencePath string,
	isReference, eapCorrected, ionoCorrected bool) GeoCslc {

	ring := make(orb.Ring, 0, len(b.Border))
	footprint := make([][2]float64, 0, len(b.Border))
	for _, pt := range b.Border {
		ring = append(ring, orb.Point{pt[0], pt[1]})
		footprint = append(footprint, pt)
	}
	center := b.Center
	if len(ring) >= 4 {
		centroid, _ := planar.CentroidArea(orb.Polygon{ring})
		center = [2]float64{centroid[0], centroid[1]}
	}

	return GeoCslc{
		BurstID:        b.BurstID,
		PlatformID:     b.PlatformID,
		Polarization:   b.Polarization,
		SensingStart:   b.SensingStart,
		SensingStop:    b.SensingStop,
		IPFVersion:     b.IPFVersion,
		IsReference:    isReference,
		DEMPath:        demPath,
		ReferencePath:  referencePath,
		ProcessedAt:    time.Now().UTC(),
		Wavelength:     b.Wavelength,
		AzimuthFMRate:  b.AzimuthFMRate,
		DopplerPoly:    b.Doppler,
		Orbit:          b.Orbit,
		Grid:           grid,
		Footprint:      footprint,
		Center:         center,
		NoDataValue:    "NO_DATA_VALUE",
		EAPCorrected:   eapCorrected,
		IonoCorrection: ionoCorrected,
	}
}

// ToFile writes the sidecar as indented JSON.
func (m GeoCslc) ToFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for %s: %v", m.BurstID, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata %s: %v", path, err)
	}
	return nil
}

// FromFile reads a sidecar back, used by QA and downstream tooling.
func FromFile(path string) (GeoCslc, error) {
	var m GeoCslc
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("failed to read metadata %s: %v", path, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("failed to parse metadata %s: %v", path, err)
	}
	return m, nil
}
