// Package qa computes quality statistics for geocoded burst products.
package qa

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/burstlab/s1-cslc-poc/internal/product"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes one scalar layer derived from the geocoded SLC.
type Stats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// Classification holds pixel percentages from the layover/shadow mask.
// Mask values follow the geometry engine convention: 1 shadow, 2 layover,
// 3 both.
type Classification struct {
	PercentShadow        float64 `json:"percent_shadow"`
	PercentLayover       float64 `json:"percent_layover"`
	PercentLayoverShadow float64 `json:"percent_layover_shadow"`
}

// Report is the full QA record for one burst product.
type Report struct {
	Power          Stats           `json:"power"`
	Phase          Stats           `json:"phase"`
	PercentValid   float64         `json:"percent_valid_pixels"`
	Classification *Classification `json:"classification,omitempty"`
	OrbitType      string          `json:"orbit_type"`
}

func computeStats(values []float64) Stats {
	if len(values) == 0 {
		nan := math.NaN()
		return Stats{Mean: nan, Min: nan, Max: nan, StdDev: nan}
	}
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return Stats{
		Mean:   stat.Mean(values, nil),
		Min:    min,
		Max:    max,
		StdDev: stat.StdDev(values, nil),
	}
}

// FromSamples computes power and phase statistics from complex samples.
// Zero samples count as invalid geocoding fill.
func FromSamples(samples []complex64) (power, phase Stats, percentValid float64) {
	powers := make([]float64, 0, len(samples))
	phases := make([]float64, 0, len(samples))
	for _, s := range samples {
		re := float64(real(s))
		im := float64(imag(s))
		if (re == 0 && im == 0) || math.IsNaN(re) || math.IsNaN(im) {
			continue
		}
		powers = append(powers, 10*math.Log10(re*re+im*im))
		phases = append(phases, math.Atan2(im, re))
	}
	if len(samples) > 0 {
		percentValid = 100 * float64(len(powers)) / float64(len(samples))
	}
	return computeStats(powers), computeStats(phases), percentValid
}

// ClassifyMask tallies layover and shadow percentages from mask bytes.
func ClassifyMask(mask []uint8) Classification {
	var shadow, layover, both int
	for _, v := range mask {
		switch v {
		case 1:
			shadow++
		case 2:
			layover++
		case 3:
			both++
		}
	}
	total := float64(len(mask))
	if total == 0 {
		return Classification{}
	}
	return Classification{
		PercentShadow:        100 * float64(shadow) / total,
		PercentLayover:       100 * float64(layover) / total,
		PercentLayoverShadow: 100 * float64(both) / total,
	}
}

// RunRaster builds a report from the geocoded SLC raster and, when present,
// the geocoded layover/shadow mask raster.
func RunRaster(slcPath, maskPath, orbitType string) (Report, error) {
	ds, err := godal.Open(slcPath)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open geocoded SLC %s: %v", slcPath, err)
	}
	defer ds.Close()

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	samples := make([]complex64, width*height)
	if err := ds.Bands()[0].Read(0, 0, samples, width, height); err != nil {
		return Report{}, fmt.Errorf("failed to read geocoded SLC %s: %v", slcPath, err)
	}

	power, phase, percentValid := FromSamples(samples)
	report := Report{
		Power:        power,
		Phase:        phase,
		PercentValid: percentValid,
		OrbitType:    orbitType,
	}

	if maskPath != "" {
		maskDs, err := godal.Open(maskPath)
		if err != nil {
			return Report{}, fmt.Errorf("failed to open mask %s: %v", maskPath, err)
		}
		defer maskDs.Close()

		mw := maskDs.Structure().SizeX
		mh := maskDs.Structure().SizeY
		mask := make([]uint8, mw*mh)
		if err := maskDs.Bands()[0].Read(0, 0, mask, mw, mh); err != nil {
			return Report{}, fmt.Errorf("failed to read mask %s: %v", maskPath, err)
		}
		classification := ClassifyMask(mask)
		report.Classification = &classification
	}
	return report, nil
}

// ToFile writes the report as indented JSON.
func (r Report) ToFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal QA report: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write QA report %s: %v", path, err)
	}
	return nil
}

// ToHDF5 stores the report scalars in the product container.
func (r Report) ToHDF5(f *product.File) error {
	scalars := map[string]float64{
		"stats/mean_power":     r.Power.Mean,
		"stats/min_power":      r.Power.Min,
		"stats/max_power":      r.Power.Max,
		"stats/std_dev_power":  r.Power.StdDev,
		"stats/mean_phase":     r.Phase.Mean,
		"stats/min_phase":      r.Phase.Min,
		"stats/max_phase":      r.Phase.Max,
		"stats/std_dev_phase":  r.Phase.StdDev,
		"pixel_classification/percent_valid_pixels": r.PercentValid,
	}
	if r.Classification != nil {
		scalars["pixel_classification/percent_shadow"] = r.Classification.PercentShadow
		scalars["pixel_classification/percent_layover"] = r.Classification.PercentLayover
		scalars["pixel_classification/percent_layover_shadow"] = r.Classification.PercentLayoverShadow
	}
	for name, value := range scalars {
		group, dataset := product.QAPath, name
		if i := lastSlash(name); i >= 0 {
			group = product.QAPath + "/" + name[:i]
			dataset = name[i+1:]
		}
		if err := f.WriteScalarFloat64(group, dataset, value); err != nil {
			return err
		}
	}
	return f.WriteScalarString(product.QAPath+"/orbit_information", "orbit_type", r.OrbitType)
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
