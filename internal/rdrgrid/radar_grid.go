package rdrgrid

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// refEpochFormat matches the engine's ISO-8601 date strings with
// sub-second precision.
const refEpochFormat = "2006-01-02T15:04:05.000000000"

// RadarGrid holds the parameters needed to reconstruct an engine radar grid
// for a burst. Sensing start is in seconds since RefEpoch.
type RadarGrid struct {
	SensingStart      float64   `json:"sensing_start"`
	Wavelength        float64   `json:"wavelength"`
	PRF               float64   `json:"prf"`
	StartingRange     float64   `json:"starting_range"`
	RangePixelSpacing float64   `json:"range_pixel_spacing"`
	Length            int       `json:"length"`
	Width             int       `json:"width"`
	RefEpoch          time.Time `json:"ref_epoch"`
}

// ToFile saves the parameters needed to rebuild the grid, one per line in a
// fixed order. The reference workflow reads this file back when coregistering
// secondary bursts against the archived reference burst.
func (g RadarGrid) ToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create radar grid file: %v", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%.12f\n", g.SensingStart)
	fmt.Fprintf(w, "%.12f\n", g.Wavelength)
	fmt.Fprintf(w, "%.12f\n", g.PRF)
	fmt.Fprintf(w, "%.12f\n", g.StartingRange)
	fmt.Fprintf(w, "%.12f\n", g.RangePixelSpacing)
	fmt.Fprintf(w, "%d\n", g.Length)
	fmt.Fprintf(w, "%d\n", g.Width)
	fmt.Fprintf(w, "%s\n", g.RefEpoch.Format(refEpochFormat))
	return w.Flush()
}

// FromFile reads a radar grid previously written with ToFile.
func FromFile(path string) (RadarGrid, error) {
	var g RadarGrid

	f, err := os.Open(path)
	if err != nil {
		return g, fmt.Errorf("failed to open radar grid file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := make([]string, 0, 8)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return g, err
	}
	if len(lines) < 8 {
		return g, fmt.Errorf("radar grid file %s has %d lines, expected 8", path, len(lines))
	}

	floats := make([]float64, 5)
	for i := range floats {
		if floats[i], err = strconv.ParseFloat(lines[i], 64); err != nil {
			return g, fmt.Errorf("radar grid file %s line %d: %v", path, i+1, err)
		}
	}
	g.SensingStart = floats[0]
	g.Wavelength = floats[1]
	g.PRF = floats[2]
	g.StartingRange = floats[3]
	g.RangePixelSpacing = floats[4]

	if g.Length, err = strconv.Atoi(lines[5]); err != nil {
		return g, fmt.Errorf("radar grid file %s line 6: %v", path, err)
	}
	if g.Width, err = strconv.Atoi(lines[6]); err != nil {
		return g, fmt.Errorf("radar grid file %s line 7: %v", path, err)
	}
	if g.RefEpoch, err = time.Parse(refEpochFormat, lines[7]); err != nil {
		return g, fmt.Errorf("radar grid file %s line 8: %v", path, err)
	}
	return g, nil
}
