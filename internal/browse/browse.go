// Package browse renders the quick-look PNG for a geocoded burst.
package browse

import (
	"fmt"
	"math"
	"sort"

	"github.com/airbusgeo/godal"
	"github.com/fogleman/gg"
)

const maxBrowseWidth = 1024

// percentile assumes sorted input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// Render reads the geocoded SLC raster, stretches amplitude in dB between
// the 5th and 95th percentiles and writes a grayscale PNG. The image is
// decimated so its width stays at or below 1024 pixels.
func Render(slcPath, pngPath string) error {
	ds, err := godal.Open(slcPath)
	if err != nil {
		return fmt.Errorf("failed to open geocoded SLC %s: %v", slcPath, err)
	}
	defer ds.Close()

	width := ds.Structure().SizeX
	height := ds.Structure().SizeY
	samples := make([]complex64, width*height)
	if err := ds.Bands()[0].Read(0, 0, samples, width, height); err != nil {
		return fmt.Errorf("failed to read geocoded SLC %s: %v", slcPath, err)
	}

	step := 1
	if width > maxBrowseWidth {
		step = (width + maxBrowseWidth - 1) / maxBrowseWidth
	}
	outWidth := (width + step - 1) / step
	outHeight := (height + step - 1) / step

	db := make([]float64, outWidth*outHeight)
	valid := make([]float64, 0, len(db))
	for oy := 0; oy < outHeight; oy++ {
		for ox := 0; ox < outWidth; ox++ {
			s := samples[oy*step*width+ox*step]
			amp := math.Hypot(float64(real(s)), float64(imag(s)))
			v := math.NaN()
			if amp > 0 {
				v = 20 * math.Log10(amp)
				valid = append(valid, v)
			}
			db[oy*outWidth+ox] = v
		}
	}

	sort.Float64s(valid)
	lo := percentile(valid, 0.05)
	hi := percentile(valid, 0.95)
	if hi <= lo {
		hi = lo + 1
	}

	dc := gg.NewContext(outWidth, outHeight)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	for oy := 0; oy < outHeight; oy++ {
		for ox := 0; ox < outWidth; ox++ {
			v := db[oy*outWidth+ox]
			if math.IsNaN(v) {
				continue
			}
			gray := (v - lo) / (hi - lo)
			if gray < 0 {
				gray = 0
			}
			if gray > 1 {
				gray = 1
			}
			dc.SetRGB(gray, gray, gray)
			dc.SetPixel(ox, oy)
		}
	}
	if err := dc.SavePNG(pngPath); err != nil {
		return fmt.Errorf("failed to write browse image %s: %v", pngPath, err)
	}
	return nil
}
