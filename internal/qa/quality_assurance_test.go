package qa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromSamplesSkipsFill(t *testing.T) {
	samples := []complex64{
		complex(1, 0),
		complex(0, 1),
		0, // geocoding fill
		complex(float32(math.NaN()), 0),
	}

	power, phase, percentValid := FromSamples(samples)

	assert.InDelta(t, 50.0, percentValid, 1e-9)
	// Both valid samples are unit amplitude, 0 dB power.
	assert.InDelta(t, 0, power.Mean, 1e-9)
	assert.InDelta(t, 0, power.Min, 1e-9)
	assert.InDelta(t, 0, power.Max, 1e-9)
	// Phases are 0 and pi/2.
	assert.InDelta(t, math.Pi/4, phase.Mean, 1e-9)
	assert.InDelta(t, math.Pi/2, phase.Max, 1e-9)
}

func TestFromSamplesEmpty(t *testing.T) {
	power, _, percentValid := FromSamples(nil)

	assert.Zero(t, percentValid)
	assert.True(t, math.IsNaN(power.Mean))
}

func TestClassifyMask(t *testing.T) {
	mask := []uint8{0, 0, 1, 2, 2, 3, 0, 0, 0, 0}

	c := ClassifyMask(mask)

	assert.InDelta(t, 10.0, c.PercentShadow, 1e-9)
	assert.InDelta(t, 20.0, c.PercentLayover, 1e-9)
	assert.InDelta(t, 10.0, c.PercentLayoverShadow, 1e-9)
}

func TestClassifyMaskEmpty(t *testing.T) {
	assert.Equal(t, Classification{}, ClassifyMask(nil))
}
