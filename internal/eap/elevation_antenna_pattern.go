// Package eap decides whether the elevation antenna pattern correction has
// to be applied to a burst before geocoding. Products generated by older
// IPF processor versions carry an uncompensated EAP phase ramp.
package eap

import (
	"fmt"
	"strconv"
)

// Processor versions from this one onward already compensate the EAP phase.
const phaseCorrectedIPF = 2.36

// Correction reports which EAP corrections a burst still needs.
type Correction struct {
	Phase bool
}

// Check parses the annotated IPF version and flags the required corrections.
func Check(ipfVersion string) (Correction, error) {
	version, err := strconv.ParseFloat(ipfVersion, 64)
	if err != nil {
		return Correction{}, fmt.Errorf("unparsable IPF version %q: %v", ipfVersion, err)
	}
	return Correction{Phase: version < phaseCorrectedIPF}, nil
}
