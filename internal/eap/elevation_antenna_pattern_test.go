package eap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		ipf       string
		wantPhase bool
	}{
		{"2.90", false},
		{"3.40", false},
		{"2.36", false},
		{"2.35", true},
		{"2.10", true},
	}
	for _, tt := range tests {
		t.Run(tt.ipf, func(t *testing.T) {
			got, err := Check(tt.ipf)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPhase, got.Phase)
		})
	}
}

func TestCheckUnparsable(t *testing.T) {
	_, err := Check("not-a-version")
	assert.Error(t, err)
}
