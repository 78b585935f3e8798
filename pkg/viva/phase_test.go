package viva

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseFor(t *testing.T) {
	tests := []struct {
		completedRounds int
		want            Phase
	}{
		{0, PhaseIntro},
		{1, PhaseIntro},
		{2, PhaseIntro},
		{3, PhaseIntro},
		{4, PhaseTechnical},
		{5, PhaseTechnical},
		{100, PhaseTechnical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PhaseFor(tt.completedRounds), "completedRounds=%d", tt.completedRounds)
	}
}
