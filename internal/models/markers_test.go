package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAgentTerminalMarker(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		kind   AgentTerminalMarkerKind
		reason string
	}{
		{"already complete", "some prose\nTASK_ALREADY_COMPLETE: feature already exists\n", MarkerAlreadyComplete, "feature already exists"},
		{"invalid target", "INVALID_TARGET: file does not exist", MarkerInvalidTarget, "file does not exist"},
		{"needs decomposition", "NEEDS_DECOMPOSITION: objective spans five subsystems", MarkerNeedsDecomposition, "objective spans five subsystems"},
		{"normal text", "I made the edit and ran the tests.", MarkerNone, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			marker := ParseAgentTerminalMarker(tc.text)
			assert.Equal(t, tc.kind, marker.Kind)
			assert.Equal(t, tc.reason, marker.Reason)
		})
	}
}

func TestStopDecisionConstructors(t *testing.T) {
	assert.Equal(t, StopContinue, Continue().Kind)

	r := Reject("no files written")
	assert.Equal(t, StopReject, r.Kind)
	assert.Equal(t, "no files written", r.Reason)

	f := Fatal(ErrVagueTask, "three consecutive no-write attempts")
	assert.Equal(t, StopFatal, f.Kind)
	assert.Equal(t, ErrVagueTask, f.FatalKind)
}
