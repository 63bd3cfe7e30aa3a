package models

import (
	"regexp"
	"strings"
)

// AgentTerminalMarker is the parsed form of the string sentinels an agent's
// final assistant text may emit. The wire contract (plain strings like
// "TASK_ALREADY_COMPLETE: ...") is parsed once at the boundary into this sum
// type per the Design Notes; nothing downstream matches on raw strings.
type AgentTerminalMarker struct {
	Kind   AgentTerminalMarkerKind
	Reason string
}

type AgentTerminalMarkerKind string

const (
	MarkerNone                AgentTerminalMarkerKind = "normal"
	MarkerAlreadyComplete      AgentTerminalMarkerKind = "alreadyComplete"
	MarkerInvalidTarget        AgentTerminalMarkerKind = "invalidTarget"
	MarkerNeedsDecomposition   AgentTerminalMarkerKind = "needsDecomposition"
)

var markerPatterns = []struct {
	kind AgentTerminalMarkerKind
	re   *regexp.Regexp
}{
	{MarkerAlreadyComplete, regexp.MustCompile(`(?m)^TASK_ALREADY_COMPLETE:\s*(.*)$`)},
	{MarkerInvalidTarget, regexp.MustCompile(`(?m)^INVALID_TARGET:\s*(.*)$`)},
	{MarkerNeedsDecomposition, regexp.MustCompile(`(?m)^NEEDS_DECOMPOSITION:\s*(.*)$`)},
}

// ParseAgentTerminalMarker scans assistant text for a known sentinel and
// returns the parsed marker. Returns MarkerNone if no sentinel is present.
func ParseAgentTerminalMarker(text string) AgentTerminalMarker {
	for _, p := range markerPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			return AgentTerminalMarker{Kind: p.kind, Reason: strings.TrimSpace(m[1])}
		}
	}
	return AgentTerminalMarker{Kind: MarkerNone}
}

// StopDecision is the result of the agent loop's pre-tool-use / stop-hook
// evaluation, modeled as a tagged variant per the Design Notes rather than
// control-flow exceptions.
type StopDecision struct {
	Kind       StopDecisionKind
	Reason     string
	FatalKind  ErrorKind
}

type StopDecisionKind string

const (
	StopContinue StopDecisionKind = "continue"
	StopReject   StopDecisionKind = "reject"
	StopFatal    StopDecisionKind = "fatal"
)

// Continue constructs a StopDecision that allows the agent loop to proceed.
func Continue() StopDecision { return StopDecision{Kind: StopContinue} }

// Reject constructs a StopDecision that sends feedback back into the loop
// without terminating the task (e.g. "you still haven't made changes").
func Reject(reason string) StopDecision {
	return StopDecision{Kind: StopReject, Reason: reason}
}

// Fatal constructs a StopDecision that ends the task outright.
func Fatal(kind ErrorKind, reason string) StopDecision {
	return StopDecision{Kind: StopFatal, FatalKind: kind, Reason: reason}
}
