package types

import (
	"encoding/json"
	"fmt"
)

// JobState represents the execution state of a threat-modeling job.
// THREAT and THREAT_RETRY label the same threat-generation code path;
// THREAT_RETRY is reported once the pass counter climbs past 1.
type JobState string

const (
	JobStateStart       JobState = "START"
	JobStateAssets      JobState = "ASSETS"
	JobStateFlow        JobState = "FLOW"
	JobStateThreat      JobState = "THREAT"
	JobStateThreatRetry JobState = "THREAT_RETRY"
	JobStateFinalize    JobState = "FINALIZE"
	JobStateComplete    JobState = "COMPLETE"
	JobStateFailed      JobState = "FAILED"
	JobStateCancelled   JobState = "CANCELLED"
)

// String returns the string representation of JobState.
func (s JobState) String() string {
	return string(s)
}

// IsValid checks if the JobState is a valid value.
func (s JobState) IsValid() bool {
	switch s {
	case JobStateStart, JobStateAssets, JobStateFlow, JobStateThreat,
		JobStateThreatRetry, JobStateFinalize, JobStateComplete,
		JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the state permits no further transitions.
// COMPLETE, FAILED, and CANCELLED are all terminal, and distinct.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateComplete, JobStateFailed, JobStateCancelled:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (s JobState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *JobState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := JobState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid job state: %s", str)
	}

	*s = state
	return nil
}

// ExecutionMode selects how a job iterates toward a finished catalog.
type ExecutionMode string

const (
	// ModeGraph runs the fixed stage sequence with the iteration controller.
	ModeGraph ExecutionMode = "graph"

	// ModeAgentic lets the model drive iteration through tool calls.
	ModeAgentic ExecutionMode = "agentic"
)

// String returns the string representation of ExecutionMode.
func (m ExecutionMode) String() string {
	return string(m)
}

// IsValid checks if the ExecutionMode is a valid value.
func (m ExecutionMode) IsValid() bool {
	switch m {
	case ModeGraph, ModeAgentic:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (m ExecutionMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ExecutionMode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	mode := ExecutionMode(str)
	if !mode.IsValid() {
		return fmt.Errorf("invalid execution mode: %s", str)
	}

	*m = mode
	return nil
}
