package event

import (
	"time"

	"github.com/intentlabs/transformd/backend/phase"
)

// SessionCreated is published when a new conversation starts.
type SessionCreated struct {
	SessionID string
	Domain    string
	At        time.Time
}

func (SessionCreated) Event() {}

// FactRecorded is published for every fact write that survives shape and
// confidence checks.
type FactRecorded struct {
	SessionID  string
	Key        string
	Phase      phase.Phase
	Confidence float64
}

func (FactRecorded) Event() {}

// PhaseAdvanced is published when a phase completes and the session
// moves forward.
type PhaseAdvanced struct {
	SessionID string
	From      phase.Phase
	To        phase.Phase
	Version   int
}

func (PhaseAdvanced) Event() {}

// OutputRegenerated is published when a stale phase output is rebuilt
// after a backward correction.
type OutputRegenerated struct {
	SessionID string
	Phase     phase.Phase
	Version   int
}

func (OutputRegenerated) Event() {}

// ExtractionFailed is published when the understanding collaborator
// could not process a message. The conversation continues regardless.
type ExtractionFailed struct {
	SessionID string
	Phase     phase.Phase
	Reason    string
}

func (ExtractionFailed) Event() {}

// SessionEvicted is published when an idle session is removed by the
// TTL sweep.
type SessionEvicted struct {
	SessionID string
	IdleFor   time.Duration
}

func (SessionEvicted) Event() {}
