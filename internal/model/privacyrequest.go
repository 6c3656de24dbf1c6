package model

import "time"

// PrivacyRequestStatus is the state of a PrivacyRequestRunner's run, persisted
// alongside the request so a paused or crashed run can be resumed.
type PrivacyRequestStatus string

const (
	StatusPending      PrivacyRequestStatus = "pending"
	StatusInProcessing PrivacyRequestStatus = "in_processing"
	StatusPaused       PrivacyRequestStatus = "paused"
	StatusComplete     PrivacyRequestStatus = "complete"
	StatusError        PrivacyRequestStatus = "error"
)

// CanTransitionTo reports whether moving from s to next is a legal state
// transition. pending only ever moves forward into in_processing; a paused
// request resumes back into in_processing; in_processing is the only state
// that can terminate into complete or error.
func (s PrivacyRequestStatus) CanTransitionTo(next PrivacyRequestStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProcessing
	case StatusInProcessing:
		return next == StatusPaused || next == StatusComplete || next == StatusError
	case StatusPaused:
		return next == StatusInProcessing
	default: // complete, error are terminal
		return false
	}
}

// Identity is the set of identity values a privacy request was submitted
// with, keyed by identity kind ("email", "phone_number", ...). Values
// gathered from two_way webhook responses are merged into this same map.
type Identity map[string]string

// PrivacyRequest is one subject's request for access to, or erasure of,
// their data under a Policy.
type PrivacyRequest struct {
	ID                   string
	PolicyKey            string
	RequestedAt          time.Time
	Identity             Identity
	Status               PrivacyRequestStatus
	StartedProcessingAt  *time.Time
	FinishedProcessingAt *time.Time
	// EncryptionKey, if set, is used to encrypt rows written to the result
	// store for this request. Nil means the result store keeps plaintext.
	EncryptionKey []byte
	// PausedAtWebhook records which pre-execution webhook the run should resume
	// after, for a paused request. Empty string means "resume from the
	// start of the pre-execution webhook list".
	PausedAtWebhook string
}

// Advance attempts the transition to next, returning false without mutating
// the request if the transition is illegal.
func (r *PrivacyRequest) Advance(next PrivacyRequestStatus, at time.Time) bool {
	if !r.Status.CanTransitionTo(next) {
		return false
	}
	r.Status = next
	switch next {
	case StatusInProcessing:
		if r.StartedProcessingAt == nil {
			t := at
			r.StartedProcessingAt = &t
		}
	case StatusComplete, StatusError:
		t := at
		r.FinishedProcessingAt = &t
	}
	return true
}

// ExecutionLogStatus is the outcome recorded for one collection visited
// during a privacy request run.
type ExecutionLogStatus string

const (
	ExecutionLogPending      ExecutionLogStatus = "pending"
	ExecutionLogInProcessing ExecutionLogStatus = "in_processing"
	ExecutionLogComplete     ExecutionLogStatus = "complete"
	ExecutionLogError        ExecutionLogStatus = "error"
)

// ExecutionLog is one append-only record of a privacy request's progress
// through a single (collection, action) pair. Runners never update an
// existing log entry; they append a new one as status changes.
type ExecutionLog struct {
	PrivacyRequestID string
	CollectionAddress CollectionAddress
	Action           ActionType
	Status           ExecutionLogStatus
	Message          string
	RecordsAffected  int
	Timestamp        time.Time
}
