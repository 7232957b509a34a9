package dispute

import "time"

// Status represents the phase of a dispute's arbitration lifecycle.
type Status string

const (
	StatusOpen       Status = "open"
	StatusResolving  Status = "resolving"
	StatusExecutable Status = "executable"
	StatusFinished   Status = "finished"
)

const (
	// MaxJudges caps the vote set; reaching it forces the executable phase
	// regardless of elapsed time.
	MaxJudges = 50

	// OpenPhase is how long the accused has to submit counter-evidence.
	OpenPhase = 5 * 24 * time.Hour
	// ResolvePhase is the voting window that follows the open phase.
	ResolvePhase = 2 * 24 * time.Hour
)

// Correlation token purposes for the two asynchronous custodian exchanges.
const (
	PurposeValidate = "validate"
	PurposeRelease  = "release"
)

// Outbox topics consumed by the custodian notifier.
const (
	TopicDisputeOpened    = "dispute.opened"
	TopicReleaseRequested = "dispute.release_requested"
)

// Vote is a single juror decision. A true decision favours the applicant.
type Vote struct {
	VoterID  string
	Decision bool
	CastAt   time.Time
}

// Dispute mirrors the disputes table plus its vote rows.
type Dispute struct {
	ID                 int64
	ServiceRef         string
	Status             Status
	Applicant          string
	Accused            string
	Winner             *string
	ApplicantEvidence  string
	AccusedEvidence    *string
	Votes              []Vote
	CreatedAt          time.Time
	ReopenedAt         *time.Time
	FinishedAt         *time.Time
	ReleaseConfirmedAt *time.Time
	UpdatedAt          time.Time
}

// PhaseBase is the instant the current arbitration cycle began: creation
// time, or the moment a tied tally reopened the dispute. Deadline rules
// measure from it so a reopened dispute gets a full evidence window again.
func (d Dispute) PhaseBase() time.Time {
	if d.ReopenedAt != nil {
		return *d.ReopenedAt
	}
	return d.CreatedAt
}

// CallbackResult carries the custodian's reported outcome for an
// asynchronous request, delivered through the guarded completion path.
type CallbackResult struct {
	Present   bool
	Succeeded bool
}
