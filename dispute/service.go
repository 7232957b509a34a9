package dispute

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrValidation signals a malformed request rejected before it
	// touches any state.
	ErrValidation = errors.New("dispute: invalid request")
	// ErrInvalidPhase signals an operation attempted outside its phase.
	ErrInvalidPhase = errors.New("dispute: invalid phase")
	// ErrUnauthorized signals a caller without permission, including
	// callbacks that fail the correlation-token guard.
	ErrUnauthorized = errors.New("dispute: unauthorized")
	// ErrDuplicateVote signals a juror voting twice on the same dispute.
	ErrDuplicateVote = errors.New("dispute: already voted")
	// ErrDuplicateSubmission signals counter-evidence submitted twice.
	ErrDuplicateSubmission = errors.New("dispute: evidence already submitted")
	// ErrQuotaExceeded signals the vote set is already at MaxJudges.
	ErrQuotaExceeded = errors.New("dispute: vote quota exceeded")
	// ErrCallbackResultMissing signals a callback without the expected
	// upstream result. There is no retry path; see DESIGN.md.
	ErrCallbackResultMissing = errors.New("dispute: callback result missing")
	// ErrCallbackFailed signals the custodian reported a failed request.
	ErrCallbackFailed = errors.New("dispute: callback failed")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	NextID(ctx context.Context, tx pgx.Tx) (int64, error)
	TotalDisputes(ctx context.Context) (int64, error)
	Insert(ctx context.Context, tx pgx.Tx, d Dispute) error
	Get(ctx context.Context, id int64) (Dispute, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (Dispute, error)
	Save(ctx context.Context, tx pgx.Tx, d Dispute) error
	InsertVote(ctx context.Context, tx pgx.Tx, disputeID int64, v Vote) (bool, error)
	IssueToken(ctx context.Context, tx pgx.Tx, tokenID string, disputeID int64, purpose string) error
	ConsumeToken(ctx context.Context, tx pgx.Tx, tokenID, purpose string) (int64, error)
	MarkReleaseConfirmed(ctx context.Context, tx pgx.Tx, disputeID int64) error
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// TokenGuard signs and verifies the correlation tokens that authenticate
// the custodian completion path.
type TokenGuard interface {
	Sign(tokenID string, disputeID int64, purpose string) (string, error)
	Verify(token string) (tokenID string, disputeID int64, purpose string, err error)
}

type Service struct {
	pool    TxBeginner
	store   Store
	guard   TokenGuard
	now     func() time.Time
	tokenID func() string
}

func NewService(pool TxBeginner, store Store, guard TokenGuard) *Service {
	return &Service{
		pool:    pool,
		store:   store,
		guard:   guard,
		now:     time.Now,
		tokenID: func() string { return uuid.NewString() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithTokenIDGenerator(gen func() string) *Service {
	s.tokenID = gen
	return s
}

// OpenParams carries the dispute-initiation request. Applicant is the
// account opening the dispute against the accused over the escrowed unit
// identified by ServiceRef.
type OpenParams struct {
	Applicant         string
	Accused           string
	ServiceRef        string
	ApplicantEvidence string
}

// OpenDispute allocates the next identifier, stores the new dispute and
// enqueues the asynchronous custodian notification that places the hold on
// the disputed service. It does not wait for that notification; the
// custodian confirms later through OnDisputeValidated.
func (s *Service) OpenDispute(ctx context.Context, params OpenParams) (Dispute, error) {
	if params.Applicant == "" || params.Accused == "" {
		return Dispute{}, fmt.Errorf("%w: applicant and accused required", ErrValidation)
	}
	if params.Applicant == params.Accused {
		return Dispute{}, fmt.Errorf("%w: applicant cannot dispute themselves", ErrValidation)
	}
	if params.ServiceRef == "" {
		return Dispute{}, fmt.Errorf("%w: service ref required", ErrValidation)
	}
	if strings.TrimSpace(params.ApplicantEvidence) == "" {
		return Dispute{}, fmt.Errorf("%w: applicant evidence required", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := s.store.NextID(ctx, tx)
	if err != nil {
		return Dispute{}, err
	}

	now := s.now().UTC()
	d := Dispute{
		ID:                id,
		ServiceRef:        params.ServiceRef,
		Status:            StatusOpen,
		Applicant:         params.Applicant,
		Accused:           params.Accused,
		ApplicantEvidence: params.ApplicantEvidence,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Insert(ctx, tx, d); err != nil {
		return Dispute{}, err
	}

	tokenID := s.tokenID()
	if err := s.store.IssueToken(ctx, tx, tokenID, id, PurposeValidate); err != nil {
		return Dispute{}, err
	}
	signed, err := s.guard.Sign(tokenID, id, PurposeValidate)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: sign validate token: %w", err)
	}

	payload := map[string]any{
		"dispute_id":     id,
		"applicant":      d.Applicant,
		"accused":        d.Accused,
		"service_ref":    d.ServiceRef,
		"judge_quota":    MaxJudges,
		"exclude":        []string{d.Applicant, d.Accused},
		"callback_token": signed,
	}
	if err := s.store.EnqueueOutbox(ctx, tx, TopicDisputeOpened, payload); err != nil {
		return Dispute{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit open: %w", err)
	}

	log.Printf("dispute: opened id=%d service=%s applicant=%s accused=%s", d.ID, d.ServiceRef, d.Applicant, d.Accused)
	return d, nil
}

// SubmitAccusedEvidence records the accused party's rebuttal and closes
// the open phase early, forcing the resolving phase regardless of time.
func (s *Service) SubmitAccusedEvidence(ctx context.Context, disputeID int64, caller, text string) (Dispute, error) {
	if strings.TrimSpace(text) == "" {
		return Dispute{}, fmt.Errorf("%w: evidence text required", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	d, err := s.evaluateLocked(ctx, tx, disputeID)
	if err != nil {
		return Dispute{}, err
	}

	if d.Status != StatusOpen {
		return Dispute{}, ErrInvalidPhase
	}
	if caller != d.Accused {
		return Dispute{}, ErrUnauthorized
	}
	if d.AccusedEvidence != nil {
		return Dispute{}, ErrDuplicateSubmission
	}

	d.AccusedEvidence = &text
	d.Status = StatusResolving

	if err := s.store.Save(ctx, tx, d); err != nil {
		return Dispute{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit evidence: %w", err)
	}
	return d, nil
}

// Vote inserts a juror decision. Reaching MaxJudges votes forces the
// executable phase and applies its tally rule within the same call.
func (s *Service) Vote(ctx context.Context, disputeID int64, voter string, decision bool) (Dispute, error) {
	if voter == "" {
		return Dispute{}, fmt.Errorf("%w: voter required", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	d, err := s.evaluateLocked(ctx, tx, disputeID)
	if err != nil {
		return Dispute{}, err
	}

	if d.Status != StatusResolving {
		return Dispute{}, ErrInvalidPhase
	}
	if len(d.Votes) >= MaxJudges {
		return Dispute{}, ErrQuotaExceeded
	}

	v := Vote{VoterID: voter, Decision: decision, CastAt: s.now().UTC()}
	inserted, err := s.store.InsertVote(ctx, tx, d.ID, v)
	if err != nil {
		return Dispute{}, err
	}
	if !inserted {
		return Dispute{}, ErrDuplicateVote
	}
	d.Votes = append(d.Votes, v)

	if len(d.Votes) == MaxJudges {
		d.Status = StatusExecutable
		var out Outcome
		d, out = settle(d, s.now().UTC())
		if out.FinishedNow {
			if err := s.requestRelease(ctx, tx, d); err != nil {
				return Dispute{}, err
			}
		}
	}

	if err := s.store.Save(ctx, tx, d); err != nil {
		return Dispute{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit vote: %w", err)
	}
	return d, nil
}

// GetDisputeStatus runs the lifecycle engine and persists its effects
// before returning; unlike GetDispute, this read mutates state.
func (s *Service) GetDisputeStatus(ctx context.Context, disputeID int64) (Dispute, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	d, err := s.evaluateLocked(ctx, tx, disputeID)
	if err != nil {
		return Dispute{}, err
	}
	if err := s.store.Save(ctx, tx, d); err != nil {
		return Dispute{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit status: %w", err)
	}
	return d, nil
}

// GetDispute returns the last-persisted state without re-evaluation.
func (s *Service) GetDispute(ctx context.Context, disputeID int64) (Dispute, error) {
	return s.store.Get(ctx, disputeID)
}

// TotalDisputes reports how many disputes were ever created.
func (s *Service) TotalDisputes(ctx context.Context) (int64, error) {
	return s.store.TotalDisputes(ctx)
}

// OnDisputeValidated is the guarded completion path for the creation-time
// custodian notification. The correlation token must verify and must not
// have been consumed before; anything else is rejected without state
// change.
func (s *Service) OnDisputeValidated(ctx context.Context, callbackToken string, result CallbackResult) error {
	tokenID, disputeID, err := s.verifyToken(callbackToken, PurposeValidate)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	owner, err := s.store.ConsumeToken(ctx, tx, tokenID, PurposeValidate)
	if err != nil {
		return err
	}
	if owner != disputeID {
		return ErrUnauthorized
	}
	if err := checkResult(result); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dispute: commit validated callback: %w", err)
	}
	log.Printf("dispute: creation validated id=%d", disputeID)
	return nil
}

// OnReleaseConfirmed is the guarded completion path for the escrow
// release. It consumes the single-use token and records the confirmation
// exactly once. A failed or missing result is fatal: the transaction rolls
// back and no compensation is attempted.
func (s *Service) OnReleaseConfirmed(ctx context.Context, serviceRef, callbackToken string, result CallbackResult) error {
	tokenID, disputeID, err := s.verifyToken(callbackToken, PurposeRelease)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	owner, err := s.store.ConsumeToken(ctx, tx, tokenID, PurposeRelease)
	if err != nil {
		return err
	}
	if owner != disputeID {
		return ErrUnauthorized
	}

	d, err := s.store.GetForUpdate(ctx, tx, disputeID)
	if err != nil {
		return err
	}
	if d.ServiceRef != serviceRef {
		return ErrUnauthorized
	}
	if err := checkResult(result); err != nil {
		log.Printf("dispute: release confirmation for id=%d failed: %v", disputeID, err)
		return err
	}

	if err := s.store.MarkReleaseConfirmed(ctx, tx, disputeID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dispute: commit release callback: %w", err)
	}
	log.Printf("dispute: service %s released id=%d", serviceRef, disputeID)
	return nil
}

// evaluateLocked loads the dispute under its row lock and applies the
// lifecycle engine, enqueueing the release request if the evaluation
// finished the dispute. Effects persist only if the whole operation
// commits.
func (s *Service) evaluateLocked(ctx context.Context, tx pgx.Tx, disputeID int64) (Dispute, error) {
	d, err := s.store.GetForUpdate(ctx, tx, disputeID)
	if err != nil {
		return Dispute{}, err
	}
	next, out := Evaluate(d, s.now().UTC())
	if out.FinishedNow {
		if err := s.requestRelease(ctx, tx, next); err != nil {
			return Dispute{}, err
		}
	}
	return next, nil
}

// requestRelease issues the one-shot asynchronous release request: a
// single-use correlation token plus an outbox message for the notifier.
func (s *Service) requestRelease(ctx context.Context, tx pgx.Tx, d Dispute) error {
	if d.Winner == nil {
		return fmt.Errorf("dispute: release requested without winner for dispute %d", d.ID)
	}

	tokenID := s.tokenID()
	if err := s.store.IssueToken(ctx, tx, tokenID, d.ID, PurposeRelease); err != nil {
		return err
	}
	signed, err := s.guard.Sign(tokenID, d.ID, PurposeRelease)
	if err != nil {
		return fmt.Errorf("dispute: sign release token: %w", err)
	}

	payload := map[string]any{
		"dispute_id":     d.ID,
		"service_ref":    d.ServiceRef,
		"winner":         *d.Winner,
		"callback_token": signed,
	}
	return s.store.EnqueueOutbox(ctx, tx, TopicReleaseRequested, payload)
}

func (s *Service) verifyToken(callbackToken, wantPurpose string) (string, int64, error) {
	tokenID, disputeID, purpose, err := s.guard.Verify(callbackToken)
	if err != nil || purpose != wantPurpose {
		return "", 0, ErrUnauthorized
	}
	return tokenID, disputeID, nil
}

func checkResult(result CallbackResult) error {
	if !result.Present {
		return ErrCallbackResultMissing
	}
	if !result.Succeeded {
		return ErrCallbackFailed
	}
	return nil
}
