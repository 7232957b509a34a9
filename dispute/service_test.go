package dispute

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func newTestService(store *fakeStore) (*Service, *fakePool) {
	pool := &fakePool{}
	svc := NewService(pool, store, fakeGuard{}).
		WithClock(func() time.Time { return t0 }).
		WithTokenIDGenerator(sequentialTokens())
	return svc, pool
}

func sequentialTokens() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("token-%d", n)
	}
}

func TestOpenDispute_EnqueuesCustodianNotification(t *testing.T) {
	store := newFakeStore()
	svc, pool := newTestService(store)

	d, err := svc.OpenDispute(context.Background(), OpenParams{
		Applicant:         "alice",
		Accused:           "bob",
		ServiceRef:        "svc-42",
		ApplicantEvidence: "work was never delivered",
	})
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}

	if d.ID != 0 || d.Status != StatusOpen {
		t.Fatalf("unexpected dispute: %+v", d)
	}
	if !pool.last().committed {
		t.Fatalf("expected open transaction to commit")
	}

	tok, ok := store.tokens["token-1"]
	if !ok || tok.purpose != PurposeValidate || tok.disputeID != 0 {
		t.Fatalf("expected pending validate token, got %+v", tok)
	}

	if len(store.outbox) != 1 || store.outbox[0].topic != TopicDisputeOpened {
		t.Fatalf("expected one dispute.opened message, got %+v", store.outbox)
	}
	payload := store.outbox[0].payload
	if payload["judge_quota"] != MaxJudges {
		t.Fatalf("expected judge quota %d, got %v", MaxJudges, payload["judge_quota"])
	}
	exclude, _ := payload["exclude"].([]string)
	if len(exclude) != 2 || exclude[0] != "alice" || exclude[1] != "bob" {
		t.Fatalf("expected parties excluded from the jury, got %v", exclude)
	}
}

func TestOpenDispute_MonotonicIDs(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)

	params := OpenParams{Applicant: "alice", Accused: "bob", ServiceRef: "svc-1", ApplicantEvidence: "proof"}
	first, err := svc.OpenDispute(context.Background(), params)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	second, err := svc.OpenDispute(context.Background(), params)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if second.ID != first.ID+1 {
		t.Fatalf("expected ids to increase, got %d then %d", first.ID, second.ID)
	}

	total, err := svc.TotalDisputes(context.Background())
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 disputes, got %d", total)
	}
}

func TestOpenDispute_RejectsSelfDispute(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	_, err := svc.OpenDispute(context.Background(), OpenParams{
		Applicant:         "alice",
		Accused:           "alice",
		ServiceRef:        "svc-1",
		ApplicantEvidence: "proof",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSubmitAccusedEvidence_ForcesResolving(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	svc, pool := newTestService(store)
	svc.WithClock(func() time.Time { return day(1) })

	d, err := svc.SubmitAccusedEvidence(context.Background(), 7, "bob", "counter proof")
	if err != nil {
		t.Fatalf("submit evidence: %v", err)
	}

	if d.Status != StatusResolving {
		t.Fatalf("expected resolving, got %s", d.Status)
	}
	if d.AccusedEvidence == nil || *d.AccusedEvidence != "counter proof" {
		t.Fatalf("expected evidence recorded, got %v", d.AccusedEvidence)
	}
	if !pool.last().committed {
		t.Fatalf("expected commit")
	}

	persisted := store.disputes[7]
	if persisted.Status != StatusResolving {
		t.Fatalf("expected persisted status resolving, got %s", persisted.Status)
	}
}

func TestSubmitAccusedEvidence_WrongCaller(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	svc, pool := newTestService(store)
	svc.WithClock(func() time.Time { return day(1) })

	_, err := svc.SubmitAccusedEvidence(context.Background(), 7, "mallory", "fake proof")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if pool.last().committed {
		t.Fatalf("expected rollback on unauthorized submission")
	}
}

func TestSubmitAccusedEvidence_Duplicate(t *testing.T) {
	store := newFakeStore()
	seeded := openDispute()
	evidence := "already here"
	seeded.AccusedEvidence = &evidence
	store.seed(seeded)
	svc, _ := newTestService(store)
	svc.WithClock(func() time.Time { return day(1) })

	_, err := svc.SubmitAccusedEvidence(context.Background(), 7, "bob", "again")
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
}

func TestSubmitAccusedEvidence_AfterDeadline(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	svc, _ := newTestService(store)
	svc.WithClock(func() time.Time { return day(5.5) })

	// Lazy evaluation advances the phase first, so the window is gone.
	_, err := svc.SubmitAccusedEvidence(context.Background(), 7, "bob", "too late")
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestVote_RecordsDecision(t *testing.T) {
	store := newFakeStore()
	seeded := openDispute()
	seeded.Status = StatusResolving
	store.seed(seeded)
	svc, pool := newTestService(store)
	svc.WithClock(func() time.Time { return day(6) })

	d, err := svc.Vote(context.Background(), 7, "judge-1", true)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if len(d.Votes) != 1 || d.Votes[0].VoterID != "judge-1" || !d.Votes[0].Decision {
		t.Fatalf("unexpected votes: %+v", d.Votes)
	}
	if d.Status != StatusResolving {
		t.Fatalf("expected still resolving, got %s", d.Status)
	}
	if !pool.last().committed {
		t.Fatalf("expected commit")
	}
}

func TestVote_Duplicate(t *testing.T) {
	store := newFakeStore()
	seeded := openDispute()
	seeded.Status = StatusResolving
	store.seed(seeded)
	store.addVote(7, Vote{VoterID: "judge-1", Decision: true, CastAt: day(6)})
	svc, pool := newTestService(store)
	svc.WithClock(func() time.Time { return day(6.1) })

	_, err := svc.Vote(context.Background(), 7, "judge-1", false)
	if !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("expected ErrDuplicateVote, got %v", err)
	}
	if pool.last().committed {
		t.Fatalf("expected rollback on duplicate vote")
	}
	if len(store.votes[7]) != 1 {
		t.Fatalf("expected vote set unchanged, got %d votes", len(store.votes[7]))
	}
}

func TestVote_WrongPhase(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	svc, _ := newTestService(store)
	svc.WithClock(func() time.Time { return day(1) })

	_, err := svc.Vote(context.Background(), 7, "judge-1", true)
	if !errors.Is(err, ErrInvalidPhase) {
		t.Fatalf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestVote_NotFound(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	_, err := svc.Vote(context.Background(), 99, "judge-1", true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVote_QuorumForcesSettlement(t *testing.T) {
	store := newFakeStore()
	seeded := openDispute()
	seeded.Status = StatusResolving
	store.seed(seeded)
	for i := 0; i < MaxJudges-1; i++ {
		store.addVote(7, Vote{VoterID: fmt.Sprintf("judge-%d", i), Decision: i%2 == 0, CastAt: day(6)})
	}

	svc, _ := newTestService(store)
	svc.WithClock(func() time.Time { return day(6.5) }) // before the time-based deadline

	d, err := svc.Vote(context.Background(), 7, "judge-final", true)
	if err != nil {
		t.Fatalf("quorum vote: %v", err)
	}

	if d.Status != StatusFinished {
		t.Fatalf("expected quorum to finish the dispute, got %s", d.Status)
	}
	if d.Winner == nil || *d.Winner != "alice" {
		t.Fatalf("expected applicant to win 26/24, got %v", d.Winner)
	}
	if len(d.Votes) != MaxJudges {
		t.Fatalf("expected %d votes, got %d", MaxJudges, len(d.Votes))
	}

	var releases int
	for _, m := range store.outbox {
		if m.topic == TopicReleaseRequested {
			releases++
			if m.payload["service_ref"] != "svc-42" || m.payload["winner"] != "alice" {
				t.Fatalf("unexpected release payload: %+v", m.payload)
			}
		}
	}
	if releases != 1 {
		t.Fatalf("expected exactly one release request, got %d", releases)
	}
}

func TestVote_QuorumTieReopens(t *testing.T) {
	store := newFakeStore()
	seeded := openDispute()
	seeded.Status = StatusResolving
	store.seed(seeded)
	// 25 pro, 24 against already cast; the final against vote ties it.
	for i := 0; i < MaxJudges-1; i++ {
		store.addVote(7, Vote{VoterID: fmt.Sprintf("judge-%d", i), Decision: i < 25, CastAt: day(6)})
	}

	svc, _ := newTestService(store)
	svc.WithClock(func() time.Time { return day(6.5) })

	d, err := svc.Vote(context.Background(), 7, "judge-final", false)
	if err != nil {
		t.Fatalf("tie vote: %v", err)
	}

	if d.Status != StatusOpen {
		t.Fatalf("expected tie to reopen the dispute, got %s", d.Status)
	}
	if d.Winner != nil {
		t.Fatalf("expected no winner on tie")
	}
	if d.ReopenedAt == nil {
		t.Fatalf("expected reopenedAt to be set")
	}
	for _, m := range store.outbox {
		if m.topic == TopicReleaseRequested {
			t.Fatalf("tie must not request a release")
		}
	}
}

func TestVote_QuotaExceeded(t *testing.T) {
	store := newFakeStore()
	seeded := openDispute()
	seeded.Status = StatusResolving
	store.seed(seeded)
	for i := 0; i < MaxJudges; i++ {
		store.addVote(7, Vote{VoterID: fmt.Sprintf("judge-%d", i), Decision: true, CastAt: day(6)})
	}

	svc, _ := newTestService(store)
	svc.WithClock(func() time.Time { return day(6.5) })

	_, err := svc.Vote(context.Background(), 7, "judge-extra", true)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestGetDisputeStatus_PersistsLazyTransition(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	svc, pool := newTestService(store)
	svc.WithClock(func() time.Time { return day(6) })

	d, err := svc.GetDisputeStatus(context.Background(), 7)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if d.Status != StatusResolving {
		t.Fatalf("expected resolving, got %s", d.Status)
	}
	if !pool.last().committed {
		t.Fatalf("expected the status read to commit its evaluation")
	}
	if store.disputes[7].Status != StatusResolving {
		t.Fatalf("expected persisted transition, got %s", store.disputes[7].Status)
	}
}

func TestGetDisputeStatus_FinishRequestsReleaseOnce(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	store.addVote(7, Vote{VoterID: "judge-1", Decision: true, CastAt: day(6)})
	svc, _ := newTestService(store)
	svc.WithClock(func() time.Time { return day(8) })

	d, err := svc.GetDisputeStatus(context.Background(), 7)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if d.Status != StatusFinished {
		t.Fatalf("expected finished, got %s", d.Status)
	}
	if d.FinishedAt == nil || d.Winner == nil || *d.Winner != "alice" {
		t.Fatalf("expected winner and finishedAt, got %+v", d)
	}

	// A second status read of the finished dispute must not re-fire.
	if _, err := svc.GetDisputeStatus(context.Background(), 7); err != nil {
		t.Fatalf("second status: %v", err)
	}
	var releases int
	for _, m := range store.outbox {
		if m.topic == TopicReleaseRequested {
			releases++
		}
	}
	if releases != 1 {
		t.Fatalf("expected exactly one release request, got %d", releases)
	}
}

func TestGetDispute_DoesNotEvaluate(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	svc, pool := newTestService(store)
	svc.WithClock(func() time.Time { return day(20) })

	d, err := svc.GetDispute(context.Background(), 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Status != StatusOpen {
		t.Fatalf("pure read must return last-persisted state, got %s", d.Status)
	}
	if pool.tx != nil {
		t.Fatalf("pure read must not open a transaction")
	}
}

func TestOnDisputeValidated_SingleUse(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	store.issueToken("token-1", 7, PurposeValidate)
	svc, _ := newTestService(store)

	token, _ := fakeGuard{}.Sign("token-1", 7, PurposeValidate)
	ok := CallbackResult{Present: true, Succeeded: true}

	if err := svc.OnDisputeValidated(context.Background(), token, ok); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	if err := svc.OnDisputeValidated(context.Background(), token, ok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected replay to be rejected, got %v", err)
	}
}

func TestOnDisputeValidated_GarbageToken(t *testing.T) {
	svc, _ := newTestService(newFakeStore())

	err := svc.OnDisputeValidated(context.Background(), "not-a-token", CallbackResult{Present: true, Succeeded: true})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestOnDisputeValidated_WrongPurpose(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	store.issueToken("token-1", 7, PurposeRelease)
	svc, _ := newTestService(store)

	token, _ := fakeGuard{}.Sign("token-1", 7, PurposeRelease)
	err := svc.OnDisputeValidated(context.Background(), token, CallbackResult{Present: true, Succeeded: true})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected purpose mismatch to be rejected, got %v", err)
	}
}

func TestOnDisputeValidated_ResultMissing(t *testing.T) {
	store := newFakeStore()
	store.seed(openDispute())
	store.issueToken("token-1", 7, PurposeValidate)
	svc, pool := newTestService(store)

	token, _ := fakeGuard{}.Sign("token-1", 7, PurposeValidate)
	err := svc.OnDisputeValidated(context.Background(), token, CallbackResult{})
	if !errors.Is(err, ErrCallbackResultMissing) {
		t.Fatalf("expected ErrCallbackResultMissing, got %v", err)
	}
	if pool.last().committed {
		t.Fatalf("expected rollback on missing result")
	}
}

func TestOnReleaseConfirmed_RecordsConfirmation(t *testing.T) {
	store := newFakeStore()
	winner := "alice"
	finished := day(8)
	seeded := openDispute()
	seeded.Status = StatusFinished
	seeded.Winner = &winner
	seeded.FinishedAt = &finished
	store.seed(seeded)
	store.issueToken("token-9", 7, PurposeRelease)
	svc, pool := newTestService(store)

	token, _ := fakeGuard{}.Sign("token-9", 7, PurposeRelease)
	err := svc.OnReleaseConfirmed(context.Background(), "svc-42", token, CallbackResult{Present: true, Succeeded: true})
	if err != nil {
		t.Fatalf("release callback: %v", err)
	}
	if !pool.last().committed {
		t.Fatalf("expected commit")
	}
	if len(store.releaseConfirmed) != 1 || store.releaseConfirmed[0] != 7 {
		t.Fatalf("expected confirmation recorded for dispute 7, got %v", store.releaseConfirmed)
	}
}

func TestOnReleaseConfirmed_FailedResultIsFatal(t *testing.T) {
	store := newFakeStore()
	winner := "bob"
	seeded := openDispute()
	seeded.Status = StatusFinished
	seeded.Winner = &winner
	store.seed(seeded)
	store.issueToken("token-9", 7, PurposeRelease)
	svc, pool := newTestService(store)

	token, _ := fakeGuard{}.Sign("token-9", 7, PurposeRelease)
	err := svc.OnReleaseConfirmed(context.Background(), "svc-42", token, CallbackResult{Present: true, Succeeded: false})
	if !errors.Is(err, ErrCallbackFailed) {
		t.Fatalf("expected ErrCallbackFailed, got %v", err)
	}
	if pool.last().committed {
		t.Fatalf("expected rollback, no compensation path exists")
	}
	if len(store.releaseConfirmed) != 0 {
		t.Fatalf("failed callback must not record a confirmation")
	}
}

func TestOnReleaseConfirmed_ServiceRefMismatch(t *testing.T) {
	store := newFakeStore()
	winner := "alice"
	seeded := openDispute()
	seeded.Status = StatusFinished
	seeded.Winner = &winner
	store.seed(seeded)
	store.issueToken("token-9", 7, PurposeRelease)
	svc, _ := newTestService(store)

	token, _ := fakeGuard{}.Sign("token-9", 7, PurposeRelease)
	err := svc.OnReleaseConfirmed(context.Background(), "svc-other", token, CallbackResult{Present: true, Succeeded: true})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized on service mismatch, got %v", err)
	}
}

// --- fakes ---

type fakeGuard struct{}

func (fakeGuard) Sign(tokenID string, disputeID int64, purpose string) (string, error) {
	return fmt.Sprintf("%s|%d|%s", tokenID, disputeID, purpose), nil
}

func (fakeGuard) Verify(token string) (string, int64, string, error) {
	parts := strings.SplitN(token, "|", 3)
	if len(parts) != 3 {
		return "", 0, "", errors.New("malformed token")
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", errors.New("malformed dispute id")
	}
	return parts[0], id, parts[2], nil
}

type fakeToken struct {
	disputeID int64
	purpose   string
	consumed  bool
}

type fakeMsg struct {
	topic   string
	payload map[string]any
}

type fakeStore struct {
	counter          int64
	disputes         map[int64]Dispute
	votes            map[int64][]Vote
	tokens           map[string]*fakeToken
	outbox           []fakeMsg
	releaseConfirmed []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		disputes: make(map[int64]Dispute),
		votes:    make(map[int64][]Vote),
		tokens:   make(map[string]*fakeToken),
	}
}

func (f *fakeStore) seed(d Dispute) {
	votes := d.Votes
	d.Votes = nil
	f.disputes[d.ID] = d
	f.votes[d.ID] = append(f.votes[d.ID], votes...)
}

func (f *fakeStore) addVote(id int64, v Vote) {
	f.votes[id] = append(f.votes[id], v)
}

func (f *fakeStore) issueToken(tokenID string, disputeID int64, purpose string) {
	f.tokens[tokenID] = &fakeToken{disputeID: disputeID, purpose: purpose}
}

func (f *fakeStore) NextID(context.Context, pgx.Tx) (int64, error) {
	id := f.counter
	f.counter++
	return id, nil
}

func (f *fakeStore) TotalDisputes(context.Context) (int64, error) {
	return f.counter, nil
}

func (f *fakeStore) Insert(_ context.Context, _ pgx.Tx, d Dispute) error {
	f.disputes[d.ID] = d
	return nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (Dispute, error) {
	return f.load(id)
}

func (f *fakeStore) GetForUpdate(_ context.Context, _ pgx.Tx, id int64) (Dispute, error) {
	return f.load(id)
}

func (f *fakeStore) load(id int64) (Dispute, error) {
	d, ok := f.disputes[id]
	if !ok {
		return Dispute{}, ErrNotFound
	}
	d.Votes = append([]Vote(nil), f.votes[id]...)
	return d, nil
}

func (f *fakeStore) Save(_ context.Context, _ pgx.Tx, d Dispute) error {
	if _, ok := f.disputes[d.ID]; !ok {
		return ErrNotFound
	}
	d.Votes = nil
	f.disputes[d.ID] = d
	return nil
}

func (f *fakeStore) InsertVote(_ context.Context, _ pgx.Tx, disputeID int64, v Vote) (bool, error) {
	for _, existing := range f.votes[disputeID] {
		if existing.VoterID == v.VoterID {
			return false, nil
		}
	}
	f.votes[disputeID] = append(f.votes[disputeID], v)
	return true, nil
}

func (f *fakeStore) IssueToken(_ context.Context, _ pgx.Tx, tokenID string, disputeID int64, purpose string) error {
	for _, tok := range f.tokens {
		if tok.disputeID == disputeID && tok.purpose == purpose && !tok.consumed {
			return fmt.Errorf("dispute: pending %s request already exists for dispute %d", purpose, disputeID)
		}
	}
	f.tokens[tokenID] = &fakeToken{disputeID: disputeID, purpose: purpose}
	return nil
}

func (f *fakeStore) ConsumeToken(_ context.Context, _ pgx.Tx, tokenID, purpose string) (int64, error) {
	tok, ok := f.tokens[tokenID]
	if !ok || tok.purpose != purpose || tok.consumed {
		return 0, ErrUnauthorized
	}
	tok.consumed = true
	return tok.disputeID, nil
}

func (f *fakeStore) MarkReleaseConfirmed(_ context.Context, _ pgx.Tx, disputeID int64) error {
	f.releaseConfirmed = append(f.releaseConfirmed, disputeID)
	return nil
}

func (f *fakeStore) EnqueueOutbox(_ context.Context, _ pgx.Tx, topic string, payload map[string]any) error {
	f.outbox = append(f.outbox, fakeMsg{topic: topic, payload: payload})
	return nil
}

type fakePool struct {
	tx  *fakeTx
	txs []*fakeTx
}

func (f *fakePool) Begin(context.Context) (pgx.Tx, error) {
	f.tx = &fakeTx{}
	f.txs = append(f.txs, f.tx)
	return f.tx, nil
}

func (f *fakePool) last() *fakeTx {
	if len(f.txs) == 0 {
		return &fakeTx{}
	}
	return f.txs[len(f.txs)-1]
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
