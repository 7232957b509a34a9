package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mediatorflow/custodian"
	"mediatorflow/dispute"
)

// Opener files new disputes between generated accounts. Errors are
// ignored; the oracles are the checkers.
func Opener(ctx context.Context, svc *dispute.Service, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		suffix := fmt.Sprintf("%d-%d", rand.Int63(), i)
		_, _ = svc.OpenDispute(ctx, dispute.OpenParams{
			Applicant:         "applicant-" + suffix,
			Accused:           "accused-" + suffix,
			ServiceRef:        "svc-" + suffix,
			ApplicantEvidence: "stress evidence " + suffix,
		})
		time.Sleep(time.Duration(40+rand.Intn(80)) * time.Millisecond)
	}
}

// Voter casts decisions from a small juror pool on random disputes so
// duplicate votes and quota rejections occur under contention.
func Voter(ctx context.Context, pool *pgxpool.Pool, svc *dispute.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if id, ok := randomDispute(ctx, pool); ok {
			juror := fmt.Sprintf("judge-%d", rand.Intn(80))
			_, _ = svc.Vote(ctx, id, juror, rand.Intn(2) == 0)
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// EvidenceSubmitter answers open disputes as their accused party,
// racing the deadline rules and duplicate-submission checks.
func EvidenceSubmitter(ctx context.Context, pool *pgxpool.Pool, svc *dispute.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var (
			id      int64
			accused string
		)
		err := pool.QueryRow(ctx, `
			SELECT id, accused FROM disputes WHERE status = 'open'
			ORDER BY random() LIMIT 1
		`).Scan(&id, &accused)
		if err == nil {
			_, _ = svc.SubmitAccusedEvidence(ctx, id, accused, "stress counter proof")
		}
		time.Sleep(time.Duration(30+rand.Intn(60)) * time.Millisecond)
	}
}

// StatusPoller drives the lazy lifecycle engine through the evaluating
// read, including ids that do not exist.
func StatusPoller(ctx context.Context, pool *pgxpool.Pool, svc *dispute.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if id, ok := randomDispute(ctx, pool); ok {
			_, _ = svc.GetDisputeStatus(ctx, id+int64(rand.Intn(3)))
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// Loopback plays the custodian: every delivered request immediately
// succeeds and its callback token is presented back to the service.
type Loopback struct {
	Svc *dispute.Service
}

func (l Loopback) ValidateDispute(ctx context.Context, p custodian.ValidateParams) error {
	_ = l.Svc.OnDisputeValidated(ctx, p.CallbackToken, dispute.CallbackResult{Present: true, Succeeded: true})
	return nil
}

func (l Loopback) ReleaseService(ctx context.Context, p custodian.ReleaseParams) error {
	_ = l.Svc.OnReleaseConfirmed(ctx, p.ServiceRef, p.CallbackToken, dispute.CallbackResult{Present: true, Succeeded: true})
	return nil
}

// CustodianWorker drains the outbox through the notifier with the
// loopback custodian behind it.
func CustodianWorker(ctx context.Context, pool *pgxpool.Pool, svc *dispute.Service, stop <-chan struct{}) error {
	notifier := custodian.NewNotifier(pool, Loopback{Svc: svc})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = notifier.DrainOnce(ctx)
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

func randomDispute(ctx context.Context, pool *pgxpool.Pool) (int64, bool) {
	var id int64
	err := pool.QueryRow(ctx, `SELECT id FROM disputes ORDER BY random() LIMIT 1`).Scan(&id)
	return id, err == nil
}
