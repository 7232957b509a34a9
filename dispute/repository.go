package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no dispute row exists for the identifier.
var ErrNotFound = errors.New("dispute: not found")

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so reads
// can run either inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextID allocates the next dispute identifier from the persistent counter.
// The counter only ever moves forward, so identifiers are never reused.
func (r *Repository) NextID(ctx context.Context, tx pgx.Tx) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `UPDATE dispute_counter SET next_id = next_id + 1 RETURNING next_id - 1`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("dispute: allocate id: %w", err)
	}
	return id, nil
}

// TotalDisputes reads the counter value, which equals the number of
// disputes ever created.
func (r *Repository) TotalDisputes(ctx context.Context) (int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT next_id FROM dispute_counter`).Scan(&total); err != nil {
		return 0, fmt.Errorf("dispute: read counter: %w", err)
	}
	return total, nil
}

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, d Dispute) error {
	const query = `
		INSERT INTO disputes (id, service_ref, status, applicant, accused, applicant_evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query, d.ID, d.ServiceRef, string(d.Status), d.Applicant, d.Accused, d.ApplicantEvidence, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute: insert: %w", err)
	}
	return nil
}

// Get returns the last-persisted state without locking or re-evaluation.
func (r *Repository) Get(ctx context.Context, id int64) (Dispute, error) {
	return r.get(ctx, r.pool, id, "")
}

// GetForUpdate loads a dispute and takes the row lock that serializes all
// mutating operations on it.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (Dispute, error) {
	return r.get(ctx, tx, id, " FOR UPDATE")
}

func (r *Repository) get(ctx context.Context, q querier, id int64, suffix string) (Dispute, error) {
	query := `
		SELECT id, service_ref, status::text, applicant, accused, winner,
		       applicant_evidence, accused_evidence, created_at, reopened_at,
		       finished_at, release_confirmed_at, updated_at
		FROM disputes
		WHERE id = $1` + suffix

	var d Dispute
	err := q.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ServiceRef, &d.Status, &d.Applicant, &d.Accused, &d.Winner,
		&d.ApplicantEvidence, &d.AccusedEvidence, &d.CreatedAt, &d.ReopenedAt,
		&d.FinishedAt, &d.ReleaseConfirmedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: get: %w", err)
	}

	votes, err := r.loadVotes(ctx, q, id)
	if err != nil {
		return Dispute{}, err
	}
	d.Votes = votes
	return d, nil
}

func (r *Repository) loadVotes(ctx context.Context, q querier, id int64) ([]Vote, error) {
	rows, err := q.Query(ctx, `
		SELECT voter_id, decision, cast_at
		FROM dispute_votes
		WHERE dispute_id = $1
		ORDER BY cast_at, voter_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("dispute: load votes: %w", err)
	}
	defer rows.Close()

	votes := make([]Vote, 0, 8)
	for rows.Next() {
		var v Vote
		if err := rows.Scan(&v.VoterID, &v.Decision, &v.CastAt); err != nil {
			return nil, fmt.Errorf("dispute: scan vote: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate votes: %w", err)
	}
	return votes, nil
}

// Save persists the mutable columns after an evaluation or operation.
func (r *Repository) Save(ctx context.Context, tx pgx.Tx, d Dispute) error {
	const query = `
		UPDATE disputes
		SET status = $2,
		    winner = $3,
		    accused_evidence = $4,
		    reopened_at = $5,
		    finished_at = $6,
		    updated_at = now()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, d.ID, string(d.Status), d.Winner, d.AccusedEvidence, d.ReopenedAt, d.FinishedAt)
	if err != nil {
		return fmt.Errorf("dispute: save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertVote records a juror decision. It reports false when the voter
// already appears in the set, detecting duplicates atomically.
func (r *Repository) InsertVote(ctx context.Context, tx pgx.Tx, disputeID int64, v Vote) (bool, error) {
	const query = `
		INSERT INTO dispute_votes (dispute_id, voter_id, decision, cast_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (dispute_id, voter_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query, disputeID, v.VoterID, v.Decision, v.CastAt)
	if err != nil {
		return false, fmt.Errorf("dispute: insert vote: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IssueToken stores a single-use correlation token for an outbound async
// request. A partial unique index keeps at most one pending token per
// dispute and purpose.
func (r *Repository) IssueToken(ctx context.Context, tx pgx.Tx, tokenID string, disputeID int64, purpose string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO callback_tokens (id, dispute_id, purpose)
		VALUES ($1, $2, $3)
	`, tokenID, disputeID, purpose)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("dispute: pending %s request already exists for dispute %d", purpose, disputeID)
		}
		return fmt.Errorf("dispute: issue token: %w", err)
	}
	return nil
}

// ConsumeToken spends a pending correlation token and returns the dispute
// it belongs to. The conditional update makes consumption succeed at most
// once; a second presentation finds no pending row.
func (r *Repository) ConsumeToken(ctx context.Context, tx pgx.Tx, tokenID, purpose string) (int64, error) {
	var disputeID int64
	err := tx.QueryRow(ctx, `
		UPDATE callback_tokens
		SET status = 'consumed', consumed_at = now()
		WHERE id = $1 AND purpose = $2 AND status = 'pending'
		RETURNING dispute_id
	`, tokenID, purpose).Scan(&disputeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUnauthorized
		}
		return 0, fmt.Errorf("dispute: consume token: %w", err)
	}
	return disputeID, nil
}

// MarkReleaseConfirmed records the custodian's confirmation timestamp.
func (r *Repository) MarkReleaseConfirmed(ctx context.Context, tx pgx.Tx, disputeID int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE disputes
		SET release_confirmed_at = now(), updated_at = now()
		WHERE id = $1 AND release_confirmed_at IS NULL
	`, disputeID)
	if err != nil {
		return fmt.Errorf("dispute: mark release confirmed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dispute: release already confirmed for dispute %d", disputeID)
	}
	return nil
}

// EnqueueOutbox appends a message for the custodian notifier inside the
// caller's transaction.
func (r *Repository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispute: marshal outbox payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("dispute: enqueue outbox: %w", err)
	}
	return nil
}
