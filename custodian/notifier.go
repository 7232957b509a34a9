package custodian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediatorflow/dispute"
)

// Deliverer sends custodian requests. *Client satisfies it; tests swap in
// a fake.
type Deliverer interface {
	ValidateDispute(ctx context.Context, params ValidateParams) error
	ReleaseService(ctx context.Context, params ReleaseParams) error
}

// Notifier drains the transactional outbox and delivers each message to
// the custodian. Rows are claimed with SKIP LOCKED so multiple instances
// can run concurrently without double delivery.
type Notifier struct {
	pool        *pgxpool.Pool
	client      Deliverer
	interval    time.Duration
	maxAttempts int32
}

func NewNotifier(pool *pgxpool.Pool, client Deliverer) *Notifier {
	return &Notifier{
		pool:        pool,
		client:      client,
		interval:    2 * time.Second,
		maxAttempts: 10,
	}
}

func (n *Notifier) WithInterval(d time.Duration) *Notifier {
	n.interval = d
	return n
}

// Run drains the outbox until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		if _, err := n.DrainOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("custodian: drain outbox: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DrainOnce delivers pending messages until the queue is empty, returning
// how many it processed. A delivery failure bumps the attempt counter and
// leaves the row pending until maxAttempts, then parks it as failed.
func (n *Notifier) DrainOnce(ctx context.Context) (int, error) {
	processed := 0
	for {
		ok, err := n.deliverNext(ctx)
		if err != nil {
			return processed, err
		}
		if !ok {
			return processed, nil
		}
		processed++
	}
}

func (n *Notifier) deliverNext(ctx context.Context) (bool, error) {
	tx, err := n.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("custodian: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id       int64
		topic    string
		payload  []byte
		attempts int32
	)
	err = tx.QueryRow(ctx, `
		SELECT id, topic, payload, attempts
		FROM outbox
		WHERE status = 'pending'
		ORDER BY id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&id, &topic, &payload, &attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("custodian: claim outbox row: %w", err)
	}

	if deliverErr := n.dispatch(ctx, topic, payload); deliverErr != nil {
		status := "pending"
		if attempts+1 >= n.maxAttempts {
			status = "failed"
		}
		log.Printf("custodian: deliver outbox id=%d topic=%s attempt=%d: %v", id, topic, attempts+1, deliverErr)
		if _, err := tx.Exec(ctx, `
			UPDATE outbox SET attempts = attempts + 1, status = $2 WHERE id = $1
		`, id, status); err != nil {
			return false, fmt.Errorf("custodian: record failed attempt: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return false, fmt.Errorf("custodian: commit failed attempt: %w", err)
		}
		return true, nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE outbox SET status = 'sent', sent_at = now() WHERE id = $1
	`, id); err != nil {
		return false, fmt.Errorf("custodian: mark sent: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("custodian: commit delivery: %w", err)
	}
	return true, nil
}

func (n *Notifier) dispatch(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case dispute.TopicDisputeOpened:
		var params ValidateParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return fmt.Errorf("custodian: decode %s payload: %w", topic, err)
		}
		return n.client.ValidateDispute(ctx, params)
	case dispute.TopicReleaseRequested:
		var params ReleaseParams
		if err := json.Unmarshal(payload, &params); err != nil {
			return fmt.Errorf("custodian: decode %s payload: %w", topic, err)
		}
		return n.client.ReleaseService(ctx, params)
	default:
		return fmt.Errorf("custodian: unknown topic %q", topic)
	}
}
