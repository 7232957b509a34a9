package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_vote_quota",
			SQL: `SELECT dispute_id, COUNT(*) FROM dispute_votes
                  GROUP BY dispute_id HAVING COUNT(*) > 50`,
		},
		{
			Name: "O2_winner_iff_finished",
			SQL: `SELECT id, status, winner FROM disputes
                  WHERE (winner IS NOT NULL) <> (status = 'finished')`,
		},
		{
			Name: "O3_winner_is_party",
			SQL: `SELECT id, winner FROM disputes
                  WHERE winner IS NOT NULL AND winner NOT IN (applicant, accused)`,
		},
		{
			Name: "O4_single_pending_token",
			SQL: `SELECT dispute_id, purpose, COUNT(*) FROM callback_tokens
                  WHERE status = 'pending'
                  GROUP BY dispute_id, purpose HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_release_exactly_once",
			SQL: `SELECT d.id FROM disputes d
                  WHERE d.status = 'finished'
                    AND (SELECT COUNT(*) FROM outbox o
                         WHERE o.topic = 'dispute.release_requested'
                           AND (o.payload->>'dispute_id')::bigint = d.id) <> 1`,
		},
		{
			Name: "O6_no_release_before_finish",
			SQL: `SELECT o.id FROM outbox o
                  JOIN disputes d ON d.id = (o.payload->>'dispute_id')::bigint
                  WHERE o.topic = 'dispute.release_requested' AND d.status <> 'finished'`,
		},
		{
			Name: "O7_ids_below_counter",
			SQL: `SELECT d.id FROM disputes d
                  WHERE d.id >= (SELECT next_id FROM dispute_counter)`,
		},
		{
			Name: "O8_votes_after_creation",
			SQL: `SELECT v.dispute_id, v.voter_id FROM dispute_votes v
                  JOIN disputes d ON d.id = v.dispute_id
                  WHERE v.cast_at < d.created_at`,
		},
		{
			Name: "O9_confirmation_only_when_finished",
			SQL: `SELECT id FROM disputes
                  WHERE release_confirmed_at IS NOT NULL AND status <> 'finished'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
