package store

import (
	"context"
	"fmt"
	"time"

	"maildispatch/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

// New opens a connection pool and verifies the database is reachable,
// retrying the ping with exponential backoff for up to connectTimeout.
func New(ctx context.Context, conn string, connectTimeout time.Duration) (*Store, error) {
	pool, err := pgxpool.New(ctx, conn)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = connectTimeout

	if err := backoff.Retry(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(b, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// OpenCampaigns returns pending and in-progress campaigns oldest first,
// so older campaigns drain before newer ones get capacity.
func (s *Store) OpenCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, subject, body, status, sent_count, created_at, updated_at
		 FROM campaigns
		 WHERE status IN ($1, $2)
		 ORDER BY created_at ASC, id ASC`,
		models.CampaignPending,
		models.CampaignInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Subject, &c.Body, &c.Status, &c.SentCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// MarkCampaignInProgress moves a campaign from pending to in_progress.
// The status guard in SQL makes the transition a no-op for any other state.
func (s *Store) MarkCampaignInProgress(ctx context.Context, id int64) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE campaigns
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3`,
		models.CampaignInProgress,
		id,
		models.CampaignPending,
	)
	return err
}

// CompleteCampaign is terminal; a completed campaign never reopens.
func (s *Store) CompleteCampaign(ctx context.Context, id int64) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE campaigns
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status IN ($3, $4)`,
		models.CampaignCompleted,
		id,
		models.CampaignPending,
		models.CampaignInProgress,
	)
	return err
}

// PendingCount reports how many recipients of the campaign are still
// pending, including rows currently claimed by an uncommitted pass.
func (s *Store) PendingCount(ctx context.Context, campaignID int64) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM campaign_recipients
		 WHERE campaign_id = $1 AND status = $2`,
		campaignID,
		models.RecipientPending,
	).Scan(&n)
	return n, err
}
