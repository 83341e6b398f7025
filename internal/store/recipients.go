package store

import (
	"context"
	"errors"

	"maildispatch/internal/models"

	"github.com/jackc/pgx/v5"
)

// Claim holds a batch of pending recipients locked inside an open
// transaction. The rows are invisible to concurrent claimers (SKIP
// LOCKED) until Commit or Release ends the transaction. Releasing rolls
// every status update back, so the recipients return to pending intact.
type Claim struct {
	tx         pgx.Tx
	recipients []models.Recipient
}

// ClaimPending locks up to limit pending recipients of the campaign.
// The returned claim may be empty; the caller must always end it with
// Commit or Release.
func (s *Store) ClaimPending(ctx context.Context, campaignID int64, limit int) (*Claim, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		`SELECT id, campaign_id, email, name
		 FROM campaign_recipients
		 WHERE campaign_id = $1 AND status = $2
		 ORDER BY id ASC
		 LIMIT $3
		 FOR UPDATE SKIP LOCKED`,
		campaignID,
		models.RecipientPending,
		limit,
	)
	if err != nil {
		tx.Rollback(ctx)
		return nil, err
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		r := models.Recipient{Status: models.RecipientPending}
		if err := rows.Scan(&r.ID, &r.CampaignID, &r.Email, &r.Name); err != nil {
			tx.Rollback(ctx)
			return nil, err
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		tx.Rollback(ctx)
		return nil, err
	}

	return &Claim{tx: tx, recipients: recipients}, nil
}

func (c *Claim) Recipients() []models.Recipient {
	return c.recipients
}

// MarkSent records a successful delivery for the given claimed rows.
func (c *Claim) MarkSent(ctx context.Context, ids []int64) error {
	_, err := c.tx.Exec(ctx,
		`UPDATE campaign_recipients
		 SET status = $1, sent_at = NOW(), error_msg = NULL
		 WHERE id = ANY($2)`,
		models.RecipientSent,
		ids,
	)
	return err
}

// MarkFailed records a failed delivery with the transport's error text.
// Failed rows are not re-queued by this engine.
func (c *Claim) MarkFailed(ctx context.Context, ids []int64, errMsg string) error {
	_, err := c.tx.Exec(ctx,
		`UPDATE campaign_recipients
		 SET status = $1, error_msg = $2
		 WHERE id = ANY($3)`,
		models.RecipientFailed,
		errMsg,
		ids,
	)
	return err
}

// AddSentCount bumps the campaign's monotonic delivered counter.
func (c *Claim) AddSentCount(ctx context.Context, campaignID int64, n int) error {
	_, err := c.tx.Exec(ctx,
		`UPDATE campaigns
		 SET sent_count = sent_count + $1, updated_at = NOW()
		 WHERE id = $2`,
		n,
		campaignID,
	)
	return err
}

// Commit publishes the recorded outcomes and releases the row locks.
func (c *Claim) Commit(ctx context.Context) error {
	return c.tx.Commit(ctx)
}

// Release rolls the claim back, returning untouched rows to the pool of
// pending work. Safe to call after Commit.
func (c *Claim) Release(ctx context.Context) error {
	err := c.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
