package store

import (
	"context"
	"errors"

	"maildispatch/internal/models"

	"github.com/jackc/pgx/v5"
)

// RolloverMailboxes resets the daily counter of every mailbox whose last
// send happened on an earlier calendar day. Runs once per tick, before
// any eligibility read.
func (s *Store) RolloverMailboxes(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE mailboxes
		 SET emails_sent_today = 0
		 WHERE last_sent_at::date < CURRENT_DATE
		   AND emails_sent_today > 0`,
	)
	return err
}

// ReserveMailbox picks the active under-quota mailbox with the oldest
// last_sent_at (never-sent mailboxes carry the epoch and sort first) and
// stamps last_sent_at = now() inside the same transaction. The stamp is a
// reservation: it pushes the mailbox to the back of the rotation so a
// concurrent caller selects a different one. Returns (nil, nil) when no
// mailbox qualifies; callers treat that as a back-off, not an error.
func (s *Store) ReserveMailbox(ctx context.Context) (*models.Mailbox, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var m models.Mailbox
	err = tx.QueryRow(ctx,
		`SELECT id, email, password, host, port,
		        daily_limit, recipients_per_email, emails_sent_today,
		        last_sent_at, is_active
		 FROM mailboxes
		 WHERE is_active AND emails_sent_today < daily_limit
		 ORDER BY last_sent_at ASC, id ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
	).Scan(
		&m.ID, &m.Email, &m.Password, &m.Host, &m.Port,
		&m.DailyLimit, &m.RecipientsPerEmail, &m.EmailsSentToday,
		&m.LastSentAt, &m.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE mailboxes SET last_sent_at = NOW() WHERE id = $1`,
		m.ID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSend charges one physical send attempt against the mailbox.
// Called once per chunk whether the transport succeeded or not, since
// the attempt consumed the mailbox either way.
func (s *Store) RecordSend(ctx context.Context, mailboxID int64) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE mailboxes
		 SET emails_sent_today = emails_sent_today + 1,
		     last_sent_at = NOW()
		 WHERE id = $1`,
		mailboxID,
	)
	return err
}
