package models

import "time"

// Mailbox is an outbound sending identity. EmailsSentToday and LastSentAt
// are owned by the mailbox scheduler and must only change under a row lock.
// A mailbox that has never sent carries the epoch timestamp in LastSentAt,
// which makes it sort first when the scheduler rotates by oldest send.
type Mailbox struct {
	ID                 int64  `json:"id"`
	Email              string `json:"email"`
	Password           string `json:"-"`
	Host               string `json:"host"`
	Port               int    `json:"port"`
	DailyLimit         int    `json:"daily_limit"`
	RecipientsPerEmail int    `json:"recipients_per_email"`
	EmailsSentToday    int    `json:"emails_sent_today"`

	LastSentAt time.Time `json:"last_sent_at"`
	IsActive   bool      `json:"is_active"`
}
