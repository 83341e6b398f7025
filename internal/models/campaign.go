package models

import "time"

type CampaignStatus string

const (
	CampaignPending    CampaignStatus = "pending"
	CampaignInProgress CampaignStatus = "in_progress"
	CampaignCompleted  CampaignStatus = "completed"
)

type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

type Campaign struct {
	ID        int64          `json:"id"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	Status    CampaignStatus `json:"status"`
	SentCount int            `json:"sent_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recipient is one delivery record within a campaign. Status leaves
// pending exactly once, to sent or failed, and never comes back.
type Recipient struct {
	ID         int64           `json:"id"`
	CampaignID int64           `json:"campaign_id"`
	Email      string          `json:"email"`
	Name       string          `json:"name"`
	Status     RecipientStatus `json:"status"`
	ErrorMsg   string          `json:"error_msg,omitempty"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
}
