package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"maildispatch/internal/models"
)

// fakeStore mimics the durable store's locking behavior in memory:
// claimed rows are invisible to other claimers until the claim commits
// or releases, and releasing discards staged outcomes.
type fakeStore struct {
	mu         sync.Mutex
	campaigns  map[int64]*models.Campaign
	recipients []*fakeRecipient
	mailboxes  []*models.Mailbox

	claimErrs  map[int64]error
	claimCalls map[int64]int
	claimOrder []int64
	releaseErr error
	rollovers  int
}

type fakeRecipient struct {
	models.Recipient
	claimed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns:  make(map[int64]*models.Campaign),
		claimErrs:  make(map[int64]error),
		claimCalls: make(map[int64]int),
	}
}

func (s *fakeStore) addCampaign(id int64, createdAt time.Time, pendingRecipients int) *models.Campaign {
	c := &models.Campaign{
		ID:        id,
		Subject:   "hello",
		Body:      "<p>body</p>",
		Status:    models.CampaignPending,
		CreatedAt: createdAt,
	}
	s.campaigns[id] = c
	for i := 0; i < pendingRecipients; i++ {
		rid := id*100000 + int64(i) + 1
		s.recipients = append(s.recipients, &fakeRecipient{
			Recipient: models.Recipient{
				ID:         rid,
				CampaignID: id,
				Email:      recipientEmail(rid),
				Status:     models.RecipientPending,
			},
		})
	}
	return c
}

func recipientEmail(id int64) string {
	return fmt.Sprintf("r%d@example.com", id)
}

func (s *fakeStore) addMailbox(id int64, dailyLimit, perEmail int, lastSentAt time.Time, sentToday int) *models.Mailbox {
	m := &models.Mailbox{
		ID:                 id,
		Email:              "sender@example.com",
		Host:               "localhost",
		Port:               1025,
		DailyLimit:         dailyLimit,
		RecipientsPerEmail: perEmail,
		EmailsSentToday:    sentToday,
		LastSentAt:         lastSentAt,
		IsActive:           true,
	}
	s.mailboxes = append(s.mailboxes, m)
	return m
}

func (s *fakeStore) RolloverMailboxes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollovers++

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, m := range s.mailboxes {
		if m.EmailsSentToday > 0 && m.LastSentAt.Before(midnight) {
			m.EmailsSentToday = 0
		}
	}
	return nil
}

func (s *fakeStore) OpenCampaigns(ctx context.Context) ([]models.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Campaign
	for _, c := range s.campaigns {
		if c.Status == models.CampaignPending || c.Status == models.CampaignInProgress {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fakeStore) PendingCount(ctx context.Context, campaignID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.recipients {
		if r.CampaignID == campaignID && r.Status == models.RecipientPending {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ClaimPending(ctx context.Context, campaignID int64, limit int) (Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.claimCalls[campaignID]++
	s.claimOrder = append(s.claimOrder, campaignID)
	if err := s.claimErrs[campaignID]; err != nil {
		return nil, err
	}

	claim := &fakeClaim{
		store:  s,
		staged: make(map[int64]stagedOutcome),
		deltas: make(map[int64]int),
	}
	for _, r := range s.recipients {
		if len(claim.rows) == limit {
			break
		}
		if r.CampaignID == campaignID && r.Status == models.RecipientPending && !r.claimed {
			r.claimed = true
			claim.rows = append(claim.rows, r)
			claim.snapshot = append(claim.snapshot, r.Recipient)
		}
	}
	return claim, nil
}

func (s *fakeStore) ReserveMailbox(ctx context.Context) (*models.Mailbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *models.Mailbox
	for _, m := range s.mailboxes {
		if !m.IsActive || m.EmailsSentToday >= m.DailyLimit {
			continue
		}
		if best == nil || m.LastSentAt.Before(best.LastSentAt) ||
			(m.LastSentAt.Equal(best.LastSentAt) && m.ID < best.ID) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	best.LastSentAt = time.Now()
	copied := *best
	return &copied, nil
}

func (s *fakeStore) RecordSend(ctx context.Context, mailboxID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.mailboxes {
		if m.ID == mailboxID {
			m.EmailsSentToday++
			m.LastSentAt = time.Now()
		}
	}
	return nil
}

func (s *fakeStore) MarkCampaignInProgress(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.campaigns[id]; ok && c.Status == models.CampaignPending {
		c.Status = models.CampaignInProgress
	}
	return nil
}

func (s *fakeStore) CompleteCampaign(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.campaigns[id]; ok && c.Status != models.CampaignCompleted {
		c.Status = models.CampaignCompleted
	}
	return nil
}

func (s *fakeStore) recipientStatuses(campaignID int64) map[models.RecipientStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.RecipientStatus]int)
	for _, r := range s.recipients {
		if r.CampaignID == campaignID {
			counts[r.Status]++
		}
	}
	return counts
}

type stagedOutcome struct {
	status models.RecipientStatus
	errMsg string
}

type fakeClaim struct {
	store    *fakeStore
	rows     []*fakeRecipient
	snapshot []models.Recipient
	staged   map[int64]stagedOutcome
	deltas   map[int64]int
	done     bool
}

func (c *fakeClaim) Recipients() []models.Recipient {
	return c.snapshot
}

func (c *fakeClaim) MarkSent(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		c.staged[id] = stagedOutcome{status: models.RecipientSent}
	}
	return nil
}

func (c *fakeClaim) MarkFailed(ctx context.Context, ids []int64, errMsg string) error {
	for _, id := range ids {
		c.staged[id] = stagedOutcome{status: models.RecipientFailed, errMsg: errMsg}
	}
	return nil
}

func (c *fakeClaim) AddSentCount(ctx context.Context, campaignID int64, n int) error {
	c.deltas[campaignID] += n
	return nil
}

func (c *fakeClaim) Commit(ctx context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.done {
		return nil
	}
	c.done = true

	now := time.Now()
	for _, r := range c.rows {
		r.claimed = false
		if outcome, ok := c.staged[r.ID]; ok {
			r.Status = outcome.status
			r.ErrorMsg = outcome.errMsg
			if outcome.status == models.RecipientSent {
				sentAt := now
				r.SentAt = &sentAt
			}
		}
	}
	for id, n := range c.deltas {
		if campaign, ok := c.store.campaigns[id]; ok {
			campaign.SentCount += n
		}
	}
	return nil
}

func (c *fakeClaim) Release(ctx context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if c.done {
		return nil
	}
	c.done = true

	for _, r := range c.rows {
		r.claimed = false
	}
	return c.store.releaseErr
}

// fakeTransport records every physical send and can be told to fail.
type fakeTransport struct {
	mu       sync.Mutex
	calls    [][]string
	failWith error
	perAddr  map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{perAddr: make(map[string]int)}
}

func (t *fakeTransport) Send(ctx context.Context, mbox *models.Mailbox, recipients []models.Recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	addrs := make([]string, len(recipients))
	for i, r := range recipients {
		addrs[i] = r.Email
		t.perAddr[r.Email]++
	}
	t.calls = append(t.calls, addrs)

	return t.failWith
}

func (t *fakeTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

func (t *fakeTransport) largestChunk() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	max := 0
	for _, call := range t.calls {
		if len(call) > max {
			max = len(call)
		}
	}
	return max
}
