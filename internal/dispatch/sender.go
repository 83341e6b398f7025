package dispatch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"maildispatch/internal/mailer"
	"maildispatch/internal/metrics"
	"maildispatch/internal/models"
)

// PassResult reports what a single dispatch pass accomplished.
type PassResult int

const (
	// PassSent means at least one chunk was attempted.
	PassSent PassResult = iota
	// PassNoWork means pending rows exist but a concurrent pass holds
	// them all; try again next tick.
	PassNoWork
	// PassBlocked means no mailbox has quota left; the tick should end.
	PassBlocked
	// PassDrained means the campaign has no pending recipients left.
	PassDrained
)

// Claim is a batch of pending recipients locked by one pass. Outcome
// updates stay invisible to other passes until Commit; Release returns
// the rows to pending untouched.
type Claim interface {
	Recipients() []models.Recipient
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, ids []int64, errMsg string) error
	AddSentCount(ctx context.Context, campaignID int64, n int) error
	Commit(ctx context.Context) error
	Release(ctx context.Context) error
}

// Store defines the durable-state operations the dispatch layer needs.
type Store interface {
	RolloverMailboxes(ctx context.Context) error
	OpenCampaigns(ctx context.Context) ([]models.Campaign, error)
	PendingCount(ctx context.Context, campaignID int64) (int, error)
	ClaimPending(ctx context.Context, campaignID int64, limit int) (Claim, error)
	ReserveMailbox(ctx context.Context) (*models.Mailbox, error)
	RecordSend(ctx context.Context, mailboxID int64) error
	MarkCampaignInProgress(ctx context.Context, id int64) error
	CompleteCampaign(ctx context.Context, id int64) error
}

// Transport sends one composed message to a bounded set of recipients
// through the given mailbox and reports success or failure.
type Transport interface {
	Send(ctx context.Context, mbox *models.Mailbox, recipients []models.Recipient, subject, body string) error
}

// Sender drains one bounded slice of a campaign's pending recipients per
// pass, chunked to the reserved mailbox's per-message recipient cap.
type Sender struct {
	Store     Store
	Transport Transport
	Limiter   *rate.Limiter
	BatchSize int
	Log       *zap.Logger
}

func NewSender(store Store, transport Transport, limiter *rate.Limiter, batchSize int, log *zap.Logger) *Sender {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sender{
		Store:     store,
		Transport: transport,
		Limiter:   limiter,
		BatchSize: batchSize,
		Log:       log,
	}
}

// DispatchPass claims a slice of pending recipients, reserves a mailbox
// and sends the slice in per-message chunks. Each chunk is independent:
// a transport failure marks its recipients failed and the pass moves on.
// The claim commits only after every chunk's outcome is recorded, so a
// crash mid-pass rolls everything back to pending.
func (s *Sender) DispatchPass(ctx context.Context, campaign *models.Campaign) (PassResult, error) {
	claim, err := s.Store.ClaimPending(ctx, campaign.ID, s.BatchSize)
	if err != nil {
		return PassNoWork, err
	}
	// Releasing after a commit is a no-op, so the claim is never leaked,
	// even when a transport call panics mid-pass.
	defer s.release(ctx, claim)

	recipients := claim.Recipients()
	if len(recipients) == 0 {
		remaining, err := s.Store.PendingCount(ctx, campaign.ID)
		if err != nil {
			return PassNoWork, err
		}
		if remaining == 0 {
			return PassDrained, nil
		}
		return PassNoWork, nil
	}

	mbox, err := s.Store.ReserveMailbox(ctx)
	if err != nil {
		return PassNoWork, err
	}
	if mbox == nil {
		return PassBlocked, nil
	}

	s.Log.Info("mailbox reserved",
		zap.Int64("campaign_id", campaign.ID),
		zap.Int64("mailbox_id", mbox.ID),
		zap.String("mailbox", mbox.Email),
		zap.Int("claimed", len(recipients)),
	)

	perEmail := mbox.RecipientsPerEmail
	if perEmail < 1 {
		perEmail = 1
	}

	// Reservation checked eligibility, not how much quota is left. Cap
	// the slice so the pass never records more attempts than the mailbox
	// has remaining today; rows beyond the cap stay untouched and return
	// to pending when the claim commits.
	quota := mbox.DailyLimit - mbox.EmailsSentToday
	if quota < 1 {
		return PassBlocked, nil
	}
	if budget := quota * perEmail; len(recipients) > budget {
		s.Log.Info("clamping slice to remaining mailbox quota",
			zap.Int64("mailbox_id", mbox.ID),
			zap.Int("quota", quota),
			zap.Int("claimed", len(recipients)),
			zap.Int("budget", budget),
		)
		recipients = recipients[:budget]
	}

	body := mailer.RenderBody(campaign.Body)

	for _, chunk := range chunkRecipients(recipients, perEmail) {
		if err := s.Limiter.Wait(ctx); err != nil {
			return PassNoWork, err
		}

		ids := recipientIDs(chunk)
		sendErr := s.Transport.Send(ctx, mbox, chunk, campaign.Subject, body)
		metrics.SendAttempts.Inc()

		if sendErr != nil {
			s.Log.Warn("chunk send failed",
				zap.Int64("campaign_id", campaign.ID),
				zap.Int64("mailbox_id", mbox.ID),
				zap.Int("recipients", len(chunk)),
				zap.Error(sendErr),
			)
			if err := claim.MarkFailed(ctx, ids, sendErr.Error()); err != nil {
				return PassNoWork, err
			}
			metrics.RecipientsFailed.Add(float64(len(chunk)))
		} else {
			s.Log.Info("chunk sent",
				zap.Int64("campaign_id", campaign.ID),
				zap.Int64("mailbox_id", mbox.ID),
				zap.Int("recipients", len(chunk)),
			)
			if err := claim.MarkSent(ctx, ids); err != nil {
				return PassNoWork, err
			}
			if err := claim.AddSentCount(ctx, campaign.ID, len(chunk)); err != nil {
				return PassNoWork, err
			}
			metrics.RecipientsSent.Add(float64(len(chunk)))
		}

		// The attempt consumed the mailbox whether or not it succeeded.
		if err := s.Store.RecordSend(ctx, mbox.ID); err != nil {
			s.Log.Error("failed to record send against mailbox",
				zap.Int64("mailbox_id", mbox.ID),
				zap.Error(err),
			)
		}
	}

	if err := claim.Commit(ctx); err != nil {
		return PassNoWork, err
	}

	if campaign.Status == models.CampaignPending {
		if err := s.Store.MarkCampaignInProgress(ctx, campaign.ID); err != nil {
			return PassSent, err
		}
		campaign.Status = models.CampaignInProgress
	}

	return PassSent, nil
}

// release rolls a claim back and logs a failure instead of surfacing
// it: the locked rows free themselves anyway once the connection dies,
// and the pass's own result matters more to the caller.
func (s *Sender) release(ctx context.Context, claim Claim) {
	if err := claim.Release(ctx); err != nil {
		s.Log.Error("failed to release recipient claim", zap.Error(err))
	}
}

// chunkRecipients partitions the slice into consecutive chunks of at
// most size recipients each.
func chunkRecipients(recipients []models.Recipient, size int) [][]models.Recipient {
	if size < 1 {
		size = 1
	}
	var chunks [][]models.Recipient
	for start := 0; start < len(recipients); start += size {
		end := start + size
		if end > len(recipients) {
			end = len(recipients)
		}
		chunks = append(chunks, recipients[start:end])
	}
	return chunks
}

func recipientIDs(recipients []models.Recipient) []int64 {
	ids := make([]int64, len(recipients))
	for i, r := range recipients {
		ids[i] = r.ID
	}
	return ids
}
