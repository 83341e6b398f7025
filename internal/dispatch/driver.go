package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"maildispatch/internal/metrics"
	"maildispatch/internal/models"
)

// Driver runs one tick of the outer campaign loop: rollover mailbox
// quotas, then give each open campaign (oldest first) one dispatch pass.
// Safe to invoke concurrently from overlapping ticks; all contention is
// resolved by row locks in the store.
type Driver struct {
	Store  Store
	Sender *Sender
	Log    *zap.Logger
}

func NewDriver(store Store, sender *Sender, log *zap.Logger) *Driver {
	return &Driver{Store: store, Sender: sender, Log: log}
}

// Tick processes at most one slice per open campaign. It ends early when
// every mailbox is out of quota, since further passes could not send
// either. An error from the store before any campaign work is fatal for
// the tick; an error inside one campaign's pass is logged and the loop
// continues with the next campaign.
func (d *Driver) Tick(ctx context.Context) error {
	d.Log.Info("tick started")

	if err := d.Store.RolloverMailboxes(ctx); err != nil {
		return err
	}

	campaigns, err := d.Store.OpenCampaigns(ctx)
	if err != nil {
		return err
	}

	for i := range campaigns {
		c := &campaigns[i]

		result, err := d.runPass(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			d.Log.Error("campaign pass failed",
				zap.Int64("campaign_id", c.ID),
				zap.Error(err),
			)
			continue
		}

		switch result {
		case PassDrained:
			if err := d.Store.CompleteCampaign(ctx, c.ID); err != nil {
				d.Log.Error("failed to complete campaign",
					zap.Int64("campaign_id", c.ID),
					zap.Error(err),
				)
				continue
			}
			metrics.CampaignsCompleted.Inc()
			d.Log.Info("campaign completed", zap.Int64("campaign_id", c.ID))

		case PassBlocked:
			metrics.CapacityExhausted.Inc()
			d.Log.Info("no mailbox capacity left, ending tick",
				zap.Int64("campaign_id", c.ID),
			)
			metrics.TicksTotal.Inc()
			return nil

		case PassNoWork:
			d.Log.Info("pending recipients held by a concurrent pass",
				zap.Int64("campaign_id", c.ID),
			)

		case PassSent:
			d.Log.Info("campaign pass finished",
				zap.Int64("campaign_id", c.ID),
				zap.Int("sent_count", c.SentCount),
			)
		}
	}

	metrics.TicksTotal.Inc()
	d.Log.Info("tick finished", zap.Int("campaigns", len(campaigns)))
	return nil
}

// runPass converts a panic inside one campaign's pass into an error, so
// a single misbehaving campaign cannot take down the rest of the tick.
func (d *Driver) runPass(ctx context.Context, c *models.Campaign) (result PassResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("campaign pass panicked: %v", r)
		}
	}()
	return d.Sender.DispatchPass(ctx, c)
}
