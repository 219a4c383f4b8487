package usecase

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aq2208/storefront-api/internal/logging"
)

const maxRelayBackoff = 5 * time.Minute

// RelayOutbox drains pending outbox rows to the broker. Delivery is
// at-least-once; consumers dedupe.
type RelayOutbox struct {
	out   OutboxRepo
	pub   EventPublisher
	batch int
	log   *slog.Logger
	now   func() time.Time
}

func NewRelayOutbox(out OutboxRepo, pub EventPublisher, batch int) *RelayOutbox {
	if batch <= 0 {
		batch = 100
	}
	return &RelayOutbox{out: out, pub: pub, batch: batch, log: logging.New("outbox-relay"), now: time.Now}
}

// Run polls every interval until ctx is done.
func (r *RelayOutbox) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("outbox relay", "err", err)
			}
		}
	}
}

// RunOnce publishes one batch and returns how many rows were sent.
func (r *RelayOutbox) RunOnce(ctx context.Context) (int, error) {
	msgs, err := r.out.FetchPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, m := range msgs {
		if err := r.pub.Publish(ctx, m.Channel, strconv.FormatInt(m.ID, 10), m.Payload); err != nil {
			next := r.now().Add(backoff(m.RetryCount))
			r.log.Warn("publish outbox message", "err", err, "id", m.ID, "channel", m.Channel, "retry", m.RetryCount)
			if merr := r.out.MarkFailed(ctx, m.ID, next); merr != nil {
				r.log.Error("mark outbox failed", "err", merr, "id", m.ID)
			}
			continue
		}
		if err := r.out.MarkSent(ctx, m.ID); err != nil {
			// published but not marked: it will be sent again
			r.log.Error("mark outbox sent", "err", err, "id", m.ID)
			continue
		}
		sent++
	}
	return sent, nil
}

func backoff(retry int) time.Duration {
	if retry > 8 {
		return maxRelayBackoff
	}
	d := time.Second << retry
	if d > maxRelayBackoff {
		return maxRelayBackoff
	}
	return d
}
