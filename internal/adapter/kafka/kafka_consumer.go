package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
)

// ErrPermanent marks a handler error that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// HandlerFunc processes a decoded event.
type HandlerFunc func(ctx context.Context, ev usecase.PaymentEvent) error

// Consumer consumes payment event topics with a single handler.
type Consumer struct {
	Group    sarama.ConsumerGroup
	Topics   []string
	Handle   HandlerFunc
	Attempts int           // per message, before it is skipped
	Backoff  time.Duration // between attempts, doubled each time
	Logger   *slog.Logger
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:    group,
		Topics:   topics,
		Handle:   h,
		Attempts: 5,
		Backoff:  200 * time.Millisecond,
		Logger:   logging.New("kafka-consumer"),
	}
}

// Start blocks until ctx is cancelled or the group fails.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.Group.Errors() {
			c.Logger.Error("consumer group error", "err", err)
		}
	}()
	handler := &cgHandler{c: c}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// When Consume returns, it’s because ctx was cancelled or a rebalance happened.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler struct {
	c *Consumer
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles messages in partition order. A failing message is
// retried in place so later offsets are never committed past it; after the
// last attempt it is logged and skipped.
func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		l := h.c.Logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

		var ev usecase.PaymentEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			l.Error("kafka decode error", "err", err)
			// mark to avoid reprocessing poison
			sess.MarkMessage(msg, "decode-error")
			continue
		}
		if err := h.process(sess.Context(), ev); err != nil {
			if sess.Context().Err() != nil {
				return nil // rebalance or shutdown; redelivered to the next owner
			}
			l.Error("payment event skipped", "event_id", ev.ID, "err", err)
			sess.MarkMessage(msg, "skipped")
			continue
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func (h *cgHandler) process(ctx context.Context, ev usecase.PaymentEvent) error {
	wait := h.c.Backoff
	var err error
	for attempt := 1; attempt <= h.c.Attempts; attempt++ {
		if err = h.c.Handle(ctx, ev); err == nil || errors.Is(err, ErrPermanent) {
			return err
		}
		if attempt == h.c.Attempts {
			break
		}
		h.c.Logger.Warn("payment event retry", "event_id", ev.ID, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
