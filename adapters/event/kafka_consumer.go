package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. A returned error makes the consumer retry.
type Handler func(ctx context.Context, msg kafka.Message) error

// GiveUpFunc sees a message the consumer stopped retrying, with the last error.
type GiveUpFunc func(ctx context.Context, msg kafka.Message, err error)

type Consumer struct {
	reader      MessageReader
	handle      Handler
	giveUp      GiveUpFunc
	log         logger.Logger
	maxAttempts int
	backoff     time.Duration
}

const (
	defaultMaxAttempts = 5
	defaultBackoff     = 2 * time.Second
)

func NewKafkaReader(cfg config.Config, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    topic,
		GroupID:  cfg.Kafka.GroupID + "-" + topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

// NewConsumer retries a failing message up to maxAttempts times, waiting
// backoff between tries, then commits it and moves on. Zero values pick the
// defaults.
func NewConsumer(r MessageReader, h Handler, log logger.Logger, maxAttempts int, backoff time.Duration) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &Consumer{reader: r, handle: h, log: log, maxAttempts: maxAttempts, backoff: backoff}
}

// OnGiveUp registers f to run before an exhausted message is committed.
func (c *Consumer) OnGiveUp(f GiveUpFunc) *Consumer {
	c.giveUp = f
	return c
}

// Run blocks until ctx is cancelled. Messages are committed only after the
// handler returned or gave up.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("Failed to read message from Kafka", err)
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		log := c.log.With(zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
		if !c.process(ctx, log, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
			log.Error("Failed to commit message", err)
		}
	}
}

// process reports false when ctx was cancelled before the message finished.
func (c *Consumer) process(ctx context.Context, log logger.Logger, msg kafka.Message) bool {
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		if attempt >= c.maxAttempts {
			log.Error("Giving up on message", err, zap.Int("attempts", attempt))
			if c.giveUp != nil {
				c.giveUp(ctx, msg, err)
			}
			return true
		}
		log.Warn("Message handler failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if !c.sleep(ctx) {
			return false
		}
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

type UploadProcessor interface {
	Execute(ctx context.Context, payload service.UploadEventPayload) error
}

type UploadAbandoner interface {
	Abandon(ctx context.Context, payload service.UploadEventPayload, cause error)
}

type ProfileIndexer interface {
	Execute(ctx context.Context, payload service.ProfileEventPayload) error
}

// UploadEventHandler decodes upload.events messages. Undecodable messages are
// logged and skipped.
func UploadEventHandler(p UploadProcessor, log logger.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload service.UploadEventPayload
		if !decode(msg, &payload, log) {
			return nil
		}
		if payload.EventType != service.UploadEventTypeStored {
			log.Warn("Ignoring unknown upload event", zap.String("event_type", payload.EventType))
			return nil
		}
		log.Info("Processing upload event", zap.String("run_id", payload.RunID.String()))
		return p.Execute(ctx, payload)
	}
}

// UploadEventGiveUp hands an exhausted upload.stored event to a.
func UploadEventGiveUp(a UploadAbandoner, log logger.Logger) GiveUpFunc {
	return func(ctx context.Context, msg kafka.Message, err error) {
		var payload service.UploadEventPayload
		if !decode(msg, &payload, log) || payload.EventType != service.UploadEventTypeStored {
			return
		}
		a.Abandon(ctx, payload, err)
	}
}

func ProfileEventHandler(idx ProfileIndexer, log logger.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var payload service.ProfileEventPayload
		if !decode(msg, &payload, log) {
			return nil
		}
		if payload.EventType != service.ProfileEventTypeDirty {
			log.Warn("Ignoring unknown profile event", zap.String("event_type", payload.EventType))
			return nil
		}
		return idx.Execute(ctx, payload)
	}
}

func decode(msg kafka.Message, v any, log logger.Logger) bool {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		log.Error("Failed to unmarshal event, skipping", err, zap.String("key", string(msg.Key)))
		return false
	}
	return true
}
