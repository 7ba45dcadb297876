package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/khoahotran/linkgraph/internal/application/service"
	"github.com/khoahotran/linkgraph/internal/config"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

const (
	TopicUploadEvents  = "upload.events"
	TopicProfileEvents = "profile.events"
)

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducerClient struct {
	UploadEventsWriter  MessageWriter
	ProfileEventsWriter MessageWriter
	log                 logger.Logger
}

var _ service.EventPublisher = (*KafkaProducerClient)(nil)

func NewKafkaProducerClient(cfg config.Config, log logger.Logger) (*KafkaProducerClient, error) {
	brokers := cfg.Kafka.Brokers
	if len(brokers) == 0 {
		return nil, fmt.Errorf("config Kafka brokers not found")
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
	}

	log.Info("Kafka producers initialized", zap.Strings("brokers", brokers))
	return NewProducer(newWriter(TopicUploadEvents), newWriter(TopicProfileEvents), log), nil
}

func NewProducer(uploads, profiles MessageWriter, log logger.Logger) *KafkaProducerClient {
	return &KafkaProducerClient{UploadEventsWriter: uploads, ProfileEventsWriter: profiles, log: log}
}

// PublishUploadEvent keys by run id so every event of a run lands on one partition.
func (c *KafkaProducerClient) PublishUploadEvent(ctx context.Context, payload service.UploadEventPayload) error {
	if payload.EventType == "" {
		payload.EventType = service.UploadEventTypeStored
	}
	return c.publish(ctx, c.UploadEventsWriter, payload.RunID.String(), payload)
}

func (c *KafkaProducerClient) PublishProfileEvent(ctx context.Context, payload service.ProfileEventPayload) error {
	if len(payload.ProfileIDs) == 0 {
		return nil
	}
	if payload.EventType == "" {
		payload.EventType = service.ProfileEventTypeDirty
	}
	return c.publish(ctx, c.ProfileEventsWriter, payload.ProfileIDs[0].String(), payload)
}

func (c *KafkaProducerClient) publish(ctx context.Context, w MessageWriter, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("cannot encode event: %w", err)
	}
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value}); err != nil {
		c.log.Error("Failed to publish event", err, zap.String("key", key))
		return fmt.Errorf("cannot publish event: %w", err)
	}
	return nil
}

func (c *KafkaProducerClient) Close() {
	if c.UploadEventsWriter != nil {
		c.UploadEventsWriter.Close()
	}
	if c.ProfileEventsWriter != nil {
		c.ProfileEventsWriter.Close()
	}
	c.log.Info("Closed Kafka producers")
}
