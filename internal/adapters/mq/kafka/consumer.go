// Package kafka feeds play events published on a Kafka topic into the
// ingestion queue.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/pkg/logger"
	"github.com/okian/playstats/pkg/metrics"
)

const (
	defaultRetryDelay = 200 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// Config selects the brokers, topic and consumer group.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Enabled reports whether any broker is configured.
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0
}

// Reader is the subset of *kafkago.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink receives decoded events.
type Sink interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	Enqueue(ctx context.Context, e model.PlayEvent) bool
}

// NewReader builds a consumer group reader for cfg.
func NewReader(cfg Config) Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
}

// Consumer moves messages from a Reader into a Sink. Offsets are committed
// only once the event is queued, so an event lost to a crash before
// queueing is redelivered.
type Consumer struct {
	reader     Reader
	sink       Sink
	retryDelay time.Duration
	logger     logger.Logger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithRetryDelay sets the first backoff after a fetch error or a full queue.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

func NewConsumer(reader Reader, sink Sink, opts ...Option) *Consumer {
	c := &Consumer{
		reader:     reader,
		sink:       sink,
		retryDelay: defaultRetryDelay,
		logger:     logger.Get().Named("kafka-consumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is done or the reader is closed.
func (c *Consumer) Run(ctx context.Context) error {
	delay := c.retryDelay
	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			metrics.RecordKafkaMessage("fetch_error")
			c.logger.Warn(ctx, "kafka fetch failed", logger.Error(err), logger.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return nil
			}
			delay = min(delay*2, maxRetryDelay)
			continue
		}
		delay = c.retryDelay

		if !c.handle(ctx, msg) {
			return nil
		}
	}
}

// handle processes one message and reports false when ctx ended first.
func (c *Consumer) handle(ctx context.Context, msg kafkago.Message) bool {
	e, err := decode(msg)
	if err != nil {
		metrics.RecordKafkaMessage("malformed")
		c.logger.Warn(ctx, "skipping malformed play event",
			logger.Int64("offset", msg.Offset),
			logger.Int("partition", msg.Partition),
			logger.Error(err),
		)
		return c.commit(ctx, msg)
	}

	if c.sink.SeenAndRecord(ctx, e.EventID) {
		metrics.RecordKafkaMessage("duplicate")
		return c.commit(ctx, msg)
	}

	delay := c.retryDelay
	for !c.sink.Enqueue(ctx, e) {
		if !sleep(ctx, delay) {
			c.sink.Unrecord(ctx, e.EventID)
			return false
		}
		delay = min(delay*2, maxRetryDelay)
	}
	metrics.RecordKafkaMessage("accepted")
	return c.commit(ctx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) bool {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error(ctx, "kafka commit failed", logger.Int64("offset", msg.Offset), logger.Error(err))
	}
	return true
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// decode parses a JSON play event. Events without an id are keyed by their
// position in the log so redeliveries still dedupe.
func decode(msg kafkago.Message) (model.PlayEvent, error) {
	var e model.PlayEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return e, fmt.Errorf("decode play event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.EventID == "" {
		e.EventID = fmt.Sprintf("kafka:%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
	}
	return e, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
