package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/platform/timeouts"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Publisher delivers relayed messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Config controls the relay loop.
type Config struct {
	// Interval is the pause between polls when the outbox is drained.
	Interval  time.Duration
	BatchSize int
	// PublishTimeout caps a single publish attempt.
	PublishTimeout time.Duration
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = timeouts.RelayPublish
	}
	return c
}

// Relay moves events from an outbox to a publisher.
type Relay struct {
	source    storage.Outbox
	publisher Publisher
	cfg       Config
	logger    *logging.Logger
	now       func() time.Time
}

// NewRelay builds a relay. A nil logger discards output.
func NewRelay(source storage.Outbox, publisher Publisher, cfg Config, logger *logging.Logger) (*Relay, error) {
	if source == nil {
		return nil, errors.New("outbox source is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Relay{
		source:    source,
		publisher: publisher,
		cfg:       cfg.normalized(),
		logger:    logger.With("component", "outbox_relay"),
		now:       time.Now,
	}, nil
}

// RunOnce relays one batch and returns how many events were published. It
// stops at the first publish failure so events leave in commit order; the
// published prefix is still marked.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.source.ListUnpublished(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unpublished events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]storage.EventKey, 0, len(events))
	var publishErr error
	for _, evt := range events {
		publishCtx, cancel := context.WithTimeout(ctx, r.cfg.PublishTimeout)
		publishErr = r.publisher.Publish(publishCtx, MessageFromEvent(evt))
		cancel()
		if publishErr != nil {
			publishErr = fmt.Errorf("publish pool %s seq %d: %w", evt.PoolID, evt.Seq, publishErr)
			break
		}
		published = append(published, storage.EventKey{PoolID: evt.PoolID, Seq: evt.Seq})
	}

	if len(published) > 0 {
		if err := r.source.MarkPublished(ctx, published, r.now().UTC()); err != nil {
			return 0, errors.Join(publishErr, fmt.Errorf("mark published: %w", err))
		}
	}
	return len(published), publishErr
}

// Run polls until ctx ends. Full batches are followed immediately by the next
// poll; failures are logged and retried after Interval.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("event relay started", "interval", r.cfg.Interval.String(), "batch_size", r.cfg.BatchSize)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event relay stopped")
			return nil
		case <-timer.C:
		}

		count, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("event relay batch failed", "published", count, "error", err)
		} else if count > 0 {
			r.logger.Debug("event relay batch published", "published", count)
		}

		next := r.cfg.Interval
		if err == nil && count == r.cfg.BatchSize {
			next = 0
		}
		timer.Reset(next)
	}
}
