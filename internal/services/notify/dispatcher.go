// Package notify delivers match, like and message events after the write
// that produced them has committed. Delivery is best effort: Notify never
// blocks and never reports failure to the caller.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

// Event is a notification a service wants delivered once its transaction commits.
type Event struct {
	RecipientID int64
	Type        enums.NotificationType
	Payload     model.NotificationPayload
}

type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

type Config struct {
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
}

type Dependencies struct {
	Publisher Publisher
	Logger    *zap.Logger
}

type Dispatcher struct {
	publisher Publisher
	logger    *zap.Logger
	cfg       Config
	queue     chan model.Notification
	now       func() time.Time
	newID     func() string

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

func NewDispatcher(deps Dependencies, cfg Config) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		publisher: deps.Publisher,
		logger:    logger,
		cfg:       cfg,
		queue:     make(chan model.Notification, cfg.QueueSize),
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		stop:      make(chan struct{}),
	}
}

// Start launches the delivery workers. It is safe to call more than once.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.cfg.Workers; i++ {
			d.wg.Add(1)
			go d.work()
		}
	})
}

// Notify queues an event. A full queue drops the event with a warning.
func (d *Dispatcher) Notify(_ context.Context, recipientID int64, eventType enums.NotificationType, payload model.NotificationPayload) {
	n := model.Notification{
		ID:          d.newID(),
		RecipientID: recipientID,
		Type:        eventType,
		Payload:     payload,
		CreatedAt:   d.now().UTC(),
	}

	select {
	case <-d.stop:
		d.logger.Warn("notification dropped after shutdown",
			zap.Int64("recipient_id", recipientID),
			zap.String("type", string(eventType)),
		)
	default:
		select {
		case d.queue <- n:
		default:
			d.logger.Warn("notification queue full, dropping",
				zap.Int64("recipient_id", recipientID),
				zap.String("type", string(eventType)),
				zap.Int("queue_size", d.cfg.QueueSize),
			)
		}
	}
}

// Emit forwards a batch of events. Services call it after commit.
func (d *Dispatcher) Emit(ctx context.Context, events []Event) {
	for _, ev := range events {
		d.Notify(ctx, ev.RecipientID, ev.Type, ev.Payload)
	}
}

// Close stops accepting events and waits for queued ones to be delivered
// until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stopOnce.Do(func() {
		close(d.stop)
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.stop:
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(n model.Notification) {
	if d.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
	defer cancel()

	if err := d.publisher.Publish(ctx, n); err != nil {
		d.logger.Warn("notification delivery failed",
			zap.String("notification_id", n.ID),
			zap.Int64("recipient_id", n.RecipientID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a sink that drops everything.
type Discard struct{}

func (Discard) Notify(context.Context, int64, enums.NotificationType, model.NotificationPayload) {}

func (Discard) Emit(context.Context, []Event) {}
