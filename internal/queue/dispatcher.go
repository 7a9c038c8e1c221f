package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// Sender delivers one encoded message. *Publisher is the production Sender.
type Sender interface {
	Send(ctx context.Context, routingKey string, body []byte) error
}

type job struct {
	routingKey string
	body       []byte
}

// Dispatcher decouples request handling from the broker. Publish never
// blocks and never fails the caller: a full buffer drops the message and a
// failed send is logged, not retried.
type Dispatcher struct {
	sender      Sender
	limiter     *rate.Limiter
	sendTimeout time.Duration
	logger      *log.Logger
	dropped     metric.Int64Counter

	mu     sync.RWMutex
	closed bool
	jobs   chan job

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher starts a worker that sends at most perSecond messages per
// second and holds up to buffer pending ones.
func NewDispatcher(sender Sender, buffer int, perSecond float64) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	logger := log.New("notify")
	dropped, _ := otel.Meter("event-reservation/queue").Int64Counter("notifications.dropped",
		metric.WithDescription("notifications discarded before reaching the broker"))
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sender:      sender,
		limiter:     rate.NewLimiter(limit, 1),
		sendTimeout: 5 * time.Second,
		logger:      logger,
		dropped:     dropped,
		jobs:        make(chan job, buffer),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues n for routingKey.
func (d *Dispatcher) Publish(n Notification, routingKey string) {
	body, err := json.Marshal(n)
	if err != nil {
		d.logger.Errorf("encode notification: %v", err)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warnf("dispatcher closed, dropping %s notification", routingKey)
		d.drop(routingKey, "closed")
		return
	}
	select {
	case d.jobs <- job{routingKey: routingKey, body: body}:
	default:
		d.logger.Warnf("notification buffer full, dropping %s notification", routingKey)
		d.drop(routingKey, "full")
	}
}

func (d *Dispatcher) drop(routingKey, reason string) {
	d.dropped.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("routing_key", routingKey),
		attribute.String("reason", reason),
	))
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for j := range d.jobs {
		if err := d.limiter.Wait(d.ctx); err != nil {
			d.logger.Warnf("dropping %s notification: %v", j.routingKey, err)
			d.drop(j.routingKey, "canceled")
			continue
		}
		ctx, cancel := context.WithTimeout(d.ctx, d.sendTimeout)
		if err := d.sender.Send(ctx, j.routingKey, j.body); err != nil {
			d.logger.Errorf("send %s notification: %v", j.routingKey, err)
		}
		cancel()
	}
}

// Close stops accepting messages and drains the buffer. Messages still
// pending when ctx ends are dropped.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}
