// Package service orchestrates the Event aggregate: it loads events under
// the right lock, applies aggregate commands, persists the result inside a
// unit of work and emits notifications on the side.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/queue"
)

// EventStore is the persistence the services need for events.
// *repository.EventRepo implements it.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	Update(ctx context.Context, e *model.Event) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Event, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Event, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.Event, error)
	List(ctx context.Context, now time.Time, offset, limit int) ([]model.Event, error)
	ListByAddresses(ctx context.Context, addressIDs []uuid.UUID, now time.Time) ([]model.Event, error)
}

// ReservationStore gives row-level access to reservations.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Reservation, error)
	Update(ctx context.Context, r *model.Reservation) error
}

// AddressLookup is the boundary to the address service.
type AddressLookup interface {
	GetAddress(ctx context.Context, id uuid.UUID) (*model.Address, error)
	NearbyAddresses(ctx context.Context, lat, lon, radiusKm float64) ([]model.Address, error)
}

// Transactor runs fn in one transaction. *repository.UnitOfWork implements it.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier accepts a notification without waiting for delivery.
// *queue.Dispatcher implements it.
type Notifier interface {
	Publish(n queue.Notification, routingKey string)
}

// RetryPolicy bounds how often a unit of work is retried after losing the
// event row lock to another transaction.
type RetryPolicy struct {
	MaxTries   uint
	Initial    time.Duration
	MaxElapsed time.Duration
}

// DefaultRetryPolicy tries four times within half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: 4, Initial: 25 * time.Millisecond, MaxElapsed: 500 * time.Millisecond}
}

// Deps bundles the collaborators shared by both services. Clock, Retry and
// RoutingKey fall back to defaults when left zero.
type Deps struct {
	Events       EventStore
	Reservations ReservationStore
	Addresses    AddressLookup
	UoW          Transactor
	Notifier     Notifier
	Clock        model.Clock
	Retry        RetryPolicy
	RoutingKey   string
}

type core struct {
	Deps
	tracer     trace.Tracer
	lockMisses metric.Int64Counter
}

func newCore(d Deps) core {
	if d.Clock == nil {
		d.Clock = model.SystemClock()
	}
	if d.Retry.MaxTries == 0 {
		d.Retry = DefaultRetryPolicy()
	}
	if d.RoutingKey == "" {
		d.RoutingKey = queue.ChannelEmail
	}
	// the global meter hands out no-op instruments until a provider is set
	lockMisses, _ := otel.Meter("event-reservation/service").Int64Counter("event.lock_misses",
		metric.WithDescription("event row locks lost to a concurrent transaction"))
	return core{Deps: d, tracer: otel.Tracer("event-reservation/service"), lockMisses: lockMisses}
}

// inLockedTx runs fn in a unit of work and starts over with exponential
// backoff while fn fails with model.ErrEventLocked. Once the policy is
// exhausted, or ctx ends while waiting for the next attempt, the caller
// gets model.ErrEventLocked itself.
func (c core) inLockedTx(ctx context.Context, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.Retry.Initial
	b.MaxInterval = c.Retry.MaxElapsed

	var lockErr error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.UoW.Do(ctx, fn)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, model.ErrEventLocked):
			lockErr = err
			trace.SpanFromContext(ctx).AddEvent("event.lock_miss")
			c.lockMisses.Add(ctx, 1)
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.Retry.MaxTries),
		backoff.WithMaxElapsedTime(c.Retry.MaxElapsed),
	)
	if err != nil && lockErr != nil && ctx.Err() != nil {
		return lockErr
	}
	return err
}

func (c core) notify(userID uuid.UUID, subject, body string) {
	c.Notifier.Publish(queue.NewEmail(userID, subject, body), c.RoutingKey)
}

// finish records err on span and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
