package queue

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/sony/gobreaker"
)

// BreakerSender stops calling a failing broker for a while. After
// maxFailures consecutive errors every Send fails fast with
// gobreaker.ErrOpenState until openFor has passed, then one probe is let
// through.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSender(next Sender, maxFailures uint32, openFor time.Duration) *BreakerSender {
	logger := log.New("notify")
	return &BreakerSender{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "amqp-publisher",
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warnf("%s breaker %s -> %s", name, from, to)
			},
		}),
	}
}

func (b *BreakerSender) Send(ctx context.Context, routingKey string, body []byte) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, routingKey, body)
	})
	return err
}
