package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// LogConsumer drains a notification queue into a local log file. It stands
// in for the notification service in development.
type LogConsumer struct {
	URL      string
	Exchange string
	Queue    string
	Path     string // log file, created with its directory when missing

	logger *log.Logger
}

// NewLogConsumer returns a consumer appending to logs/notifications.log.
func NewLogConsumer(url, exchange, queue string) *LogConsumer {
	return &LogConsumer{
		URL:      url,
		Exchange: exchange,
		Queue:    queue,
		Path:     filepath.Join("logs", "notifications.log"),
		logger:   log.New("notifylog"),
	}
}

// Run consumes until ctx is cancelled. Dial failures and dropped
// connections are retried with exponential backoff; Run only returns
// ctx's error.
func (c *LogConsumer) Run(ctx context.Context) error {
	for {
		conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
			return amqp.Dial(c.URL)
		},
			backoff.WithBackOff(reconnectBackOff()),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.logger.Warnf("failed to dial broker: %v; retrying in %s", err, next)
			}),
		)
		if err != nil {
			return ctx.Err()
		}

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warnf("consume loop ended: %v; reconnecting", err)
	}
}

func reconnectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	return b
}

func (c *LogConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warnf("set QoS failed: %v", err)
	}
	if err := declareTopology(ch, c.Exchange, []string{c.Queue}); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handle(d.Body); err != nil {
			c.logger.Errorf("handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *LogConsumer) handle(body []byte) error {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	for _, line := range formatLines(n, time.Now().UTC()) {
		if _, err := f.WriteString(line); err != nil {
			return fmt.Errorf("write log: %w", err)
		}
	}
	return nil
}

// formatLines renders one line per recipient, sorted by user for stable output.
func formatLines(n Notification, received time.Time) []string {
	at := received
	if n.SendAt != nil {
		at = n.SendAt.UTC()
	}
	users := make([]string, 0, len(n.UserParams))
	for u := range n.UserParams {
		users = append(users, u)
	}
	sort.Strings(users)

	lines := make([]string, 0, len(users))
	for _, u := range users {
		p := n.UserParams[u]
		lines = append(lines, fmt.Sprintf("[%s] %s | channels=%s | user=%s | subject=%q | body=%q\n",
			at.Format(time.RFC3339), n.EventType, strings.Join(n.Channels, ","), u, p.Subject, p.Body))
	}
	return lines
}
