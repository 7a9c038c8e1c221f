// Command notifylog tails the email notification queue into
// logs/notifications.log. It stands in for the mail service during local
// development.
package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/event-reservation/internal/config"
	"github.com/iliyamo/event-reservation/internal/queue"
)

func main() {
	logger := log.New("notifylog")

	cfg, err := config.LoadRabbit()
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := queue.NewLogConsumer(cfg.URL, cfg.Exchange, cfg.EmailQueue)
	logger.Infof("consuming %s from %s into %s", cfg.EmailQueue, cfg.Exchange, c.Path)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal(err)
	}
}
