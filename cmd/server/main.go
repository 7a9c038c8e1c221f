package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/event-reservation/internal/config"
	"github.com/iliyamo/event-reservation/internal/database"
	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/queue"
	"github.com/iliyamo/event-reservation/internal/repository"
	"github.com/iliyamo/event-reservation/internal/router"
	"github.com/iliyamo/event-reservation/internal/service"
	"github.com/iliyamo/event-reservation/internal/telemetry"
)

// discardSender stands in for the broker when RABBITMQ_URL is unset.
type discardSender struct{ logger *log.Logger }

func (s discardSender) Send(_ context.Context, routingKey string, body []byte) error {
	s.logger.Debugf("no broker configured, discarding %s notification: %s", routingKey, body)
	return nil
}

func main() {
	logger := log.New("server")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}
	if cfg.Env != "prod" {
		logger.SetLevel(log.DEBUG)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, "event-reservation", cfg.Env)
	if err != nil {
		logger.Fatal(err)
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	var sender queue.Sender = discardSender{logger: logger}
	if cfg.Rabbit.URL != "" {
		pub := queue.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange, cfg.Rabbit.EmailQueue)
		defer pub.Close()
		sender = queue.NewBreakerSender(pub, cfg.Rabbit.BreakerFailures, cfg.Rabbit.BreakerOpenFor)
	}
	dispatcher := queue.NewDispatcher(sender, cfg.Notify.Buffer, cfg.Notify.Rate)

	deps := service.Deps{
		Events:       repository.NewEventRepo(db),
		Reservations: repository.NewReservationRepo(db),
		Addresses:    repository.NewAddressRepo(db),
		UoW:          repository.NewUnitOfWork(db),
		Notifier:     dispatcher,
		Clock:        model.SystemClock(),
		Retry: service.RetryPolicy{
			MaxTries:   cfg.LockRetry.MaxTries,
			Initial:    cfg.LockRetry.Initial,
			MaxElapsed: cfg.LockRetry.MaxElapsed,
		},
		RoutingKey: cfg.Rabbit.EmailQueue,
	}
	events := service.NewEventService(deps)
	reservations := service.NewReservationService(deps, events)

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and response cache disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warnf("%s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			logger.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	router.Register(e, cfg, rdb, router.Handlers{
		Health:       handler.Health(db),
		Events:       handler.NewEventHandler(events),
		Reservations: handler.NewReservationHandler(reservations),
	})

	go func() {
		logger.Infof("listening on :%s (env=%s)", cfg.Port, cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warnf("notifications still pending at shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Errorf("tracing shutdown: %v", err)
	}
}
