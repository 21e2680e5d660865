package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/api"
	"github.com/linesmerrill/vehicle-tax-api/api/handlers"
	"github.com/linesmerrill/vehicle-tax-api/api/scheduler"
	"github.com/linesmerrill/vehicle-tax-api/config"
	"github.com/linesmerrill/vehicle-tax-api/databases"
	"github.com/linesmerrill/vehicle-tax-api/events"
	"github.com/linesmerrill/vehicle-tax-api/locks"
	"github.com/linesmerrill/vehicle-tax-api/notify"
	"github.com/linesmerrill/vehicle-tax-api/payments"
)

const shutdownTimeout = 15 * time.Second

// locker serialises payment work per vehicle and elects the sweep runner
type locker interface {
	payments.Locker
	locks.JobLocker
}

func main() {
	_ = godotenv.Load()
	conf := config.New()
	defer zap.L().Sync()

	if err := run(conf); err != nil {
		zap.S().Errorw("vehicle-tax-api stopped", "error", err)
		os.Exit(1)
	}
}

func run(conf *config.Config) error {
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	client, db, err := databases.Open(startCtx, conf)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())
	if err := databases.EnsureIndexes(startCtx, db); err != nil {
		return err
	}
	store := databases.NewStore(db)

	var lock locker = locks.NewLocal()
	if conf.RedisURL != "" {
		rdb, err := locks.Connect(startCtx, conf.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		lock = locks.NewRedis(rdb, "vehicle-tax")
	} else {
		zap.S().Warnw("REDIS_URL not set, payment locks are local to this instance")
	}

	var publisher events.Publisher = events.Fallback{}
	if conf.RabbitMQURL != "" {
		producer, err := events.NewProducer(conf.RabbitMQURL, conf.EventsExchange)
		if err != nil {
			zap.S().Errorw("event producer unavailable, events will be dropped", "error", err)
		} else {
			publisher = producer
		}
	}
	defer publisher.Close()

	var mailer notify.Mailer = notify.Nop{}
	if conf.SendGridAPIKey != "" {
		mailer = notify.NewSendGrid(conf.SendGridAPIKey, conf.MailFromAddress, conf.MailFromName)
	}

	hub := notify.NewHub()
	svc := payments.NewService(store, lock,
		events.PaymentNotifier{Publisher: publisher},
		hub,
		notify.ReceiptNotifier{Mailer: mailer, Vehicles: store},
	)
	if conf.PSERedirectURL != "" {
		svc.RedirectURL = conf.PSERedirectURL
	}

	a := handlers.App{
		Config:   *conf,
		Store:    store,
		Payments: svc,
		Auth:     api.NewAuth(store, conf.JWTSecret, conf.AccessTokenTTL()),
		Mailer:   mailer,
		Hub:      hub,
		DB:       store,
	}
	a.Initialize()

	sched := scheduler.NewScheduler(svc, lock, conf.ExpirySweepSchedule, conf.PaymentExpiry())
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           api.CORS(conf.FrontendURL)(a.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("vehicle-tax-api is up and running",
			"port", conf.Port,
			"url", conf.BaseURL,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	zap.S().Infow("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
