package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/swellway/swellway-api/internal/booking"
	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/config"
	"github.com/swellway/swellway-api/internal/db"
	"github.com/swellway/swellway-api/internal/i18n"
	"github.com/swellway/swellway-api/internal/mailer"
	"github.com/swellway/swellway-api/internal/obs"
	"github.com/swellway/swellway-api/internal/payment"
	"github.com/swellway/swellway-api/internal/site"
	"github.com/swellway/swellway-api/internal/tasks"
	"github.com/swellway/swellway-api/internal/vat"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(initCtx, cfg.DatabaseURL, "swellway-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(initCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	bundle, err := i18n.LoadBundle()
	if err != nil {
		logger.Fatal().Err(err).Msg("load message catalogs")
	}

	var mail common.EmailSender = common.NopEmailSender{}
	if cfg.EmailEnabled && cfg.SMTPHost != "" {
		mail = mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Pass:     cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			FromName: "Swellway",
			StartTLS: true,
		})
	} else {
		logger.Info().Msg("email delivery disabled, using nop sender")
	}

	bookingSvc, err := booking.NewService(booking.ServiceConfig{
		Repo: &booking.PGRepository{Pool: pool},
		VAT:  vat.NewTable(cfg.VATRateOverrides),
		Provider: payment.Sealpay{
			APIKey:        cfg.SealpayAPIKey,
			WebhookSecret: cfg.SealpayWebhookSecret,
			SkewTolerance: cfg.WebhookSkewTolerance,
		},
		Log:             logger,
		ReferencePrefix: cfg.BookingReferencePrefix,
		IntentTTL:       cfg.PaymentIntentTTL,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise booking service")
	}

	siteSvc := &site.Service{
		Repo:    &site.PGRepository{Pool: pool},
		Redis:   redisClient,
		TTL:     cfg.SitemapCacheTTL,
		BaseURL: cfg.PublicBaseURL,
	}

	handler := &tasks.Handler{
		Mail:     mail,
		Bundle:   bundle,
		Bookings: bookingSvc,
		Sitemap:  siteSvc,
		Inbox:    cfg.ContactInbox,
		Log:      logger,
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}

	srv := asynq.NewServer(asynqOpt, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 10),
		Queues: map[string]int{
			tasks.QueueEmails:  6,
			tasks.QueueDefault: 4,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("type", task.Type()).Msg("task failed")
		}),
	})
	mux := asynq.NewServeMux()
	handler.Register(mux)

	scheduler := asynq.NewScheduler(asynqOpt, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(envOrDefault("BOOKING_EXPIRE_SCHEDULE", "@every 5m"), tasks.NewExpireBookingsTask()); err != nil {
		logger.Fatal().Err(err).Msg("register booking expiry schedule")
	}
	if _, err := scheduler.Register(envOrDefault("SITEMAP_WARM_SCHEDULE", "@every 6h"), tasks.NewWarmSitemapTask()); err != nil {
		logger.Fatal().Err(err).Msg("register sitemap warm schedule")
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info().Msg("worker starting")
		return srv.Run(mux)
	})
	g.Go(func() error {
		return scheduler.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		scheduler.Shutdown()
		srv.Shutdown()
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
