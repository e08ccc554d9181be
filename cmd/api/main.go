package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/unrolled/secure"
	"golang.org/x/sync/errgroup"

	"github.com/swellway/swellway-api/internal/auth"
	"github.com/swellway/swellway-api/internal/booking"
	"github.com/swellway/swellway-api/internal/common"
	"github.com/swellway/swellway-api/internal/config"
	"github.com/swellway/swellway-api/internal/contact"
	"github.com/swellway/swellway-api/internal/content"
	"github.com/swellway/swellway-api/internal/db"
	"github.com/swellway/swellway-api/internal/health"
	"github.com/swellway/swellway-api/internal/i18n"
	"github.com/swellway/swellway-api/internal/obs"
	"github.com/swellway/swellway-api/internal/payment"
	"github.com/swellway/swellway-api/internal/ratelimit"
	"github.com/swellway/swellway-api/internal/retreat"
	"github.com/swellway/swellway-api/internal/site"
	"github.com/swellway/swellway-api/internal/vat"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "swellway")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "swellway-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(initCtx, cfg.DatabaseURL, "swellway-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(initCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	taskClient := asynq.NewClient(asynqOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	var bookingMetrics *obs.BookingMetrics
	if metricsEnabled {
		bookingMetrics = obs.NewBookingMetrics(metricsNamespace, nil)
	}

	validate := validator.New()

	bundle, err := i18n.LoadBundle()
	if err != nil {
		logger.Fatal().Err(err).Msg("load message catalogs")
	}

	vatTable := vat.NewTable(cfg.VATRateOverrides)

	retreatRepo := &retreat.PGRepository{Pool: pool}
	retreatSvc, err := retreat.NewService(retreat.ServiceConfig{
		Repo:         retreatRepo,
		Cache:        retreat.NewCache(redisClient, cfg.RetreatCacheTTL),
		DefaultLimit: cfg.RetreatDefaultLimit,
		MaxLimit:     cfg.RetreatMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise retreat service")
	}
	retreatHandlers := &retreat.Handlers{Svc: retreatSvc}
	retreatAdmin := &retreat.AdminHandlers{Svc: retreatSvc, Repo: retreatRepo, Validate: validate}

	contentRepo := &content.PGRepository{Pool: pool}
	contentSvc := content.NewService(contentRepo, 10, 50)
	contentHandlers := &content.Handlers{Svc: contentSvc}
	contentAdmin := &content.AdminHandlers{Repo: contentRepo, Validate: validate, Locales: i18n.Codes()}

	provider := payment.Sealpay{
		APIKey:        cfg.SealpayAPIKey,
		WebhookSecret: cfg.SealpayWebhookSecret,
		SkewTolerance: cfg.WebhookSkewTolerance,
	}

	bookingSvc, err := booking.NewService(booking.ServiceConfig{
		Repo:            &booking.PGRepository{Pool: pool},
		VAT:             vatTable,
		Provider:        provider,
		Enqueuer:        taskClient,
		Metrics:         bookingMetrics,
		Log:             logger,
		ReferencePrefix: cfg.BookingReferencePrefix,
		IntentTTL:       cfg.PaymentIntentTTL,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise booking service")
	}
	bookingHandlers := &booking.Handlers{Svc: bookingSvc, Validate: validate}
	bookingAdmin := &booking.AdminHandlers{Svc: bookingSvc}

	webhookHandler := &payment.WebhookHandler{
		Provider: provider,
		Bookings: bookingSvc,
		Events:   &payment.PGEventStore{Pool: pool},
		Redis:    redisClient,
		ReplayTT: cfg.WebhookReplayTTL,
		Metrics:  bookingMetrics,
		Log:      logger,
	}

	authSvc, err := auth.NewService(auth.Config{
		Repo:            &auth.PGRepository{Pool: pool},
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Issuer:          "swellway-api",
		Audience:        "swellway-admin",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandlers := &auth.Handlers{Svc: authSvc}
	authMiddleware := auth.Middleware{Service: authSvc}

	contactRepo := &contact.PGRepository{Pool: pool}
	contactHandlers := &contact.Handlers{Repo: contactRepo, Validate: validate, Enqueuer: taskClient, Log: logger}
	contactAdmin := &contact.AdminHandlers{Repo: contactRepo}

	siteSvc := &site.Service{
		Repo:    &site.PGRepository{Pool: pool},
		Redis:   redisClient,
		TTL:     cfg.SitemapCacheTTL,
		BaseURL: cfg.PublicBaseURL,
	}
	siteHandlers := &site.Handlers{Svc: siteSvc, Bundle: bundle}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	contactLimit, err := ratelimit.Middleware(redisClient, cfg.ContactRateLimit, "contact")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise contact rate limit")
	}
	loginLimit, err := ratelimit.Middleware(redisClient, cfg.LoginRateLimit, "login")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login rate limit")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	secureHeaders := secure.New(secure.Options{
		ContentTypeNosniff: true,
		FrameDeny:          true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      cfg.AppEnv == "development",
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(secureHeaders.Handler)
	r.Use(httprate.LimitByIP(envInt("HTTP_RATE_LIMIT_PER_MINUTE", 600), time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.NewHandler(
		health.PoolChecker{Pool: pool, Redis: redisClient},
		envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	)
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Get("/sitemap.xml", siteHandlers.Sitemap)
	r.Get("/robots.txt", siteHandlers.Robots)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/site", siteHandlers.Meta)

		v.Get("/destinations", retreatHandlers.ListDestinations)
		v.Get("/retreats", retreatHandlers.ListRetreats)
		v.Get("/retreats/{slug}", retreatHandlers.GetRetreat)
		v.Get("/retreats/{slug}/departures", retreatHandlers.ListRetreatDepartures)

		v.Get("/posts", contentHandlers.ListPosts)
		v.Get("/posts/{slug}", contentHandlers.GetPost)
		v.Get("/pages/{slug}", contentHandlers.GetPage)

		v.With(idem.Middleware).Post("/bookings", bookingHandlers.Create)
		v.Get("/bookings/{reference}", bookingHandlers.Get)

		v.With(contactLimit).Post("/contact", contactHandlers.Create)

		v.Method(http.MethodPost, "/webhooks/payment", webhookHandler)

		v.Route("/admin", func(admin chi.Router) {
			admin.Route("/auth", func(a chi.Router) {
				a.With(loginLimit).Post("/login", authHandlers.Login)
				a.Post("/refresh", authHandlers.Refresh)
				a.Post("/logout", authHandlers.Logout)
				a.With(authMiddleware.RequireAuth).Get("/me", authHandlers.Me)
			})

			admin.Group(func(editor chi.Router) {
				editor.Use(authMiddleware.RequireAuth)
				editor.Use(auth.RequireRole(auth.RoleEditor))

				editor.Post("/destinations", retreatAdmin.CreateDestination)
				editor.Post("/retreats", retreatAdmin.CreateRetreat)
				editor.Put("/retreats/{id}", retreatAdmin.UpdateRetreat)
				editor.Post("/retreats/{id}/departures", retreatAdmin.CreateDeparture)

				editor.Get("/posts", contentAdmin.ListPosts)
				editor.Post("/posts", contentAdmin.CreatePost)
				editor.Put("/posts/{id}", contentAdmin.UpdatePost)
				editor.Post("/posts/{id}/publish", contentAdmin.PublishPost)
				editor.Post("/posts/{id}/unpublish", contentAdmin.UnpublishPost)
				editor.Delete("/posts/{id}", contentAdmin.DeletePost)
				editor.Put("/pages", contentAdmin.UpsertPage)
			})

			admin.Group(func(ops chi.Router) {
				ops.Use(authMiddleware.RequireAuth)
				ops.Use(auth.RequireRole(auth.RoleAdmin))

				ops.Get("/bookings", bookingAdmin.List)
				ops.Get("/bookings/{reference}", bookingAdmin.Get)
				ops.Post("/bookings/{reference}/cancel", bookingAdmin.Cancel)

				ops.Get("/contact-messages", contactAdmin.List)
				ops.Post("/contact-messages/{id}/read", contactAdmin.MarkRead)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server shutdown complete")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
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

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
