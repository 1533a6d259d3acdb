package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okulik/barberbook/libs/config"
	"github.com/okulik/barberbook/libs/db"
	"github.com/okulik/barberbook/libs/httpx"
	"github.com/okulik/barberbook/libs/kafkax"
	otelx "github.com/okulik/barberbook/libs/otel"
	"github.com/okulik/barberbook/libs/runtime"
	"github.com/okulik/barberbook/migrations"
	"github.com/okulik/barberbook/services/booking-service/internal/booking"
	"github.com/okulik/barberbook/services/booking-service/internal/catalog"
	"github.com/okulik/barberbook/services/booking-service/internal/handlers"
	"github.com/okulik/barberbook/services/booking-service/internal/outbox"
	"github.com/okulik/barberbook/services/booking-service/internal/schedule"
	"github.com/okulik/barberbook/services/booking-service/internal/storage"
)

const (
	defaultCatalog = "Haircut=45,Beard trim=30,Haircut and beard=60"
	defaultHours   = "mon=09:00-18:00,tue=09:00-18:00,wed=09:00-18:00,thu=09:00-18:00,fri=09:00-18:00,sat=10:00-16:00"
)

func slotStep(raw string, logger *slog.Logger) time.Duration {
	mins, err := strconv.Atoi(raw)
	if err != nil || mins <= 0 {
		logger.Warn("invalid slot step, using 30m", "value", raw)
		return 30 * time.Minute
	}
	return time.Duration(mins) * time.Minute
}

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	cat, err := catalog.Parse(config.String("CATALOG", defaultCatalog))
	if err != nil {
		logger.Error("catalog config invalid", "err", err)
		panic(err)
	}
	hours, err := schedule.ParseWeekly(config.String("BUSINESS_HOURS", defaultHours))
	if err != nil {
		logger.Error("business hours config invalid", "err", err)
		panic(err)
	}
	loc, err := time.LoadLocation(config.String("TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("timezone config invalid", "err", err)
		panic(err)
	}

	var store booking.Store
	var readyChecks []runtime.ReadyCheck

	dbURL := config.String("DATABASE_URL", "")
	if dbURL != "" {
		if err := db.Migrate(dbURL, migrations.FS); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}

		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		outboxRepo := outbox.NewRepository(pool)
		store = storage.NewPostgresStore(pool, outboxRepo)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})

		brokers := config.String("KAFKA_BROKERS", "")
		if brokers != "" {
			publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
				Brokers:   brokers,
				PollEvery: 2 * time.Second,
				BatchSize: 50,
			})
			go publisher.Run(ctx)
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		} else {
			logger.Warn("KAFKA_BROKERS unset, outbox events will accumulate unpublished")
		}
	} else {
		// Dev mode: in-memory store, events drain to the log instead of Kafka.
		logger.Warn("DATABASE_URL unset, using in-memory store")
		mem := storage.NewMemoryStore()
		store = mem
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case evt := <-mem.Events():
					logger.Info("event emitted", "event_type", evt.EventType, "aggregate_id", evt.AggregateID)
				}
			}
		}()
	}

	engine := booking.New(store, booking.Config{
		Catalog:    cat,
		Hours:      hours,
		SlotStep:   slotStep(config.String("SLOT_STEP_MINUTES", "30"), logger),
		ProviderID: config.String("PROVIDER_ID", booking.DefaultProviderID),
		Location:   loc,
	}, logger)
	bookingHandler := handlers.NewBookingHandler(engine, logger)

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/services", bookingHandler.Services)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.List)
	mux.HandleFunc("/api/v1/agenda", bookingHandler.Agenda)
	mux.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ","),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Actor-Id"},
			MaxAge:         10 * time.Minute,
		}),
	}
	limit, _ := strconv.Atoi(config.String("RATE_LIMIT", "60"))
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	} else {
		// Single-instance deployments get the in-process fixed window.
		middlewares = append(middlewares, httpx.NewRateLimiter(limit, time.Minute).Middleware())
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
