package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okulik/barberbook/libs/config"
	"github.com/okulik/barberbook/libs/db"
	"github.com/okulik/barberbook/libs/httpx"
	"github.com/okulik/barberbook/libs/kafkax"
	otelx "github.com/okulik/barberbook/libs/otel"
	"github.com/okulik/barberbook/libs/runtime"
	"github.com/okulik/barberbook/services/notification-service/internal/consumer"
	"github.com/okulik/barberbook/services/notification-service/internal/inbox"
	"github.com/okulik/barberbook/services/notification-service/internal/storage"
	"github.com/okulik/barberbook/services/notification-service/internal/telegram"
)

var lifecycleTopics = []string{
	"booking.appointment.created.v1",
	"booking.appointment.confirmed.v1",
	"booking.appointment.cancelled.v1",
	"booking.appointment.reverted.v1",
}

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	loc, err := time.LoadLocation(config.String("TIMEZONE", "UTC"))
	if err != nil {
		logger.Error("timezone config invalid", "err", err)
		panic(err)
	}

	providerChatID := config.String("PROVIDER_CHAT_ID", "")
	botToken := config.String("TELEGRAM_BOT_TOKEN", "")
	var sender telegram.Sender
	if botToken != "" {
		sender = telegram.NewBotSender(botToken, config.String("TELEGRAM_API_URL", ""))
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN unset, messages will not be delivered")
		sender = telegram.NewNoopSender()
	}

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)

	handle := func(ctx context.Context, msg kafka.Message) error {
		var evt appointmentEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.AppointmentID == "" || evt.ClientID == "" || evt.StartTime == "" {
			logger.Error("missing event fields", "topic", msg.Topic)
			return nil
		}

		audience, text, err := renderMessage(msg.Topic, evt, loc)
		if err != nil {
			logger.Error("message render failed", "err", err, "topic", msg.Topic)
			return nil
		}

		chatID := evt.ClientID
		if audience == audienceProvider {
			chatID = providerChatID
		}

		status := "sent"
		if chatID == "" {
			status = "skipped"
			logger.Warn("no chat id for audience", "audience", audience, "appointment_id", evt.AppointmentID)
		} else if err := sender.Send(ctx, chatID, text); err != nil {
			// Delivery is best effort; booking state never depends on it.
			status = "failed"
			logger.Error("telegram send failed", "err", err, "chat_id", chatID, "appointment_id", evt.AppointmentID)
		}

		if err := notificationsRepo.Insert(ctx, storage.Notification{
			AppointmentID: evt.AppointmentID,
			Recipient:     chatID,
			Channel:       "telegram",
			Payload:       map[string]any{"audience": audience, "text": text, "topic": msg.Topic},
			Status:        status,
		}); err != nil {
			logger.Error("failed to persist notification", "err", err)
			return err
		}

		logger.Info("event processed", "topic", msg.Topic, "appointment_id", evt.AppointmentID, "status", status)
		return nil
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	for _, topic := range lifecycleTopics {
		if strings.TrimSpace(brokers) == "" {
			logger.Warn("KAFKA_BROKERS unset, consumers not started")
			break
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handle)
		go eventConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
