package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jcmexdev/gameshop/internal/checkout"
	"github.com/jcmexdev/gameshop/internal/httpx"
	"github.com/jcmexdev/gameshop/internal/identity"
	"github.com/jcmexdev/gameshop/internal/notify"
	"github.com/jcmexdev/gameshop/internal/orders"
	ordersmongo "github.com/jcmexdev/gameshop/internal/orders/mongo"
	"github.com/jcmexdev/gameshop/internal/paylog"
	paylogsqlite "github.com/jcmexdev/gameshop/internal/paylog/sqlite"
	"github.com/jcmexdev/gameshop/internal/payment"
	"github.com/jcmexdev/gameshop/internal/payment/paypal"
	"github.com/jcmexdev/gameshop/internal/payment/stripe"
	"github.com/jcmexdev/gameshop/internal/pkg/cache"
	"github.com/jcmexdev/gameshop/internal/pkg/telemetry"
	"github.com/jcmexdev/gameshop/internal/webhook"
)

func main() {
	_ = godotenv.Load()
	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.SetupTracer(ctx, getEnv("OTEL_SERVICE_NAME", "gameshop-api"))
	if err != nil {
		slog.Error("failed to initialise tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	env := getEnv("APP_ENV", "local")

	// ── Mongo: the durable order store ──────────────────────────────────────
	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017")
	mongoCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(mongoURI))
	cancel()
	if err != nil {
		slog.Error("failed to connect to mongo", "uri", mongoURI, "error", err)
		os.Exit(1)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
	}()

	db := client.Database(getEnv("MONGO_DB", "gameshop"))
	orderStore := ordersmongo.NewStore(db)
	if err := orderStore.EnsureIndexes(ctx); err != nil {
		slog.Error("failed to ensure mongo indexes", "error", err)
		os.Exit(1)
	}

	// ── Redis: checkout sessions + identity lookups ─────────────────────────
	redisCache := cache.NewRedisCache(getEnv("REDIS_ADDR", "localhost:6379"), "gameshop")
	sessionStore := checkout.NewRedisStore(redisCache)
	verifier := identity.NewCacheVerifier(redisCache)

	// ── Notifications: Kafka when brokers are configured, logs otherwise ────
	var notifier orders.Dispatcher
	var kafkaNotifier *notify.KafkaNotifier
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaNotifier = notify.NewKafkaNotifier(strings.Split(brokers, ",")...)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		slog.Info("kafka notifier enabled", "brokers", brokers)
	} else {
		notifier = notify.LogNotifier{}
		slog.Info("no KAFKA_BROKERS configured, notifications go to the log")
	}

	// ── Payment audit log (SQLite, append-only) ─────────────────────────────
	var audit paylog.Repository = paylog.Nop{}
	if path := getEnv("PAYLOG_PATH", "paylog.db"); path != "" {
		repo, err := paylogsqlite.Open(path)
		if err != nil {
			slog.Error("failed to open payment audit log", "path", path, "error", err)
			os.Exit(1)
		}
		defer repo.Close()
		audit = repo
	}

	// ── Payment gateways ────────────────────────────────────────────────────
	cardGateway := stripe.New(os.Getenv("STRIPE_SECRET_KEY"))
	walletGateway := paypal.New(paypal.Config{
		ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
		ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
		Live:         os.Getenv("PAYPAL_LIVE") == "true",
		ReturnURL:    getEnv("PAYPAL_RETURN_URL", getEnv("FRONTEND_URL", "http://localhost:5173")+"/checkout/return"),
		CancelURL:    getEnv("PAYPAL_CANCEL_URL", getEnv("FRONTEND_URL", "http://localhost:5173")+"/checkout"),
	})

	orderSvc := orders.NewService(orderStore, notifier)
	orchestrator := checkout.NewOrchestrator(map[payment.Method]payment.Gateway{
		payment.MethodCard:   cardGateway,
		payment.MethodPayPal: walletGateway,
	}, sessionStore, orderSvc, audit)

	// Webhook signature verification fails closed unless the operator
	// explicitly opts into the degraded observe-only mode.
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	allowUnverified := os.Getenv("WEBHOOK_ALLOW_UNVERIFIED") == "true"
	if webhookSecret == "" {
		if allowUnverified {
			slog.Warn("webhook signing secret missing: events will be recorded but never acted on")
		} else {
			slog.Warn("webhook signing secret missing: deliveries will be refused")
		}
	}
	reconciler := webhook.NewReconciler(webhookSecret, allowUnverified, orchestrator, orderSvc, audit)

	handler := httpx.NewHandler(
		cardGateway,
		walletGateway,
		orchestrator,
		orderSvc,
		reconciler,
		audit,
		env,
		map[string]httpx.DependencyCheck{
			"mongo": func() bool {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return client.Ping(pingCtx, nil) == nil
			},
			"redis": func() bool {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return redisCache.Ping(pingCtx) == nil
			},
			"stripe":  cardGateway.Configured,
			"paypal":  walletGateway.Configured,
			"webhook": reconciler.Configured,
			"paylog": func() bool {
				_, ok := audit.(paylog.Nop)
				return !ok
			},
		},
	)

	router := httpx.NewRouter(handler, verifier, getEnv("FRONTEND_URL", "http://localhost:5173"))

	addr := ":" + getEnv("PORT", "8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("gameshop API running", "addr", addr, "env", env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
