package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-service/config"
	"storefront-service/internal/api"
	"storefront-service/internal/broker"
	"storefront-service/internal/catalog"
	"storefront-service/internal/payment"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/store"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type orderStore interface {
	service.OrderRepository
	api.Pinger
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service", zap.String("mode", cfg.Server.RunMode))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
	}

	repo := openStore(cfg, logger)
	if closer, ok := repo.(io.Closer); ok {
		defer closer.Close()
	}

	var (
		statusCache   service.StatusCache
		deduper       service.EventDeduper
		statusWriter  service.StatusWriter
		catalogCache  catalog.Cache
		workerCache   worker.StatusCache
		redisShutdown = func() {}
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache and webhook dedupe", zap.Error(err))
	} else {
		statusCache = redisClient
		deduper = redisClient
		statusWriter = redisClient
		catalogCache = redisClient
		workerCache = redisClient
		redisShutdown = func() { redisClient.Close() }
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))
	}
	defer redisShutdown()

	var publisher service.EventPublisher = broker.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	provider := payment.NewRazorpayProvider(cfg.Payment.KeyID, cfg.Payment.KeySecret)

	orderService := service.NewOrderService(repo, provider, publisher, service.OrderServiceConfig{
		Currency:      cfg.Payment.Currency,
		ReceiptPrefix: cfg.Payment.ReceiptPrefix,
		StatusCache:   statusCache,
	})
	reconciler := service.NewReconciliationService(
		repo, publisher, deduper, statusWriter, cfg.Payment.WebhookSecret, cfg.Payment.WebhookDedupe)
	catalogService := catalog.NewService(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, cfg.Catalog.CacheTTL, catalogCache)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, reconciler, catalogService, api.HandlerOptions{
		Readiness:       repo,
		SignatureHeader: cfg.Payment.SignatureHeader,
		ExposeErrors:    cfg.Server.ExposeErrors,
	})
	handler.SetupRoutes(router)

	if cfg.Server.RunMode == config.RunModeLambda {
		adapter := ginadapter.New(router)
		lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return adapter.ProxyWithContext(ctx, req)
		})
		return
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var statusWorker *worker.OrderStatusWorker
	if cfg.Kafka.Enabled && workerCache != nil {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		statusWorker = worker.NewOrderStatusWorker(consumer, workerCache)
		go func() {
			if err := statusWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Order status worker error", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if statusWorker != nil {
		statusWorker.Stop()
	}

	logger.Info("Server exited")
}

func openStore(cfg *config.Config, logger *zap.Logger) orderStore {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Using in-memory order store, orders are lost on restart")
		return store.NewMemoryStore()
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	logger.Info("Database connected")

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		logger.Info("Database migrations applied")
	}

	return db
}
