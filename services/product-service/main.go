package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awspkg "github.com/yashrajoria/catalog-import/pkg/aws"
	"github.com/yashrajoria/catalog-import/services/common/logger"
	"github.com/yashrajoria/catalog-import/services/common/middleware"
	"github.com/yashrajoria/catalog-import/services/product-service/consumer"
	"github.com/yashrajoria/catalog-import/services/product-service/controllers"
	"github.com/yashrajoria/catalog-import/services/product-service/repository"
	"github.com/yashrajoria/catalog-import/services/product-service/routes"
	"github.com/yashrajoria/catalog-import/services/product-service/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "product-service"

func main() {
	// Load .env file (optional, falls back to system env)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := LoadConfig(ctx)
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	awsCfg, err := awspkg.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		panic("failed to load AWS config: " + err.Error())
	}

	var sink io.Writer
	if cfg.CloudWatchEnabled {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			os.Stderr.WriteString("cloudwatch logs disabled: " + err.Error() + "\n")
		} else {
			sink = cw
		}
	}
	base, err := logger.New(cfg.Env, sink)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	log := logger.Service(base, serviceName)
	defer log.Sync()
	zap.ReplaceGlobals(log)

	log.Info("AWS Configuration",
		zap.String("region", cfg.AWS.Region),
		zap.String("endpoint", cfg.AWS.Endpoint),
		zap.String("products_table", cfg.ProductsTable),
		zap.String("stocks_table", cfg.StocksTable),
	)

	// --- Redis (optional read cache) ---
	var redisClient *redis.Client
	var cache *controllers.CacheManager
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn("Invalid REDIS_URL, product cache disabled", zap.Error(err))
		} else {
			redisClient = redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				log.Warn("Redis not reachable, cache reads will miss until it is", zap.Error(err))
			}
			cancel()
			cache = controllers.NewCacheManager(redisClient, log)
		}
	}

	// --- Storage ---
	ddbClient := awspkg.NewDynamoDBClient(awsCfg)
	catalogRepo := repository.NewDynamoCatalogRepository(ddbClient, cfg.ProductsTable, cfg.StocksTable)
	ensureCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	if err := catalogRepo.EnsureTables(ensureCtx); err != nil {
		cancel()
		log.Fatal("Failed to ensure catalog tables", zap.Error(err))
	}
	cancel()

	// --- Import pipeline ---
	metrics := awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)
	notifier := services.NewCompletionNotifier(awspkg.NewSNSClient(awsCfg), cfg.CreateProductTopicArn)
	var invalidator services.CacheInvalidator
	if cache != nil {
		invalidator = cache
	}
	commitWriter := services.NewCommitWriter(catalogRepo)
	processor := services.NewBatchProcessor(commitWriter, notifier, invalidator, metrics, log)

	catalogQueue := awspkg.NewSQSClient(awsCfg, cfg.CatalogItemsQueueURL, awspkg.ReceiveOptions{
		MaxMessages:       awspkg.MaxBatchEntries,
		WaitSeconds:       int32(cfg.QueueWaitSeconds),
		VisibilityTimeout: int32(cfg.VisibilityTimeoutSec),
	})
	batchConsumer := consumer.NewCatalogBatchConsumer(
		catalogQueue, processor, cfg.ConsumerWorkers,
		time.Duration(cfg.DeliveryTimeoutSec)*time.Second, metrics,
		log.With(zap.String("queue", cfg.CatalogItemsQueueURL)),
	)

	// --- HTTP server ---
	productController := controllers.NewProductController(
		services.NewCatalogService(catalogRepo),
		services.NewProductCreator(commitWriter, notifier, invalidator, log),
		cache, log,
	)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	routes.RegisterRoutes(r, productController,
		middleware.RateLimitMiddleware(cfg.RateLimitPerMinute),
		middleware.BasicAuth(cfg.BasicAuthUsername, cfg.BasicAuthPassword, log),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		batchConsumer.Start(ctx)
	}()

	go func() {
		log.Info("Product Service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down Product Service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// in-flight deliveries finish or hit their timeout before we exit
	wg.Wait()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis", zap.Error(err))
		}
	}

	log.Info("Product Service stopped gracefully")
}
