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
	"github.com/yashrajoria/catalog-import/services/import-service/consumer"
	"github.com/yashrajoria/catalog-import/services/import-service/controllers"
	"github.com/yashrajoria/catalog-import/services/import-service/routes"
	"github.com/yashrajoria/catalog-import/services/import-service/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const serviceName = "import-service"

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
			// keep going with console logging only
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
		zap.String("bucket", cfg.ImportBucket),
		zap.String("prefix", cfg.ImportPrefix),
	)

	// --- Dependency wiring ---
	s3Client := awspkg.NewS3Client(awsCfg)
	metrics := awspkg.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled)

	catalogQueue := awspkg.NewSQSClient(awsCfg, cfg.CatalogItemsQueueURL, awspkg.ReceiveOptions{})
	importService := services.NewImportService(s3Client, services.NewQueuePublisher(catalogQueue), metrics, log)

	uploadQueue := awspkg.NewSQSClient(awsCfg, cfg.UploadEventsQueueURL, awspkg.ReceiveOptions{
		MaxMessages:       1,
		WaitSeconds:       int32(cfg.QueueWaitSeconds),
		VisibilityTimeout: int32(cfg.VisibilityTimeoutSec),
	})
	uploadConsumer := consumer.NewUploadEventConsumer(importService, cfg.ImportPrefix, log)
	poller := awspkg.NewSQSConsumer(uploadQueue,
		time.Duration(cfg.ImportTimeoutSec)*time.Second,
		log.With(zap.String("queue", cfg.UploadEventsQueueURL)))

	importController := controllers.NewImportController(
		s3Client, cfg.ImportBucket, cfg.ImportPrefix,
		time.Duration(cfg.UploadURLExpiresSec)*time.Second, log,
	)

	// --- HTTP server ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(metrics, serviceName))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	routes.RegisterRoutes(r, importController,
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
		log.Info("Upload event consumer started", zap.String("queue", cfg.UploadEventsQueueURL))
		_ = poller.StartPolling(ctx, uploadConsumer.HandleDelivery)
	}()

	go func() {
		log.Info("Import Service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down Import Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	wg.Wait()

	log.Info("Import Service stopped gracefully")
}
