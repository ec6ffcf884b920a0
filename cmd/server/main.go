package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mulyaapp/ledger_backend/api"
	"github.com/mulyaapp/ledger_backend/config"
	"github.com/mulyaapp/ledger_backend/models"
	"github.com/mulyaapp/ledger_backend/utils"
	"github.com/mulyaapp/ledger_backend/workflow"
)

func main() {
	godotenv.Load()
	logger := config.NewLogger()

	db := config.ConnectDatabaseWithRetry()
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("migrate: %v", err)
	}
	if err := models.SeedDefaultCategories(db); err != nil {
		logger.Fatalf("seed categories: %v", err)
	}

	rdb, locker := config.ConnectRedisWithRetry()
	prefs := utils.NewRedisPreferenceStore(rdb)
	notifier := workflow.NewNotifier(rdb, logger)

	if topicName := os.Getenv("PUBSUB_CHANGE_TOPIC"); topicName != "" {
		ctx := context.Background()
		client, err := config.GetPubSubClient(ctx)
		if err != nil {
			logger.Warnf("pubsub disabled: %v", err)
		} else {
			topic, err := config.CreateTopicIfNotExists(ctx, client, topicName)
			if err != nil {
				logger.Warnf("pubsub topic unavailable: %v", err)
			} else {
				notifier = notifier.WithPubSubTopic(topic)
			}
		}
	}

	var blobs utils.BlobStore
	if os.Getenv("GCS_BUCKET") != "" {
		store, err := utils.NewGCSBlobStore()
		if err != nil {
			logger.Fatalf("blob store: %v", err)
		}
		blobs = store
	} else {
		logger.Warn("GCS_BUCKET not set; profile images disabled")
	}

	ledger := workflow.NewLedgerEngine(db, logger, notifier)
	plans := workflow.NewPlanEngine(db, logger, notifier)
	backup := workflow.NewBackupEngine(db, prefs, blobs, locker, logger, notifier)
	handlers := api.NewHandlers(db, logger, ledger, plans, backup, prefs, blobs)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.CorsMiddleware())
	router.Use(api.CorrelationIdMiddleware())
	router.Use(api.RequestLogMiddleware(logger))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.Register(router.Group("/api/v1"))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on :%s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
