package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
	"bitbucket.org/mmdatafocus/creditrecon_backend/models"
	"bitbucket.org/mmdatafocus/creditrecon_backend/reconsync"
	"bitbucket.org/mmdatafocus/creditrecon_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("RECON_SYNC_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		if by := strings.TrimSpace(c.GetHeader("x-requested-by")); by != "" {
			ctx = utils.SetRequestedByInContext(ctx, by)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id", "x-requested-by")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// API endpoints (workbook reconciliation)
	r.POST("/api/recon/runs", reconsync.TriggerRunHandler())
	r.GET("/api/recon/runs", reconsync.RunHistoryHandler())
	r.GET("/api/recon/runs/:id", reconsync.RunDetailHandler())
	r.POST("/api/recon/runs/:id/retry", reconsync.RetryRunHandler())
	r.GET("/api/recon/runs/:id/artifact", reconsync.RunArtifactHandler())
	r.POST("/api/recon/uploads", reconsync.UploadURLHandler())
	r.GET("/api/recon/pending-matches", reconsync.PendingMatchesHandler())
	r.POST("/api/recon/pending-matches/:id/confirm", reconsync.ConfirmMatchHandler())
	r.POST("/api/recon/pending-matches/:id/reject", reconsync.RejectMatchHandler())

	// Pub/Sub push endpoint for the run worker.
	r.POST("/pubsub/recon-sync", reconsync.PubSubPushHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Pull mode for environments without a reachable push endpoint.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RECON_SYNC_SUBSCRIBE")), "true") {
		go func() {
			if err := reconsync.RunSubscriber(sigCtx); err != nil {
				logger.WithFields(logrus.Fields{"field": "subscriber"}).Error(err)
			}
		}()
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}
