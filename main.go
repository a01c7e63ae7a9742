package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"leadreach/config"
	"leadreach/controllers"
	"leadreach/database"
	"leadreach/middleware"
	"leadreach/models"
	"leadreach/queue"
	"leadreach/services"
	"leadreach/utils"
	"leadreach/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.GetAppConfig()
	logger := utils.NewLogger(cfg.LogLevel)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()

	jobModel := models.NewJobModel(db, cfg.Worker.MaxRetries, cfg.Worker.LockTimeout)

	sqsQueue, err := queue.NewSQSQueue(cfg.Queue)
	if err != nil {
		log.Fatalf("Queue setup failed: %v", err)
	}

	browser, err := services.NewPlaywrightBrowser()
	if err != nil {
		log.Fatalf("Browser setup failed: %v", err)
	}
	defer browser.Close()

	var captcha services.CaptchaSolver
	if cfg.Worker.CaptchaAPIKey != "" {
		captcha = services.NewTwoCaptchaSolver(cfg.Worker.CaptchaAPIKey)
	} else {
		log.Printf("API_KEY_2CAPTCHA not set; captcha solving disabled")
	}

	filler := services.NewFormFillerService(browser, captcha, cfg.Worker.SettleDelay)
	finder := services.NewContactPageFinder(browser)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Worker process starting", map[string]interface{}{
		"queue_url": cfg.Queue.QueueURL,
		"region":    cfg.Queue.Region,
	})

	// Lease recovery: one sweep at startup, then periodic.
	recoverStuckJobs(jobModel, logger)
	go func() {
		ticker := time.NewTicker(cfg.Worker.RecoverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				recoverStuckJobs(jobModel, logger)
			}
		}
	}()

	if cfg.Worker.DashboardPort != "" {
		go runDashboard(jobModel, cfg.Worker.DashboardPort)
	}

	w := worker.New(jobModel, sqsQueue, filler, finder, cfg.Queue.Region, cfg.Worker.MaxRetries)
	w.Run(ctx)
}

func recoverStuckJobs(jobModel *models.JobModel, logger *utils.Logger) {
	n, err := jobModel.RecoverStuckJobs()
	if err != nil {
		logger.Error("Lease recovery failed", err)
		return
	}
	if n > 0 {
		logger.Info("Recovered stuck jobs", map[string]interface{}{"count": n})
	}
}

func runDashboard(jobModel *models.JobModel, port string) {
	r := gin.Default()
	r.Use(cors.Default())
	r.Use(middleware.NewRateLimiter(60, time.Minute).Limit())

	jobController := controllers.NewJobController(jobModel)
	r.GET("/api/jobs", jobController.ListJobs)
	r.GET("/api/jobs/stats", jobController.GetStats)
	r.GET("/api/jobs/:id", jobController.GetJob)

	if err := r.Run(":" + port); err != nil {
		log.Printf("Dashboard server stopped: %v", err)
	}
}
