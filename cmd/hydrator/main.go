package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sietch-labs/hydrator-go/internal/hydratorconfig"
	"github.com/sietch-labs/hydrator-go/pkg/batch"
	"github.com/sietch-labs/hydrator-go/pkg/db"
	"github.com/sietch-labs/hydrator-go/pkg/hydration"
	"github.com/sietch-labs/hydrator-go/pkg/interfaces/bluesky"
	"github.com/sietch-labs/hydrator-go/pkg/logging"
	"github.com/sietch-labs/hydrator-go/pkg/memory"
	"github.com/sietch-labs/hydrator-go/pkg/tasks"
)

const pollInterval = 2 * time.Second

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Error loading .env file")
	}

	// Initialize logger
	log := logrus.New()
	log.SetFormatter(logging.NewColoredJSONFormatter())

	// Get log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("Received shutdown signal")
		cancel()
	}()

	// Initialize Bluesky client
	blueskyConfig, err := bluesky.NewConfig()
	if err != nil {
		log.WithError(err).Fatal("Failed to create Bluesky config")
	}
	blueskyConfig.Logger = log

	client, err := bluesky.NewClient(blueskyConfig)
	if err != nil {
		log.WithError(err).Fatal("Failed to create Bluesky client")
	}

	// Task manager owns the worker pool; shut down on exit.
	manager := tasks.NewManager(log)
	defer manager.Shutdown()

	batchConfig, err := batch.NewConfig(batch.Strategy(getEnvOrDefault("HYDRATOR_STRATEGY", string(batch.StrategyStandard))))
	if err != nil {
		log.WithError(err).Fatal("Invalid batch strategy")
	}

	orchestrator, err := hydration.NewOrchestrator(manager, batchConfig, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create orchestrator")
	}

	// Build one job per configured account
	jobs, err := hydratorconfig.BuildJobs(ctx, hydratorconfig.JobConfig{
		Client: client,
		Logger: log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to build hydration jobs")
	}

	taskID, err := orchestrator.StartParallelHydration(jobs)
	if err != nil {
		log.WithError(err).Fatal("Failed to start parallel hydration")
	}

	log.WithField("task_id", taskID).Info("Parallel hydration started")

	result := pollUntilTerminal(ctx, log, manager, taskID)
	if result == nil {
		return
	}

	for handle, outcome := range result.Results {
		log.WithFields(logrus.Fields{
			"job_handle":      handle,
			"items_processed": outcome.ItemsProcessed,
			"success_count":   outcome.SuccessCount,
			"error_count":     outcome.ErrorCount,
			"success_rate":    outcome.SuccessRate,
		}).Info("Job outcome")
	}
	for handle, message := range result.Errors {
		log.WithFields(logrus.Fields{
			"job_handle": handle,
			"error":      message,
		}).Warn("Job failed")
	}

	// Persist hydrated counters when a database is configured.
	if os.Getenv("DB_HOST") != "" {
		persistResults(ctx, log, jobs)
	}
}

// pollUntilTerminal watches the task until it reaches a terminal state
// and returns the aggregated result, nil on cancellation or failure.
func pollUntilTerminal(ctx context.Context, log *logrus.Logger, manager *tasks.Manager, taskID string) *hydration.ParallelResult {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Shutdown requested while hydration in flight")
			return nil
		case <-ticker.C:
		}

		task, ok := manager.Get(taskID)
		if !ok {
			log.WithField("task_id", taskID).Error("Task disappeared")
			return nil
		}

		log.WithFields(logrus.Fields{
			"task_id":  taskID,
			"status":   task.Status,
			"progress": task.Progress.Percentage(),
			"message":  task.Progress.Message,
		}).Debug("Hydration progress")

		if !task.Status.Terminal() {
			continue
		}

		if task.Status != tasks.StatusCompleted {
			log.WithFields(logrus.Fields{
				"task_id": taskID,
				"status":  task.Status,
				"error":   task.Error,
			}).Error("Hydration task did not complete")
			return nil
		}

		result, ok := task.Result.(*hydration.ParallelResult)
		if !ok {
			log.WithField("task_id", taskID).Error("Unexpected task result type")
			return nil
		}

		log.WithFields(logrus.Fields{
			"task_id":        taskID,
			"completed_jobs": result.CompletedJobs,
			"total_jobs":     result.TotalJobs,
			"success_rate":   result.SuccessRate(),
		}).Info("Hydration complete")
		return result
	}
}

func persistResults(ctx context.Context, log *logrus.Logger, jobs []hydration.Job) {
	database, err := db.SetupDatabase(log)
	if err != nil {
		log.WithError(err).Error("Failed to set up database, skipping persistence")
		return
	}

	store, err := memory.NewPostStore(log, database)
	if err != nil {
		log.WithError(err).Error("Failed to create post store")
		return
	}

	for _, job := range jobs {
		if err := store.SaveHydratedPosts(ctx, job.Posts); err != nil {
			log.WithError(err).WithField("job_handle", job.Handle).Error("Failed to persist hydrated posts")
		}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
