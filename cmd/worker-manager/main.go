// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"scrape-planner/internal/common/camunda"
	"scrape-planner/internal/common/config"
	"scrape-planner/internal/common/database"
	"scrape-planner/internal/common/genai"
	"scrape-planner/internal/common/logger"
	"scrape-planner/internal/common/observability"
	"scrape-planner/internal/nlu/conversation"
	"scrape-planner/internal/nlu/entityextractor"
	"scrape-planner/internal/nlu/intentclassifier"
	"scrape-planner/internal/nlu/logicprocessor"
	"scrape-planner/internal/nlu/pipeline"

	cs "scrape-planner/internal/workers/scrape-planning/cleanup-sessions"
	psr "scrape-planner/internal/workers/scrape-planning/plan-scrape-request"
	ss "scrape-planner/internal/workers/scrape-planning/summarize-session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager...", map[string]interface{}{
		"app":         cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.Metrics.ServiceName)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Session store ---
	var (
		store conversation.Store
		redis *database.RedisClient
	)
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, log, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		store = conversation.NewRedisStore(redis, cfg.Session.SessionTTL())
		log.Info("Redis session store connected", map[string]interface{}{"address": cfg.Database.Redis.Address})
	default:
		store = conversation.NewMemoryStore()
		log.Info("Using in-memory session store", nil)
	}

	// --- Planner ---
	completer := genai.NewClient(&genai.Config{
		BaseURL: cfg.APIs.GenAI.BaseURL,
		APIKey:  cfg.APIs.GenAI.APIKey,
		Timeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
	}, log)

	clk := clock.New()
	manager := conversation.NewManager(store, clk, log)
	planner := pipeline.NewPlanner(
		entityextractor.New(clk, log),
		intentclassifier.New(completer, intentclassifier.Config{
			Temperature: cfg.Planner.IntentTemperature,
			MaxTokens:   cfg.Planner.IntentMaxTokens,
		}, log),
		logicprocessor.New(completer, logicprocessor.Config{
			Temperature: cfg.Planner.ConditionTemperature,
			MaxTokens:   cfg.Planner.ConditionMaxTokens,
		}, clk, log),
		manager,
		obs,
		log,
	)

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}

	workers := []*camunda.Worker{
		camunda.StartWorker(zeebe.GetClient(), psr.TaskType, cfg.Workers[psr.TaskType],
			psr.NewHandler(psr.ConfigFrom(cfg), planner, obs, log), log),
		camunda.StartWorker(zeebe.GetClient(), ss.TaskType, cfg.Workers[ss.TaskType],
			ss.NewHandler(ss.ConfigFrom(cfg), manager, obs, log), log),
		camunda.StartWorker(zeebe.GetClient(), cs.TaskType, cfg.Workers[cs.TaskType],
			cs.NewHandler(cs.ConfigFrom(cfg), manager, obs, log), log),
	}

	var background conc.WaitGroup

	// --- Periodic session cleanup ---
	if interval := cfg.Session.CleanupInterval(); interval > 0 {
		background.Go(func() {
			ticker := clk.Ticker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					manager.Cleanup(ctx, cfg.Session.MaxAgeHours)
				}
			}
		})
	}

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"zeebe": "ok"}
		status := http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			checks["zeebe"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if redis != nil {
			checks["redis"] = "ok"
			if err := redis.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		label := "ready"
		if status != http.StatusOK {
			label = "not_ready"
		}
		writeStatus(w, status, label, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	background.Go(func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": cfg.Metrics.Address})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	})

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	cancel()

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping Health/Metrics server", map[string]interface{}{"error": err.Error()})
	}
	background.Wait()

	if err := zeebe.Close(); err != nil {
		log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if checks != nil {
		body["checks"] = checks
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
