package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/stocknews/newsbot/internal/config"
	"github.com/stocknews/newsbot/internal/pipeline"
	"github.com/stocknews/newsbot/internal/scheduler"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting stock news bot")

	backends, err := pipeline.OpenBackends(context.Background(), cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize backends: %v", err)
	}
	defer backends.Close()

	pipelineService, err := pipeline.NewService(cfg, backends.Store, backends.Seen)
	if err != nil {
		logrus.Fatalf("Failed to initialize pipeline: %v", err)
	}

	schedulerService := scheduler.NewService(cfg, pipelineService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	router := mux.NewRouter()
	router.HandleFunc("/metrics", metricsHandler(pipelineService)).Methods("GET")
	router.HandleFunc("/trigger/scrape", scrapeTriggerHandler(pipelineService)).Methods("POST")
	router.HandleFunc("/trigger/enrich", enrichTriggerHandler(pipelineService)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func metricsHandler(service *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(service.GetMetrics()))
	}
}

// scrapeTriggerHandler starts a scrape in the background and answers immediately
func scrapeTriggerHandler(service *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := pipeline.JobParams{
			PublishTimeAfter: r.URL.Query().Get("publishTimeAfter"),
			Limit:            r.URL.Query().Get("limit"),
		}
		publishedAfter, limit := params.Resolve(time.Now())

		go func() {
			if _, err := service.RunScrape(context.Background(), params); err != nil {
				logTriggerError("scrape", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"message":          "Scrape triggered",
			"publishTimeAfter": publishedAfter.Format(time.RFC3339),
			"limit":            limit,
		})
	}
}

func enrichTriggerHandler(service *pipeline.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			if _, err := service.RunEnrichment(context.Background()); err != nil {
				logTriggerError("enrichment", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{"message": "Enrichment triggered"})
	}
}

func logTriggerError(job string, err error) {
	if errors.Is(err, pipeline.ErrJobRunning) {
		logrus.Warnf("Manual %s trigger ignored: previous run still in progress", job)
		return
	}
	logrus.Errorf("Manual %s trigger failed: %v", job, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}
