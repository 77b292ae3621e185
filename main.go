package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AnTengye/contractchat/config"
	"github.com/AnTengye/contractchat/handler"
	"github.com/AnTengye/contractchat/middleware"
	"github.com/AnTengye/contractchat/pkg/logger"
	"github.com/AnTengye/contractchat/service"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully",
		"api_base_url", cfg.Backend.APIBaseURL(),
		"environment", cfg.Backend.Environment,
	)

	// Initialize services
	kv, err := service.OpenKVStore(cfg.Storage.File)
	if err != nil {
		slog.Error("failed to open local storage", "file", cfg.Storage.File, "error", err)
		os.Exit(1)
	}
	tokens := service.NewTokenStore(kv)
	backend := service.NewBackendClient(&cfg.Backend, tokens)

	session := service.NewSession(backend, tokens)
	premium := service.NewPremiumReconciler(backend, session, tokens)
	selection := service.NewSelection()
	manifests := service.NewManifestStore(cfg.Uploads.MaxManifests)
	sources := []service.FileSource{service.LocalSource{}}

	if cfg.MinioEnabled() {
		minioSource, err := service.NewMinioSource(&cfg.Minio)
		if err != nil {
			slog.Error("failed to initialize MinIO source", "error", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = minioSource.CheckBucket(ctx)
		cancel()
		if err != nil {
			slog.Error("MinIO bucket unavailable", "bucket", cfg.Minio.Bucket, "error", err)
			os.Exit(1)
		}
		sources = append(sources, minioSource)
		slog.Info("MinIO source enabled", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
	}

	// Resolve the stored session before serving so the first request sees it
	startup := session.Bootstrap(context.Background(), service.BootstrapParams{})
	slog.Info("stored session checked", "view", startup.View)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.Deps{
		Tokens:    tokens,
		Session:   session,
		Premium:   premium,
		Checkout:  service.NewCheckout(backend, tokens),
		Selection: selection,
		Sources:   sources,
		Uploader:  service.NewUploader(backend, session, premium, selection, manifests),
		Manifests: manifests,
		Browser:   service.NewJobBrowser(backend),
		Chat:      service.NewChatPane(backend, cfg.Chat.SuggestedQuestions),
		Throttle: middleware.NewThrottle(
			cfg.Server.Throttle.Requests,
			time.Duration(cfg.Server.Throttle.WindowSeconds)*time.Second,
		),
		StaticDir: cfg.Server.StaticDir,
	})

	// Uploads and chat replies can take as long as the backend allows
	backendTimeout := time.Duration(cfg.Backend.TimeoutSeconds) * time.Second
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  backendTimeout + 10*time.Second,
		WriteTimeout: backendTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
