package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/api"
	"github.com/yourusername/mediaq-go/api/handlers"
	"github.com/yourusername/mediaq-go/internal/app"
	"github.com/yourusername/mediaq-go/internal/domain"
	"github.com/yourusername/mediaq-go/internal/infrastructure"
	"github.com/yourusername/mediaq-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var (
	serverMode = flag.Bool("server-mode", false, "Run in the foreground instead of daemonizing")
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// If not in server mode, run as daemon
	if !*serverMode {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "mediaq-server: %v\n", err)
		os.Exit(1)
	}
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	// Categorized logs: queue, error, install
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize category logs: %w", err)
	}
	defer multiLog.Close()

	log.Info("Starting mediaq server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Int("max_concurrent", config.Download.MaxConcurrent),
		zap.String("output_dir", config.Download.OutputDir))

	if err := os.MkdirAll(config.Download.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	bus := app.NewProgressBus(log)
	defer bus.Close()
	store := app.NewTaskStore(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := infrastructure.NewBinaryRegistry(&config.Binaries, bus, log, multiLog)
	status := registry.CheckBinaries(ctx)
	log.Info("External tools",
		zap.Bool("yt_dlp_installed", status.YTDLP.Installed),
		zap.Stringp("yt_dlp_version", status.YTDLP.Version),
		zap.Bool("ffmpeg_installed", status.FFmpeg.Installed),
		zap.Stringp("ffmpeg_version", status.FFmpeg.Version))
	if !status.YTDLP.Installed {
		log.Warn("yt-dlp not found; downloads will fail until it is installed (mediaq install yt-dlp)")
	}

	resolver := infrastructure.NewYTDLPResolver(registry, &config.Resolver, log)
	worker := infrastructure.NewYTDLPWorker(registry, &config.Download, log, multiLog)

	var history domain.HistoryRepository
	if config.Queue.PersistHistory {
		repo, err := infrastructure.NewSQLiteHistoryRepository(config.Queue.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer repo.Close()
		history = repo
	}

	scheduler := app.NewScheduler(store, worker, history, registry, &config.Download, log, multiLog)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if config.Notification.Enabled {
		notifier := infrastructure.NewNotificationService(&config.Notification, log)
		sub := bus.Subscribe(0)
		defer sub.Close()
		go notifier.Watch(ctx, sub.C)
	}

	router := api.SetupRouter(api.Dependencies{
		Queue:       scheduler,
		Resolver:    resolver,
		Binaries:    registry,
		Events:      bus,
		Logger:      log,
		MultiLogger: multiLog,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Active downloads are cancelled and their process trees reaped before exit
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping scheduler", zap.Error(err))
	}

	// Closing the bus ends open event streams so Shutdown does not wait on them
	bus.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
