package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menta2k/mri-highlighter/internal/config"
	"github.com/menta2k/mri-highlighter/internal/server"
	"github.com/menta2k/mri-highlighter/pkg/detection"
	"github.com/menta2k/mri-highlighter/pkg/processing"
)

func main() {
	var configPath, addr, backend string
	flag.StringVar(&configPath, "config", "", "config file (.json or .yaml, default ~/.config/mri-highlighter/config.yaml if present)")
	flag.StringVar(&addr, "addr", "", "listen address (default from config or $MRI_ADDR)")
	flag.StringVar(&backend, "backend", "", "inference backend: huggingface|ollama|llamacpp")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if backend != "" {
		cfg.Inference.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	opts, err := cfg.DetectionOptions()
	if err != nil {
		logger.Fatal("invalid pipeline options", zap.Error(err))
	}

	// The backend client is created once and shared by all requests
	inferer, err := cfg.NewInferer()
	if err != nil {
		logger.Fatal("failed to create inference client", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	handler := server.NewHandler(
		detection.NewDetectorWithOptions(inferer, opts),
		processing.NewProcessorWithMinSize(cfg.Server.MinImageSize),
		logger,
		server.Config{
			MaxUploadMB:   cfg.Server.MaxUploadMB,
			DefaultPrompt: cfg.Pipeline.Prompt,
		},
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Inference.Backend),
			zap.String("mode", cfg.Pipeline.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
