// Command toolify runs the client-facing reverse proxy: it accepts OpenAI
// Chat Completions and Anthropic Messages requests, retrofits structured
// tool calling onto backends that don't speak it natively, and routes to
// one or more configured upstream services.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/funnycups/toolify-go/internal/config"
	"github.com/funnycups/toolify-go/internal/gateway"
	"github.com/funnycups/toolify-go/internal/idmap"
	"github.com/funnycups/toolify-go/internal/logging"
	"github.com/funnycups/toolify-go/internal/promptinjector"
	"github.com/funnycups/toolify-go/internal/sentinel"
	"github.com/funnycups/toolify-go/internal/server"
	"github.com/funnycups/toolify-go/internal/telemetryx"
	"github.com/funnycups/toolify-go/internal/upstream"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	bootstrapLogger, _ := zap.NewProduction()

	loader, err := config.NewLoader(*configPath, bootstrapLogger)
	if err != nil {
		bootstrapLogger.Fatal("failed to load configuration", zap.Error(err))
	}
	app := loader.Current()

	logger, err := logging.New(logging.Config{Level: app.Features.LogLevel})
	if err != nil {
		bootstrapLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTelemetry, err := telemetryx.Init(ctx, telemetryx.Settings{
		Enabled:      app.Telemetry.Enabled,
		OTLPEndpoint: app.Telemetry.OTLPEndpoint,
		ServiceName:  app.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer shutdownTelemetry(context.Background())

	idMap := idmap.New(
		orDefault(app.IDMap.MaxSize, 1000),
		time.Duration(orDefault(app.IDMap.TTLSeconds, 3600))*time.Second,
		time.Duration(orDefault(app.IDMap.CleanupInterval, 300))*time.Second,
	)
	defer idMap.Close()

	trigger, err := sentinel.Generate()
	if err != nil {
		logger.Fatal("failed to generate trigger signal", zap.Error(err))
	}
	logger.Info("generated trigger signal for this process", zap.String("signal", trigger))

	pool := upstream.NewPool(upstream.DefaultClient, 0, 0)

	var gw atomic.Pointer[gateway.Gateway]
	buildGateway := func(app *config.App) *gateway.Gateway {
		return &gateway.Gateway{
			Router:                   app.BuildRouterConfig(),
			IDMap:                    idMap,
			Upstream:                 pool,
			Signal:                   trigger,
			Logger:                   logger,
			ConvertDeveloperToSystem: app.Features.ConvertDeveloperToSystem,
			PromptOptions: promptinjector.Options{
				CustomTemplate: app.Features.PromptTemplate,
				Optimize:       app.Features.OptimizePrompt,
			},
			KeyPassthrough: app.Features.KeyPassthrough,
		}
	}
	gw.Store(buildGateway(app))

	loader.OnChange(func(app *config.App) {
		gw.Store(buildGateway(app))
		logger.Info("gateway rebuilt from reloaded configuration")
	})
	loader.Watch()

	handler := server.New(loader, logger, func() *gateway.Gateway { return gw.Load() })

	addr := app.Server.Host + ":" + strconv.Itoa(app.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(orDefault(app.Server.Timeout, 180)) * time.Second,
		WriteTimeout: time.Duration(orDefault(app.Server.Timeout, 180)) * time.Second,
	}

	go func() {
		logger.Info("toolify listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
