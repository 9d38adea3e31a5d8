// Command toolify-admin runs the operator-facing sidecar: runtime stats
// and a manual config reload trigger, bound to a separate port from the
// client-facing proxy.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/funnycups/toolify-go/internal/admin"
	"github.com/funnycups/toolify-go/internal/config"
	"github.com/funnycups/toolify-go/internal/idmap"
	"github.com/funnycups/toolify-go/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file shared with toolify")
	port := flag.Int("port", 9090, "admin sidecar listen port")
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

	idMap := idmap.New(
		orDefault(app.IDMap.MaxSize, 1000),
		time.Duration(orDefault(app.IDMap.TTLSeconds, 3600))*time.Second,
		time.Duration(orDefault(app.IDMap.CleanupInterval, 300))*time.Second,
	)
	defer idMap.Close()

	loader.Watch()

	handler := admin.New(admin.Deps{Loader: loader, IDMap: idMap, Logger: logger})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(*port),
		Handler: handler,
	}

	go func() {
		logger.Info("toolify-admin listening", zap.Int("port", *port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down admin sidecar")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
