package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"secadvisor/internal/app"
	appconfig "secadvisor/internal/config"
	"secadvisor/internal/handlers"
	"secadvisor/internal/logging"
)

// Local run:
//
//	curl -X POST http://localhost:8000/invocations -H "Content-Type: application/json" -d '{"prompt":"EC2"}'
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := appconfig.Load(".env")
	if err != nil {
		logging.New("info", "json").Fatalf("load config: %v", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	inv, err := app.NewInvocationHandler(ctx, cfg, app.ClientsFromConfig(awsCfg), log)
	if err != nil {
		log.Fatalf("init agent: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	handlers.NewServer(inv).RegisterRoutes(e)

	go func() {
		log.WithField("port", cfg.Port).Info("agent is running")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
}
