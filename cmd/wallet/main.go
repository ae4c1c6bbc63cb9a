package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/paydeck/wallet/internal/app"
	"github.com/paydeck/wallet/internal/config"
	"github.com/paydeck/wallet/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Channels for signals
	osSigCh := make(chan os.Signal, 1)
	signal.Notify(osSigCh, syscall.SIGINT, syscall.SIGTERM)
	errCh := make(chan error)

	ctx, cancel := context.WithCancel(context.Background())

	appCfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("application config initialisation failed err: %v", err)
	}

	application := app.NewApp(*appCfg)
	go func() {
		err := application.Start(ctx)
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case sig := <-osSigCh:
		logger.Log.Info("Stopping application, os sig received", zap.String("signal", sig.String()))
		application.Stop(cancel)
	case err := <-errCh:
		logger.Log.Error("Application error", zap.Error(err))
		application.Stop(cancel)
	}
}
