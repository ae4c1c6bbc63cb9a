package app

import (
	"context"
	"time"

	"github.com/paydeck/wallet/internal/authorization/jwt"
	"github.com/paydeck/wallet/internal/config"
	"github.com/paydeck/wallet/internal/gateway"
	"github.com/paydeck/wallet/internal/handlers"
	"github.com/paydeck/wallet/internal/logger"
	"github.com/paydeck/wallet/internal/reconcile"
	"github.com/paydeck/wallet/internal/storage"
	"github.com/paydeck/wallet/internal/storage/postgresql"
	"github.com/paydeck/wallet/internal/withdraw"
	"go.uber.org/zap"
)

type App struct {
	config  config.Config
	storage storage.Storage
}

// NewApp creates a new App instance with the given config
func NewApp(cfg config.Config) *App {
	return &App{config: cfg}
}

// Start App
func (a *App) Start(ctx context.Context) error {
	logger.LoggerInit(a.config.LogLevel)
	// secrets are configured but never logged
	logger.Log.Info("Starting application",
		zap.String("run_address", a.config.RunAddress),
		zap.String("database_uri", a.config.DatabaseURI),
		zap.String("gateway_url", a.config.GatewayURL),
		zap.String("log_level", a.config.LogLevel),
		zap.Int("token_timeout", a.config.TokenTimeout),
		zap.Int("gateway_req_repeats", a.config.GatewayReqRepeats),
		zap.Int64("min_topup", a.config.MinTopup),
		zap.Int64("max_withdraw", a.config.MaxWithdraw),
		zap.Int64("daily_withdraw_limit", a.config.DailyWithdrawLimit),
	)

	a.storage = postgresql.NewPsqlStorage(a.config.DatabaseURI)
	err := a.storage.InitStorage(ctx)
	if err != nil {
		return err
	}

	gatewayClient := gateway.NewClient(a.config.GatewayURL, a.config.GatewayServerKey, a.config.GatewayReqRepeats)
	verifier := gateway.NewSignatureVerifier(a.config.GatewayServerKey)
	engine := reconcile.NewEngine(a.storage, verifier)
	controller := withdraw.NewController(a.storage, a.config.MaxWithdraw, a.config.DailyWithdrawLimit)
	authorizer := jwt.NewJwtTokenizer(a.config.TokenKey, time.Duration(a.config.TokenTimeout)*time.Hour)

	router := handlers.NewHTTPRouter(a.storage, authorizer, gatewayClient, engine, controller, a.config.MinTopup)
	err = router.RouterInit(ctx)
	if err != nil {
		return err
	}
	err = router.StartRouter(a.config.RunAddress)
	if err != nil {
		return err
	}
	return nil
}

func (a *App) Stop(cancel context.CancelFunc) {
	logger.Log.Debug("Syncing logger")
	logger.Log.Sync()
	if a.storage != nil {
		a.storage.DbClose()
	}
	cancel()
	// wait for logging from handlers in flight
	time.Sleep(time.Second * 1)
}
