package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paydeck/wallet/internal/authorization"
	"github.com/paydeck/wallet/internal/logger"
	"github.com/paydeck/wallet/internal/middlewares"
	"github.com/paydeck/wallet/internal/reconcile"
	"github.com/paydeck/wallet/internal/storage"
	"github.com/paydeck/wallet/internal/withdraw"
)

type HTTPRouter struct {
	mux        *chi.Mux
	storage    storage.Storage
	authorizer authorization.Authorizer
	gateway    OrderCreator
	engine     *reconcile.Engine
	controller *withdraw.Controller
	minTopup   int64
}

func NewHTTPRouter(
	s storage.Storage,
	a authorization.Authorizer,
	g OrderCreator,
	e *reconcile.Engine,
	c *withdraw.Controller,
	minTopup int64,
) *HTTPRouter {
	r := chi.NewRouter()
	return &HTTPRouter{mux: r, storage: s, authorizer: a, gateway: g, engine: e, controller: c, minTopup: minTopup}
}

func (r *HTTPRouter) RouterInit(ctx context.Context) error {
	storage := r.storage
	authorizer := r.authorizer
	r.mux.Use(middleware.Logger)
	r.mux.Use(middleware.Compress(5))

	r.mux.Route("/api/user", func(mux chi.Router) {
		mux.Post("/register", RegisterPostHandler(ctx, storage, authorizer))
		mux.Post("/login", LoginPostHandler(ctx, storage, authorizer))

		mux.Post("/topup", middlewares.Authorize(authorizer, TopupPostHandler(ctx, storage, r.gateway, r.minTopup)))
		mux.Get("/orders", middlewares.Authorize(authorizer, OrdersGetHandler(ctx, storage)))

		mux.Route("/balance", func(mux chi.Router) {
			mux.Get("/", middlewares.Authorize(authorizer, BalanceGetHandler(ctx, storage)))
			mux.Post("/withdraw", middlewares.Authorize(authorizer, WithdrawPostHandler(ctx, r.controller)))
		})

		mux.Get("/withdrawals", middlewares.Authorize(authorizer, WithdrawalsGetHandler(ctx, storage)))
	})

	// gateway webhook, authenticated by signature instead of token
	r.mux.Post("/api/payment/notification", NotificationPostHandler(ctx, r.engine))

	r.mux.NotFound(NotFoundHandler())
	return nil
}

func (r *HTTPRouter) Mux() http.Handler {
	return r.mux
}

func (r *HTTPRouter) StartRouter(ra string) error {
	logger.Log.Info("Http Router starting")
	err := http.ListenAndServe(ra, r.mux)
	if err != nil {
		return err
	}
	return nil
}
