package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/paydeck/wallet/internal/authorization"
	"github.com/paydeck/wallet/internal/constants"
	"github.com/paydeck/wallet/internal/logger"
	"github.com/paydeck/wallet/internal/middlewares"
	"github.com/paydeck/wallet/internal/models"
	"github.com/paydeck/wallet/internal/reconcile"
	"github.com/paydeck/wallet/internal/storage"
	"github.com/paydeck/wallet/internal/withdraw"
	"go.uber.org/zap"
)

// OrderCreator is the payment gateway side of a top-up.
type OrderCreator interface {
	CreateOrder(ctx context.Context, orderID string, amount int64) (*models.GatewayOrder, error)
}

type topupRequest struct {
	Amount int64 `json:"amount"`
}

type topupResponse struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type withdrawRequest struct {
	Amount      int64  `json:"amount"`
	Destination string `json:"destination"`
}

type withdrawResponse struct {
	WithdrawalID     string `json:"withdrawal_id"`
	RemainingBalance int64  `json:"remaining_balance"`
}

func RegisterPostHandler(ctx context.Context, s storage.Storage, a authorization.Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		if appType := r.Header.Get("Content-Type"); appType != constants.CntTypeHeaderJson {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request Content-Type"))
			return
		}
		reqBody, err := io.ReadAll(r.Body)
		defer r.Body.Close()
		if err != nil {
			logger.Log.Error("registration handler error - body reading error", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		var userData models.User
		if err = json.Unmarshal(reqBody, &userData); err != nil {
			logger.Log.Debug("registration handler error - body deserialisation error", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request format"))
			return
		}
		if userData.Login == "" || userData.Password == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Login and password are required"))
			return
		}
		userData.ID = uuid.New().String()
		pwdHash := sha256.Sum256([]byte(userData.Password))
		userData.Password = hex.EncodeToString(pwdHash[:])
		// Checking user existence
		checkLoginFree, err := s.IsLoginFree(ctx, userData.Login)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		if !checkLoginFree {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte("Login already used"))
			return
		}
		if err := s.AddUser(ctx, &userData); err != nil {
			// concurrent registration of the same login loses the
			// unique-constraint race after the free-login check
			if errors.Is(err, storage.ErrLoginExists) {
				w.WriteHeader(http.StatusConflict)
				w.Write([]byte("Login already used"))
				return
			}
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		token, err := a.ProduceToken(userData.ID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Add(constants.CookieToken, token)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User registered and authorized successfully"))
	}
}

func LoginPostHandler(ctx context.Context, s storage.Storage, a authorization.Authorizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		if appType := r.Header.Get("Content-Type"); appType != constants.CntTypeHeaderJson {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request Content-Type"))
			return
		}
		reqBody, err := io.ReadAll(r.Body)
		defer r.Body.Close()
		if err != nil {
			logger.Log.Error("login handler error - body reading error", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		var userData models.User
		if err = json.Unmarshal(reqBody, &userData); err != nil {
			logger.Log.Debug("login handler error - body deserialisation error", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request format"))
			return
		}
		pwdHash := sha256.Sum256([]byte(userData.Password))
		pwdHashString := hex.EncodeToString(pwdHash[:])
		user, err := s.GetUserByLogin(ctx, userData.Login)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		if user == nil || pwdHashString != user.Password {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Wrong username or password"))
			return
		}
		token, err := a.ProduceToken(user.ID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Add(constants.CookieToken, token)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User authorized successfully"))
	}
}

func TopupPostHandler(ctx context.Context, s storage.Storage, g OrderCreator, minTopup int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		if appType := r.Header.Get("Content-Type"); appType != constants.CntTypeHeaderJson {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request Content-Type"))
			return
		}
		userID, ok := r.Context().Value(middlewares.UID).(string)
		if !ok {
			logger.Log.Error("topup handler error - getting uid value from request context failed")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		reqBody, err := io.ReadAll(r.Body)
		defer r.Body.Close()
		if err != nil {
			logger.Log.Error("topup handler error - body reading error", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		var topup topupRequest
		if err = json.Unmarshal(reqBody, &topup); err != nil {
			logger.Log.Debug("topup handler error - body deserialisation error", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request format"))
			return
		}
		// amount validated before any gateway call
		if topup.Amount < minTopup {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte("Top-up amount is below the minimum"))
			return
		}
		order := models.Order{
			ID:        uuid.New().String(),
			UserID:    userID,
			Amount:    topup.Amount,
			Status:    constants.OrderStatusPending,
			CreatedAt: time.Now(),
		}
		// persist pending first so a fast webhook always finds the order
		if err = s.AddOrder(ctx, order); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		gwOrder, err := g.CreateOrder(ctx, order.ID, order.Amount)
		if err != nil {
			logger.Log.Error("topup handler error - gateway order creation failed", zap.String("order", order.ID), zap.Error(err))
			if err := s.CloseOrder(ctx, order.ID, constants.OrderStatusFailed); err != nil {
				logger.Log.Error("topup handler error - closing failed order", zap.String("order", order.ID), zap.Error(err))
			}
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("Payment gateway unavailable"))
			return
		}
		resp, err := json.Marshal(topupResponse{
			OrderID:     order.ID,
			Token:       gwOrder.Token,
			RedirectURL: gwOrder.RedirectURL,
		})
		if err != nil {
			logger.Log.Error("topup handler error - response serialization failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Set("Content-Type", constants.CntTypeHeaderJson)
		w.WriteHeader(http.StatusOK)
		w.Write(resp)
	}
}

func NotificationPostHandler(ctx context.Context, e *reconcile.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqBody, err := io.ReadAll(r.Body)
		defer r.Body.Close()
		if err != nil {
			logger.Log.Error("notification handler error - body reading error", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		var notification models.Notification
		if err = json.Unmarshal(reqBody, &notification); err != nil {
			logger.Log.Debug("notification handler error - body deserialisation error", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request format"))
			return
		}
		_, err = e.Process(ctx, notification)
		if err != nil {
			if errors.Is(err, reconcile.ErrBadSignature) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte("Invalid signature"))
				return
			}
			// storage failure - gateway should redeliver
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Set("Content-Type", constants.CntTypeHeaderJson)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}

func BalanceGetHandler(ctx context.Context, s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(middlewares.UID).(string)
		if !ok {
			logger.Log.Error("balance get handler error - getting uid value from request context failed")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		balance, err := s.GetBalanceByUserID(ctx, userID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		jsonBalance, err := json.Marshal(balance)
		if err != nil {
			logger.Log.Error("balance get handler error - balance serialization failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Set("Content-Type", constants.CntTypeHeaderJson)
		w.WriteHeader(http.StatusOK)
		w.Write(jsonBalance)
	}
}

func WithdrawPostHandler(ctx context.Context, c *withdraw.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Content-Type check
		if appType := r.Header.Get("Content-Type"); appType != constants.CntTypeHeaderJson {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request Content-Type"))
			return
		}
		userID, ok := r.Context().Value(middlewares.UID).(string)
		if !ok {
			logger.Log.Error("withdraw handler error - getting uid value from request context failed")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		reqBody, err := io.ReadAll(r.Body)
		defer r.Body.Close()
		if err != nil {
			logger.Log.Error("withdraw handler error - body reading error", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		var req withdrawRequest
		if err = json.Unmarshal(reqBody, &req); err != nil {
			logger.Log.Debug("withdraw handler error - body deserialisation error", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("Wrong request format"))
			return
		}
		record, remaining, err := c.Request(ctx, userID, req.Amount, req.Destination)
		if err != nil {
			switch {
			case errors.Is(err, withdraw.ErrInvalidAmount):
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte("Withdrawal amount is out of range"))
			case errors.Is(err, withdraw.ErrInvalidDestination):
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte("Destination format is incorrect"))
			case errors.Is(err, storage.ErrInsufficientFunds):
				w.WriteHeader(http.StatusPaymentRequired)
				w.Write([]byte("Not enough funds on balance"))
			case errors.Is(err, storage.ErrDailyLimitExceeded):
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte("Daily withdrawal limit exceeded"))
			default:
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("Internal Server Error"))
			}
			return
		}
		resp, err := json.Marshal(withdrawResponse{WithdrawalID: record.ID, RemainingBalance: remaining})
		if err != nil {
			logger.Log.Error("withdraw handler error - response serialization failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Set("Content-Type", constants.CntTypeHeaderJson)
		w.WriteHeader(http.StatusOK)
		w.Write(resp)
	}
}

func WithdrawalsGetHandler(ctx context.Context, s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(middlewares.UID).(string)
		if !ok {
			logger.Log.Error("withdrawals get handler error - getting uid value from request context failed")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		withdrawals, err := s.GetWithdrawals(ctx, userID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		if len(withdrawals) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonWithdrawals, err := json.Marshal(withdrawals)
		if err != nil {
			logger.Log.Error("withdrawals get handler error - serialization failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Set("Content-Type", constants.CntTypeHeaderJson)
		w.WriteHeader(http.StatusOK)
		w.Write(jsonWithdrawals)
	}
}

func OrdersGetHandler(ctx context.Context, s storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(middlewares.UID).(string)
		if !ok {
			logger.Log.Error("orders get handler error - getting uid value from request context failed")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		orders, err := s.GetOrders(ctx, userID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonOrders, err := json.Marshal(orders)
		if err != nil {
			logger.Log.Error("orders get handler error - serialization failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
			return
		}
		w.Header().Set("Content-Type", constants.CntTypeHeaderJson)
		w.WriteHeader(http.StatusOK)
		w.Write(jsonOrders)
	}
}

func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not found"))
	}
}
