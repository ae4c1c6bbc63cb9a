package storage

import (
	"context"
	"errors"

	"github.com/paydeck/wallet/internal/models"
)

var (
	ErrOrderExists        = errors.New("order already exists")
	ErrLoginExists        = errors.New("login already exists")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDailyLimitExceeded = errors.New("daily withdrawal limit exceeded")
)

type Storage interface {
	InitStorage(ctx context.Context) error
	DbClose() error

	AddUser(ctx context.Context, user *models.User) error
	IsLoginFree(ctx context.Context, login string) (bool, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	AddOrder(ctx context.Context, o models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrders(ctx context.Context, uid string) ([]models.Order, error)

	// SettleOrder claims the settlement marker for the order and, on
	// first claim only, credits the owner's balance and marks the order
	// settled, all in one transaction. Returns false when the order was
	// already settled.
	SettleOrder(ctx context.Context, orderID string) (bool, error)
	// CloseOrder moves a pending order to the given terminal status.
	// No-op with success if the order already left pending.
	CloseOrder(ctx context.Context, orderID string, status string) error

	GetBalanceByUserID(ctx context.Context, uid string) (*models.UserBalance, error)

	// CreateWithdrawal admits, debits and records a withdrawal as one
	// transaction serialized on the user's balance row. Returns the
	// remaining balance. Fails with ErrInsufficientFunds or
	// ErrDailyLimitExceeded without mutating anything.
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal, dailyLimit int64) (int64, error)
	GetWithdrawals(ctx context.Context, uid string) ([]models.Withdrawal, error)
}
