package withdraw

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/paydeck/wallet/internal/constants"
	"github.com/paydeck/wallet/internal/logger"
	"github.com/paydeck/wallet/internal/models"
	"github.com/paydeck/wallet/internal/utils"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount      = errors.New("withdrawal amount out of range")
	ErrInvalidDestination = errors.New("withdrawal destination is not a valid account number")
)

// LedgerStorage is the slice of storage the controller debits through.
type LedgerStorage interface {
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal, dailyLimit int64) (int64, error)
}

// Controller admits withdrawal requests: range check here, sufficiency
// and daily cap inside the storage transaction so two concurrent
// requests of the same user never pass against the same baseline.
type Controller struct {
	storage    LedgerStorage
	maxAmount  int64
	dailyLimit int64
}

func NewController(s LedgerStorage, maxAmount int64, dailyLimit int64) *Controller {
	return &Controller{storage: s, maxAmount: maxAmount, dailyLimit: dailyLimit}
}

// Request validates, debits and records a withdrawal. Returns the
// record and the remaining balance.
func (c *Controller) Request(ctx context.Context, uid string, amount int64, destination string) (*models.Withdrawal, int64, error) {
	if amount <= 0 || amount > c.maxAmount {
		return nil, 0, ErrInvalidAmount
	}
	if !utils.CheckIsNumbersOnly(destination) || !utils.CheckLuhn(destination) {
		return nil, 0, ErrInvalidDestination
	}
	w := models.Withdrawal{
		ID:          uuid.New().String(),
		UserID:      uid,
		Amount:      amount,
		Destination: destination,
		Status:      constants.WithdrawalStatusApproved,
	}
	remaining, err := c.storage.CreateWithdrawal(ctx, &w, c.dailyLimit)
	if err != nil {
		return nil, 0, err
	}
	logger.Log.Info("withdrawal admitted",
		zap.String("withdrawal", w.ID),
		zap.String("user", uid),
		zap.Int64("amount", amount),
		zap.Int64("remaining", remaining))
	return &w, remaining, nil
}
