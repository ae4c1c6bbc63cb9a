package reconcile

import (
	"context"
	"errors"

	"github.com/paydeck/wallet/internal/constants"
	"github.com/paydeck/wallet/internal/logger"
	"github.com/paydeck/wallet/internal/models"
	"go.uber.org/zap"
)

var ErrBadSignature = errors.New("notification signature mismatch")

// Verifier authenticates a notification against the gateway's keyed digest.
type Verifier interface {
	Verify(orderID string, statusCode string, grossAmount string, provided string) bool
}

// OrderStorage is the slice of storage the engine mutates orders through.
type OrderStorage interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	SettleOrder(ctx context.Context, orderID string) (bool, error)
	CloseOrder(ctx context.Context, orderID string, status string) error
}

type Outcome int

const (
	OutcomeSettled Outcome = iota
	OutcomeDuplicate
	OutcomeUnknownOrder
	OutcomeClosed
	OutcomeIgnored
)

// Engine applies gateway notifications to the ledger. Every outcome
// except a signature mismatch or a storage failure is acknowledged to
// the gateway as success, so only genuine internal errors cause
// redelivery.
type Engine struct {
	storage  OrderStorage
	verifier Verifier
}

func NewEngine(s OrderStorage, v Verifier) *Engine {
	return &Engine{storage: s, verifier: v}
}

func (e *Engine) Process(ctx context.Context, n models.Notification) (Outcome, error) {
	if !e.verifier.Verify(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		logger.Log.Warn("notification rejected - bad signature", zap.String("order", n.OrderID))
		return OutcomeIgnored, ErrBadSignature
	}

	order, err := e.storage.GetOrderByID(ctx, n.OrderID)
	if err != nil {
		return OutcomeIgnored, err
	}
	if order == nil {
		// gateway may notify about orders that are not ours
		logger.Log.Info("notification for unknown order ignored", zap.String("order", n.OrderID))
		return OutcomeUnknownOrder, nil
	}

	switch n.TransactionStatus {
	case constants.TxStatusSettlement, constants.TxStatusCapture:
		credited, err := e.storage.SettleOrder(ctx, n.OrderID)
		if err != nil {
			return OutcomeIgnored, err
		}
		if !credited {
			if order.Status == constants.OrderStatusExpired || order.Status == constants.OrderStatusFailed {
				logger.Log.Info("settlement for closed order ignored",
					zap.String("order", n.OrderID), zap.String("status", order.Status))
				return OutcomeIgnored, nil
			}
			logger.Log.Info("duplicate settlement notification", zap.String("order", n.OrderID))
			return OutcomeDuplicate, nil
		}
		logger.Log.Info("order settled",
			zap.String("order", n.OrderID),
			zap.String("user", order.UserID),
			zap.Int64("amount", order.Amount))
		return OutcomeSettled, nil
	case constants.TxStatusExpire:
		if err := e.storage.CloseOrder(ctx, n.OrderID, constants.OrderStatusExpired); err != nil {
			return OutcomeIgnored, err
		}
		logger.Log.Info("order expired", zap.String("order", n.OrderID))
		return OutcomeClosed, nil
	case constants.TxStatusCancel, constants.TxStatusDeny, constants.TxStatusFailure:
		if err := e.storage.CloseOrder(ctx, n.OrderID, constants.OrderStatusFailed); err != nil {
			return OutcomeIgnored, err
		}
		logger.Log.Info("order failed", zap.String("order", n.OrderID), zap.String("tx_status", n.TransactionStatus))
		return OutcomeClosed, nil
	default:
		// pending and anything unrecognized is acknowledged so the
		// gateway does not keep retrying
		logger.Log.Debug("notification with non-final status ignored",
			zap.String("order", n.OrderID), zap.String("tx_status", n.TransactionStatus))
		return OutcomeIgnored, nil
	}
}
