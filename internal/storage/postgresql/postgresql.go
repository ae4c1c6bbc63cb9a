package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/paydeck/wallet/internal/constants"
	"github.com/paydeck/wallet/internal/logger"
	"github.com/paydeck/wallet/internal/models"
	"github.com/paydeck/wallet/internal/storage"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

func dbMigrate(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Log.Error("db driver error on migration", zap.Error(err))
		return err
	}
	m, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		logger.Log.Error("migration instance creation error on migration", zap.Error(err))
		return err
	}
	_, dirty, err := m.Version()
	if err != nil {
		switch err {
		case migrate.ErrNilVersion:
			logger.Log.Info("no migration was applied yet - first migration")
		default:
			logger.Log.Error("checking database dirty on migration error", zap.Error(err))
			return err
		}
	}
	if dirty {
		logger.Log.Error("migration - database is in dirty state")
		return errors.New("migration - database is in dirty state")
	}
	err = m.Up()
	if err != nil {
		switch err {
		case migrate.ErrNoChange:
			logger.Log.Info("migration - db version is up to date")
			return nil
		default:
			logger.Log.Error("db migration error", zap.Error(err))
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

type PsqlStorage struct {
	dbAddress  string
	connection *sql.DB
}

func NewPsqlStorage(dba string) *PsqlStorage {
	return &PsqlStorage{dbAddress: dba}
}

func (s *PsqlStorage) InitStorage(ctx context.Context) error {
	db, err := sql.Open("pgx", s.dbAddress)
	if err != nil {
		logger.Log.Error("opening db connection error", zap.Error(err))
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err = db.PingContext(ctx)
	if err != nil {
		logger.Log.Error("db ping err", zap.Error(err))
		return err
	}
	err = dbMigrate(db)
	if err != nil {
		return err
	}
	s.connection = db
	logger.Log.Info("db connection is ready")
	return nil
}

func (s *PsqlStorage) AddUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := s.connection.ExecContext(ctx,
		"INSERT INTO users (id,username,pwdhash) VALUES($1,$2,$3)",
		user.ID, user.Login, user.Password)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrLoginExists
		}
		logger.Log.Error("add user error - db inserting failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *PsqlStorage) IsLoginFree(ctx context.Context, login string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var exists bool
	err := s.connection.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", login).Scan(&exists)
	if err != nil {
		logger.Log.Error("is login free error - db query failed", zap.Error(err))
		return true, err
	}
	return !exists, nil
}

func (s *PsqlStorage) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	var user models.User
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := s.connection.QueryRowContext(ctx,
		"SELECT id, username, pwdhash FROM users WHERE username = $1", login)
	err := row.Scan(&user.ID, &user.Login, &user.Password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Log.Error("get user by login error - db row scan error", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

func (s *PsqlStorage) AddOrder(ctx context.Context, o models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := s.connection.ExecContext(ctx,
		"INSERT INTO orders (order_id,user_id,amount,status,created_at) VALUES($1,$2,$3,$4,$5)",
		o.ID, o.UserID, o.Amount, o.Status, o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrOrderExists
		}
		logger.Log.Error("add order error - db inserting failed", zap.String("order", o.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *PsqlStorage) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := s.connection.QueryRowContext(ctx,
		"SELECT order_id, user_id, amount, status, created_at FROM orders WHERE order_id = $1", id)
	err := row.Scan(&order.ID, &order.UserID, &order.Amount, &order.Status, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Log.Error("get order by id error - db row scan error", zap.Error(err))
		return nil, err
	}
	return &order, nil
}

func (s *PsqlStorage) GetOrders(ctx context.Context, uid string) ([]models.Order, error) {
	orders := []models.Order{}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := s.connection.QueryContext(ctx,
		"SELECT order_id, user_id, amount, status, created_at FROM orders WHERE user_id = $1 ORDER BY created_at", uid)
	if err != nil {
		logger.Log.Error("get orders error - query error", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o models.Order
		err := rows.Scan(&o.ID, &o.UserID, &o.Amount, &o.Status, &o.CreatedAt)
		if err != nil {
			logger.Log.Error("get orders error - scan error", zap.Error(err))
			return nil, err
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		logger.Log.Error("get orders error - iteration error", zap.Error(rows.Err()))
		return nil, rows.Err()
	}
	return orders, nil
}

// SettleOrder runs claim, credit and status change as one transaction.
// The settlement insert is the claim: ON CONFLICT DO NOTHING makes it a
// single atomic conditional insert, so concurrent deliveries of the
// same notification race on the row and only one proceeds to credit.
// Rollback on any later failure releases the claim with it.
func (s *PsqlStorage) SettleOrder(ctx context.Context, orderID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := s.connection.BeginTx(ctx, nil)
	if err != nil {
		logger.Log.Error("settle order error - transaction open failed", zap.String("order", orderID), zap.Error(err))
		return false, err
	}
	defer tx.Rollback()

	var uid string
	var amount int64
	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, amount, status FROM orders WHERE order_id = $1 FOR UPDATE", orderID).Scan(&uid, &amount, &status)
	if err != nil {
		logger.Log.Error("settle order error - order select failed", zap.String("order", orderID), zap.Error(err))
		return false, err
	}
	// status transitions are monotone: a late settlement notification
	// for an expired or failed order must not credit anything
	if status != constants.OrderStatusPending {
		return false, tx.Commit()
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO settlements (order_id, settled_at) VALUES($1, now()) ON CONFLICT (order_id) DO NOTHING", orderID)
	if err != nil {
		logger.Log.Error("settle order error - settlement insert failed", zap.String("order", orderID), zap.Error(err))
		return false, err
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if claimed == 0 {
		// already settled, nothing to apply
		return false, tx.Commit()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (user_id, current, withdrawn) VALUES($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET current = balances.current + EXCLUDED.current`, uid, amount)
	if err != nil {
		logger.Log.Error("settle order error - balance credit failed", zap.String("order", orderID), zap.Error(err))
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE order_id = $2 AND status = $3",
		constants.OrderStatusSettled, orderID, constants.OrderStatusPending)
	if err != nil {
		logger.Log.Error("settle order error - order status update failed", zap.String("order", orderID), zap.Error(err))
		return false, err
	}
	return true, tx.Commit()
}

func (s *PsqlStorage) CloseOrder(ctx context.Context, orderID string, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	// guarded by current status, terminal orders stay as they are
	_, err := s.connection.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE order_id = $2 AND status = $3",
		status, orderID, constants.OrderStatusPending)
	if err != nil {
		logger.Log.Error("close order error - db updating failed", zap.String("order", orderID), zap.Error(err))
		return err
	}
	return nil
}

func (s *PsqlStorage) GetBalanceByUserID(ctx context.Context, uid string) (*models.UserBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	balance := models.UserBalance{UserID: uid}
	row := s.connection.QueryRowContext(ctx,
		"SELECT current, withdrawn FROM balances WHERE user_id = $1", uid)
	err := row.Scan(&balance.Current, &balance.Withdrawn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// account not created yet - zero balance
			return &balance, nil
		}
		logger.Log.Error("get balance by user id error - db row scan error", zap.Error(err))
		return nil, err
	}
	return &balance, nil
}

// CreateWithdrawal debits the balance and records the withdrawal in one
// transaction. The FOR UPDATE on the balance row serializes concurrent
// withdrawals of the same user, so the daily sum and sufficiency checks
// always run against a settled baseline.
func (s *PsqlStorage) CreateWithdrawal(ctx context.Context, w *models.Withdrawal, dailyLimit int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := s.connection.BeginTx(ctx, nil)
	if err != nil {
		logger.Log.Error("create withdrawal error - transaction open failed", zap.Error(err))
		return 0, err
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx,
		"SELECT current FROM balances WHERE user_id = $1 FOR UPDATE", w.UserID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrInsufficientFunds
		}
		logger.Log.Error("create withdrawal error - balance select failed", zap.Error(err))
		return 0, err
	}

	var daySum int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM withdrawals
		WHERE user_id = $1 AND day_bucket = (now() AT TIME ZONE 'utc')::date AND status <> $2`,
		w.UserID, constants.WithdrawalStatusRejected).Scan(&daySum)
	if err != nil {
		logger.Log.Error("create withdrawal error - daily sum query failed", zap.Error(err))
		return 0, err
	}
	if daySum+w.Amount > dailyLimit {
		return 0, storage.ErrDailyLimitExceeded
	}
	if current < w.Amount {
		return 0, storage.ErrInsufficientFunds
	}

	var remaining int64
	err = tx.QueryRowContext(ctx,
		`UPDATE balances SET current = current - $1, withdrawn = withdrawn + $1
		WHERE user_id = $2 RETURNING current`, w.Amount, w.UserID).Scan(&remaining)
	if err != nil {
		logger.Log.Error("create withdrawal error - balance debit failed", zap.Error(err))
		return 0, err
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO withdrawals (id, user_id, amount, destination, status)
		VALUES($1, $2, $3, $4, $5)
		RETURNING day_bucket::text, created_at`,
		w.ID, w.UserID, w.Amount, w.Destination, w.Status).Scan(&w.DayBucket, &w.CreatedAt)
	if err != nil {
		logger.Log.Error("create withdrawal error - db inserting failed", zap.Error(err))
		return 0, err
	}
	return remaining, tx.Commit()
}

func (s *PsqlStorage) GetWithdrawals(ctx context.Context, uid string) ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := s.connection.QueryContext(ctx,
		`SELECT id, user_id, amount, destination, day_bucket::text, status, created_at
		FROM withdrawals WHERE user_id = $1 ORDER BY created_at`, uid)
	if err != nil {
		logger.Log.Error("get withdrawals error - query error", zap.Error(err))
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var w models.Withdrawal
		err := rows.Scan(&w.ID, &w.UserID, &w.Amount, &w.Destination, &w.DayBucket, &w.Status, &w.CreatedAt)
		if err != nil {
			logger.Log.Error("get withdrawals error - scan error", zap.Error(err))
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	if rows.Err() != nil {
		logger.Log.Error("get withdrawals error - iteration error", zap.Error(rows.Err()))
		return nil, rows.Err()
	}
	return withdrawals, nil
}

func (s *PsqlStorage) DbClose() error {
	return s.connection.Close()
}
