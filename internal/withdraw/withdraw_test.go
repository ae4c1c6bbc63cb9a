package withdraw

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paydeck/wallet/internal/constants"
	"github.com/paydeck/wallet/internal/models"
	"github.com/paydeck/wallet/internal/storage"
)

// luhn-valid account number used as destination in all tests
const destination = "79927398713"

// stubLedger reproduces the postgres transaction semantics: cap check,
// sufficiency check and debit all under one lock.
type stubLedger struct {
	mu      sync.Mutex
	balance int64
	daySum  int64
	records []models.Withdrawal
}

func (s *stubLedger) CreateWithdrawal(ctx context.Context, w *models.Withdrawal, dailyLimit int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.daySum+w.Amount > dailyLimit {
		return 0, storage.ErrDailyLimitExceeded
	}
	if s.balance < w.Amount {
		return 0, storage.ErrInsufficientFunds
	}
	s.balance -= w.Amount
	s.daySum += w.Amount
	s.records = append(s.records, *w)
	return s.balance, nil
}

func TestRequestValidation(t *testing.T) {
	ledger := &stubLedger{balance: 1000000}
	c := NewController(ledger, 10000000, 20000000)

	tests := []struct {
		name        string
		amount      int64
		destination string
		wantErr     error
	}{
		{"zero amount", 0, destination, ErrInvalidAmount},
		{"negative amount", -500, destination, ErrInvalidAmount},
		{"above max withdraw", 10000001, destination, ErrInvalidAmount},
		{"bad destination characters", 100000, "acct-79927398713", ErrInvalidDestination},
		{"destination fails luhn", 100000, "79927398714", ErrInvalidDestination},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.Request(context.Background(), "u1", tt.amount, tt.destination)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(ledger.records) != 0 {
		t.Errorf("ledger mutated by rejected requests: %d records", len(ledger.records))
	}
}

func TestRequestSuccess(t *testing.T) {
	ledger := &stubLedger{balance: 1000000}
	c := NewController(ledger, 10000000, 20000000)

	record, remaining, err := c.Request(context.Background(), "u1", 300000, destination)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if remaining != 700000 {
		t.Errorf("remaining = %d, want 700000", remaining)
	}
	if record.ID == "" {
		t.Error("withdrawal id not assigned")
	}
	if record.Status != constants.WithdrawalStatusApproved {
		t.Errorf("status = %s, want APPROVED", record.Status)
	}
	if len(ledger.records) != 1 || ledger.records[0].Amount != 300000 {
		t.Errorf("unexpected ledger records: %+v", ledger.records)
	}
}

func TestRequestInsufficientFunds(t *testing.T) {
	ledger := &stubLedger{balance: 100}
	c := NewController(ledger, 10000000, 20000000)

	_, _, err := c.Request(context.Background(), "u1", 200, destination)
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if ledger.balance != 100 {
		t.Errorf("balance = %d, want 100 untouched", ledger.balance)
	}
}

func TestRequestDailyLimit(t *testing.T) {
	ledger := &stubLedger{balance: 50000000, daySum: 18000000}
	c := NewController(ledger, 10000000, 20000000)

	_, _, err := c.Request(context.Background(), "u1", 3000000, destination)
	if !errors.Is(err, storage.ErrDailyLimitExceeded) {
		t.Fatalf("err = %v, want ErrDailyLimitExceeded", err)
	}

	// a smaller amount still fits under the cap
	_, remaining, err := c.Request(context.Background(), "u1", 2000000, destination)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if remaining != 48000000 {
		t.Errorf("remaining = %d, want 48000000", remaining)
	}
}

func TestConcurrentRequestsRespectDailyCap(t *testing.T) {
	// balance covers both, the cap admits only one
	ledger := &stubLedger{balance: 30000000}
	c := NewController(ledger, 15000000, 20000000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.Request(context.Background(), "u1", 15000000, destination)
		}(i)
	}
	wg.Wait()

	var ok, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, storage.ErrDailyLimitExceeded):
			limited++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || limited != 1 {
		t.Errorf("got %d successes and %d limit rejections, want 1 and 1", ok, limited)
	}
	if ledger.balance != 15000000 {
		t.Errorf("balance = %d, want 15000000", ledger.balance)
	}
}

func TestConcurrentRequestsNeverOverdraw(t *testing.T) {
	ledger := &stubLedger{balance: 1000000}
	c := NewController(ledger, 10000000, 100000000)

	const requests = 16
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Request(context.Background(), "u1", 300000, destination)
		}()
	}
	wg.Wait()

	if ledger.balance < 0 {
		t.Fatalf("balance went negative: %d", ledger.balance)
	}
	// 1000000 / 300000 admits at most 3
	if len(ledger.records) > 3 {
		t.Errorf("admitted %d withdrawals, want at most 3", len(ledger.records))
	}
}
