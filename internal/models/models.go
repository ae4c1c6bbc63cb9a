package models

import "time"

type User struct {
	ID       string
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Order is a top-up waiting for gateway settlement. Amount and UserID
// are fixed at creation, only Status changes afterwards.
type Order struct {
	ID        string    `json:"order_id"`
	UserID    string    `json:"-"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is the webhook body the gateway posts after a payment
// attempt finishes. GrossAmount stays a string: it participates in the
// signature exactly as the gateway formatted it.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
}

type UserBalance struct {
	UserID    string `json:"-"`
	Current   int64  `json:"current"`
	Withdrawn int64  `json:"withdrawn"`
}

type Withdrawal struct {
	ID          string    `json:"withdrawal_id"`
	UserID      string    `json:"-"`
	Amount      int64     `json:"amount"`
	Destination string    `json:"destination"`
	DayBucket   string    `json:"-"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// GatewayOrder is what the gateway returns on order creation, relayed
// to the end user untouched.
type GatewayOrder struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}
