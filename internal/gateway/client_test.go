package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateOrderSuccess(t *testing.T) {
	var gotOrderID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chargeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode charge request: %v", err)
		}
		gotOrderID = req.OrderID
		if req.GrossAmount != 50000 {
			t.Errorf("gross amount = %d, want 50000", req.GrossAmount)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"snap-token","redirect_url":"https://pay.example/redirect"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-key", 3)
	order, err := c.CreateOrder(context.Background(), "order-1", 50000)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if gotOrderID != "order-1" {
		t.Errorf("gateway received order id %q, want order-1", gotOrderID)
	}
	if order.Token != "snap-token" || order.RedirectURL != "https://pay.example/redirect" {
		t.Errorf("unexpected gateway order: %+v", order)
	}
}

func TestCreateOrderRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"token":"tok","redirect_url":"https://pay.example/r"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-key", 3)
	order, err := c.CreateOrder(context.Background(), "order-2", 10000)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if order.Token != "tok" {
		t.Errorf("token = %q, want tok", order.Token)
	}
}

func TestCreateOrderExhaustsRepeats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "server-key", 2)
	_, err := c.CreateOrder(context.Background(), "order-3", 10000)
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("err = %v, want ErrGatewayUnavailable", err)
	}
}
