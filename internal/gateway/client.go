package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paydeck/wallet/internal/logger"
	"github.com/paydeck/wallet/internal/models"
	"go.uber.org/zap"
)

var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Client creates charge orders on the payment gateway. The returned
// token and redirect url are relayed to the end user unmodified.
type Client struct {
	url       string
	serverKey string
	repeats   int
	httpc     *http.Client
}

func NewClient(url string, serverKey string, repeats int) *Client {
	return &Client{
		url:       url,
		serverKey: serverKey,
		repeats:   repeats,
		httpc:     &http.Client{Timeout: 10 * time.Second},
	}
}

type chargeRequest struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

func (c *Client) CreateOrder(ctx context.Context, orderID string, amount int64) (*models.GatewayOrder, error) {
	reqBody, err := json.Marshal(chargeRequest{OrderID: orderID, GrossAmount: amount})
	if err != nil {
		return nil, err
	}
	// retrying according to repeats
	for i := 1; i <= c.repeats; i++ {
		logger.Log.Debug("attempt create gateway order", zap.String("attempt", strconv.Itoa(i)), zap.String("order", orderID))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.SetBasicAuth(c.serverKey, "")
		r, err := c.httpc.Do(req)
		// if error repeat
		if err != nil {
			logger.Log.Error("post request to gateway failed", zap.String("order", orderID), zap.Error(err))
			continue
		}
		switch r.StatusCode {
		// if too many requests wait for delay
		case http.StatusTooManyRequests:
			r.Body.Close()
			delay, err := strconv.Atoi(r.Header.Get("Retry-After"))
			if err != nil {
				logger.Log.Error("converting retry-after failed", zap.String("order", orderID), zap.Error(err))
				continue
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(delay) * time.Second):
			}
			continue
		case http.StatusOK, http.StatusCreated:
			respBody, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				logger.Log.Error("response body reading failed", zap.String("order", orderID), zap.Error(err))
				continue
			}
			var order models.GatewayOrder
			err = json.Unmarshal(respBody, &order)
			if err != nil {
				logger.Log.Error("response body unmarshal failed", zap.String("order", orderID), zap.Error(err))
				continue
			}
			return &order, nil
		default:
			r.Body.Close()
			logger.Log.Error("gateway rejected order creation",
				zap.String("order", orderID), zap.Int("status", r.StatusCode))
			continue
		}
	}
	return nil, ErrGatewayUnavailable
}
