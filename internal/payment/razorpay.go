package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultRequestTimeout = 15 * time.Second

// RazorpayGateway implements the Gateway interface against the Razorpay
// Orders and Refunds APIs.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
	logger    zerolog.Logger
}

// RazorpayConfig contains configuration for the Razorpay gateway client.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string // Optional: defaults to the production API
	Logger    zerolog.Logger
}

// Compile-time check that RazorpayGateway implements Gateway.
var _ Gateway = (*RazorpayGateway)(nil)

// NewRazorpayGateway creates a new Razorpay gateway client.
func NewRazorpayGateway(cfg RazorpayConfig) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay key ID and secret are required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}

	return &RazorpayGateway{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: defaultRequestTimeout},
		logger:    cfg.Logger.With().Str("component", "razorpay").Logger(),
	}, nil
}

type razorpayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateIntent registers an order with Razorpay. The receipt carries our
// order ID so gateway dashboards link back to the originating order.
func (g *RazorpayGateway) CreateIntent(ctx context.Context, orderID uuid.UUID, amountCents int64, currency string) (*Intent, error) {
	if amountCents <= 0 {
		return nil, domain.Invalid("payment.create_intent", "amount must be positive")
	}
	if currency == "" {
		currency = "INR"
	}

	logger := g.logger.With().Str("order_id", orderID.String()).Int64("amount_cents", amountCents).Logger()
	logger.Info().Msg("creating gateway order")

	body := razorpayOrderRequest{
		Amount:   amountCents,
		Currency: currency,
		Receipt:  orderID.String(),
	}

	var resp razorpayOrderResponse
	if err := g.post(ctx, "/v1/orders", body, &resp); err != nil {
		logger.Error().Err(err).Msg("failed to create gateway order")
		return nil, err
	}

	logger.Info().Str("gateway_order_id", resp.ID).Msg("gateway order created")
	return &Intent{
		GatewayOrderID: resp.ID,
		AmountCents:    resp.Amount,
		Currency:       resp.Currency,
	}, nil
}

// Refund reverses a captured payment for the full given amount.
func (g *RazorpayGateway) Refund(ctx context.Context, gatewayPaymentID string, amountCents int64) error {
	if gatewayPaymentID == "" {
		return domain.Invalid("payment.refund", "gateway payment ID is required")
	}

	logger := g.logger.With().Str("gateway_payment_id", gatewayPaymentID).Logger()
	logger.Info().Msg("issuing refund")

	body := struct {
		Amount int64 `json:"amount"`
	}{Amount: amountCents}

	path := fmt.Sprintf("/v1/payments/%s/refund", gatewayPaymentID)
	if err := g.post(ctx, path, body, &struct{}{}); err != nil {
		logger.Error().Err(err).Msg("refund failed")
		return err
	}

	logger.Info().Msg("refund issued")
	return nil
}

func (g *RazorpayGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Internal(err, "payment.gateway", "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.Internal(err, "payment.gateway", "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Unavailable(err, "payment.gateway", "payment gateway request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr razorpayErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Description != "" {
			return domain.Unavailable(
				fmt.Errorf("gateway returned %d: %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description),
				"payment.gateway", "payment gateway rejected the request")
		}
		return domain.Unavailable(
			fmt.Errorf("gateway returned %d", resp.StatusCode),
			"payment.gateway", "payment gateway rejected the request")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.Unavailable(err, "payment.gateway", "failed to decode gateway response")
	}
	return nil
}
