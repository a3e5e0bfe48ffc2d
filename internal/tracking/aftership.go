package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/rs/zerolog"
)

// AfterShipProvider implements the Provider interface using the AfterShip
// Tracking API.
type AfterShipProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// AfterShipConfig contains configuration for the AfterShip provider.
type AfterShipConfig struct {
	APIKey  string
	BaseURL string        // Optional: defaults to the production API
	Timeout time.Duration // Optional: defaults to 10s
	Logger  zerolog.Logger
}

// Compile-time check that AfterShipProvider implements Provider.
var _ Provider = (*AfterShipProvider)(nil)

// NewAfterShipProvider creates a new AfterShip tracking provider.
func NewAfterShipProvider(cfg AfterShipConfig) (*AfterShipProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.aftership.com/v4"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &AfterShipProvider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  cfg.Logger.With().Str("component", "aftership").Logger(),
	}, nil
}

type aftershipTracking struct {
	TrackingNumber   string     `json:"tracking_number"`
	Slug             string     `json:"slug"`
	Tag              string     `json:"tag"`
	ExpectedDelivery *time.Time `json:"expected_delivery"`
	Checkpoints      []struct {
		Tag            string    `json:"tag"`
		Message        string    `json:"message"`
		Location       string    `json:"location"`
		CheckpointTime time.Time `json:"checkpoint_time"`
	} `json:"checkpoints"`
}

type aftershipEnvelope struct {
	Meta struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"meta"`
	Data struct {
		Tracking aftershipTracking `json:"tracking"`
	} `json:"data"`
}

// GetTracking fetches the current shipment status. Tracking numbers unknown
// to AfterShip are registered and fetched again once; the registration is the
// durable side effect, so couriers that have not scanned the parcel yet still
// return an empty but valid tracking.
func (p *AfterShipProvider) GetTracking(ctx context.Context, trackingID, courier string) (*Info, error) {
	if trackingID == "" {
		return nil, ErrMissingTrackingID
	}
	if courier == "" {
		return nil, ErrMissingCourier
	}

	logger := p.logger.With().Str("tracking_id", trackingID).Str("courier", courier).Logger()

	info, err := p.fetch(ctx, trackingID, courier)
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, ErrTrackingNotFound) {
		logger.Error().Err(err).Msg("tracking fetch failed")
		return nil, err
	}

	logger.Info().Msg("tracking unknown to provider, registering")
	if err := p.register(ctx, trackingID, courier); err != nil {
		logger.Error().Err(err).Msg("tracking registration failed")
		return nil, err
	}

	info, err = p.fetch(ctx, trackingID, courier)
	if err != nil {
		logger.Error().Err(err).Msg("tracking fetch after registration failed")
		return nil, err
	}
	return info, nil
}

func (p *AfterShipProvider) fetch(ctx context.Context, trackingID, courier string) (*Info, error) {
	path := fmt.Sprintf("/trackings/%s/%s", url.PathEscape(courier), url.PathEscape(trackingID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, domain.Internal(err, "tracking.get", "failed to build request")
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, domain.Unavailable(err, "tracking.get", "tracking provider request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTrackingNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.Unavailable(
			fmt.Errorf("provider returned %d", resp.StatusCode),
			"tracking.get", "tracking provider rejected the request")
	}

	var envelope aftershipEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, domain.Unavailable(err, "tracking.get", "failed to decode provider response")
	}

	t := envelope.Data.Tracking
	info := &Info{
		TrackingID:      t.TrackingNumber,
		Courier:         t.Slug,
		Tag:             t.Tag,
		ExpectedArrival: t.ExpectedDelivery,
	}
	for _, cp := range t.Checkpoints {
		info.Checkpoints = append(info.Checkpoints, Checkpoint{
			Status:   cp.Tag,
			Message:  cp.Message,
			Location: cp.Location,
			Occurred: cp.CheckpointTime,
		})
	}
	return info, nil
}

func (p *AfterShipProvider) register(ctx context.Context, trackingID, courier string) error {
	body := map[string]map[string]string{
		"tracking": {
			"tracking_number": trackingID,
			"slug":            courier,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Internal(err, "tracking.register", "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/trackings", bytes.NewReader(payload))
	if err != nil {
		return domain.Internal(err, "tracking.register", "failed to build request")
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Unavailable(err, "tracking.register", "tracking provider request failed")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	// 409 means another caller registered the same number first, which is
	// just as good as registering it ourselves.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Unavailable(
			fmt.Errorf("provider returned %d", resp.StatusCode),
			"tracking.register", "failed to register tracking with provider")
	}
	return nil
}

func (p *AfterShipProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("aftership-api-key", p.apiKey)
}
