package tracking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/skald/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.Handler) *AfterShipProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewAfterShipProvider(AfterShipConfig{
		APIKey:  "test-api-key",
		BaseURL: srv.URL,
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	return p
}

func trackingEnvelope(tag string, checkpoints int) map[string]any {
	cps := make([]map[string]any, 0, checkpoints)
	for i := 0; i < checkpoints; i++ {
		cps = append(cps, map[string]any{
			"tag":             "InTransit",
			"message":         "Arrived at facility",
			"location":        "Mumbai",
			"checkpoint_time": time.Now().UTC().Format(time.RFC3339),
		})
	}
	return map[string]any{
		"meta": map[string]any{"code": 200},
		"data": map[string]any{
			"tracking": map[string]any{
				"tracking_number": "TRK123",
				"slug":            "bluedart",
				"tag":             tag,
				"checkpoints":     cps,
			},
		},
	}
}

func TestNewAfterShipProviderRequiresAPIKey(t *testing.T) {
	_, err := NewAfterShipProvider(AfterShipConfig{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGetTrackingKnownShipment(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/trackings/bluedart/TRK123", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("aftership-api-key"))
		json.NewEncoder(w).Encode(trackingEnvelope("Delivered", 3))
	}))

	info, err := p.GetTracking(context.Background(), "TRK123", "bluedart")
	require.NoError(t, err)
	assert.Equal(t, "TRK123", info.TrackingID)
	assert.Equal(t, "bluedart", info.Courier)
	assert.True(t, info.Delivered())
	assert.Len(t, info.Checkpoints, 3)
}

func TestGetTrackingRegistersUnknownShipment(t *testing.T) {
	var gets, posts int

	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets++
			if gets == 1 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(trackingEnvelope("InfoReceived", 0))
		case http.MethodPost:
			posts++
			assert.Equal(t, "/trackings", r.URL.Path)
			var body map[string]map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "TRK123", body["tracking"]["tracking_number"])
			assert.Equal(t, "bluedart", body["tracking"]["slug"])
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(trackingEnvelope("Pending", 0))
		}
	}))

	info, err := p.GetTracking(context.Background(), "TRK123", "bluedart")
	require.NoError(t, err)
	assert.Equal(t, 2, gets)
	assert.Equal(t, 1, posts)
	assert.False(t, info.Delivered())
}

func TestGetTrackingRegistrationConflictIsSuccess(t *testing.T) {
	var gets int

	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets++
			if gets == 1 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(trackingEnvelope("InTransit", 1))
		case http.MethodPost:
			// Someone else registered the number concurrently.
			w.WriteHeader(http.StatusConflict)
		}
	}))

	info, err := p.GetTracking(context.Background(), "TRK123", "bluedart")
	require.NoError(t, err)
	assert.Equal(t, "InTransit", info.Tag)
}

func TestGetTrackingProviderDown(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := p.GetTracking(context.Background(), "TRK123", "bluedart")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestGetTrackingRegistrationFailureSurfaces(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	_, err := p.GetTracking(context.Background(), "TRK123", "bluedart")
	require.Error(t, err)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestGetTrackingValidatesInput(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("provider should not be called")
	}))

	_, err := p.GetTracking(context.Background(), "", "bluedart")
	assert.ErrorIs(t, err, ErrMissingTrackingID)

	_, err = p.GetTracking(context.Background(), "TRK123", "")
	assert.ErrorIs(t, err, ErrMissingCourier)
}
