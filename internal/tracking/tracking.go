// Package tracking integrates the shipment tracking provider. The provider
// only reports on shipments it has been told about, so fetching an unknown
// tracking number registers it first and retries the fetch.
package tracking

import (
	"context"
	"time"

	"github.com/dukerupert/skald/internal/domain"
)

// Provider-level errors.
var (
	ErrMissingAPIKey     = &domain.Error{Code: domain.EINVALID, Message: "Tracking API key is required"}
	ErrTrackingNotFound  = &domain.Error{Code: domain.ENOTFOUND, Message: "Tracking number not registered with provider"}
	ErrMissingTrackingID = &domain.Error{Code: domain.EINVALID, Message: "Tracking ID is required"}
	ErrMissingCourier    = &domain.Error{Code: domain.EINVALID, Message: "Courier slug is required"}
)

// Checkpoint is one scan event reported by the courier.
type Checkpoint struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Location string    `json:"location"`
	Occurred time.Time `json:"occurred"`
}

// Info is the provider's current view of a shipment.
type Info struct {
	TrackingID      string       `json:"tracking_id"`
	Courier         string       `json:"courier"`
	Tag             string       `json:"tag"`
	ExpectedArrival *time.Time   `json:"expected_arrival,omitempty"`
	Checkpoints     []Checkpoint `json:"checkpoints"`
}

// Delivered reports whether the provider considers the shipment delivered.
func (i *Info) Delivered() bool {
	return i.Tag == "Delivered"
}

// DeliveredAt returns the time of the latest delivery checkpoint, or nil if
// the provider reported delivery without a matching checkpoint.
func (i *Info) DeliveredAt() *time.Time {
	var at *time.Time
	for idx := range i.Checkpoints {
		cp := &i.Checkpoints[idx]
		if cp.Status != "Delivered" {
			continue
		}
		if at == nil || cp.Occurred.After(*at) {
			at = &cp.Occurred
		}
	}
	return at
}

// Provider is the shipment tracking client.
type Provider interface {
	// GetTracking fetches the current status of a shipment, registering
	// the tracking number with the provider first if it is unknown.
	GetTracking(ctx context.Context, trackingID, courier string) (*Info, error)
}
