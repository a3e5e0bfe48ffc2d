package tracking

import "context"

// MockProvider is a test double for the tracking provider.
type MockProvider struct {
	GetTrackingFunc  func(ctx context.Context, trackingID, courier string) (*Info, error)
	GetTrackingCalls int
}

var _ Provider = (*MockProvider)(nil)

func (m *MockProvider) GetTracking(ctx context.Context, trackingID, courier string) (*Info, error) {
	m.GetTrackingCalls++
	if m.GetTrackingFunc != nil {
		return m.GetTrackingFunc(ctx, trackingID, courier)
	}
	return &Info{TrackingID: trackingID, Courier: courier, Tag: "InTransit"}, nil
}
