package vapi

import (
	"context"

	callsvc "github.com/zhouzirui/prepx/backend/internal/service/call"
)

// MetadataCallID is the metadata key carrying our call id on vendor calls,
// so webhook messages can be routed back without a lookup.
const MetadataCallID = "callId"

// Vendor adapts Client to the call service.
type Vendor struct {
	client *Client
}

// NewVendor returns nil when the client is not configured so the call
// service reports the vendor as unavailable.
func NewVendor(client *Client) callsvc.Vendor {
	if !client.Enabled() {
		return nil
	}
	return &Vendor{client: client}
}

func (v *Vendor) Start(ctx context.Context, params callsvc.StartParams) (callsvc.VendorSession, error) {
	resp, err := v.client.StartCall(ctx, StartRequest{
		UserName: params.UserName,
		UserID:   params.UserID,
		Metadata: map[string]string{
			MetadataCallID: params.CallID,
			"interviewId":  params.InterviewID,
			"type":         params.Type,
		},
	})
	if err != nil {
		return callsvc.VendorSession{}, err
	}
	return callsvc.VendorSession{VendorCallID: resp.ID, ControlURL: resp.Monitor.ControlURL}, nil
}

func (v *Vendor) Stop(ctx context.Context, session callsvc.VendorSession) error {
	if session.ControlURL == "" {
		return nil
	}
	return v.client.StopCall(ctx, session.ControlURL)
}
