package call

import "time"

// Call is a point-in-time view of a live interview call.
type Call struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	InterviewID  string    `json:"interviewId,omitempty"`
	Type         string    `json:"type"`
	Status       Status    `json:"status"`
	Speaking     bool      `json:"speaking"`
	VendorCallID string    `json:"vendorCallId,omitempty"`
	Transcript   []Entry   `json:"transcript"`
	Latest       string    `json:"latestMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
