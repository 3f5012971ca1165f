package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.vapi.ai"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// ErrNotConfigured is returned when the client has no API key.
var ErrNotConfigured = errors.New("vapi: api key not configured")

// APIError carries a non-2xx response from the Vapi REST API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vapi: http %d: %s", e.StatusCode, e.Body)
}

// Config holds the credentials and the workflow used for interview calls.
type Config struct {
	APIKey     string
	WorkflowID string
	BaseURL    string
	Timeout    time.Duration
}

// Client talks to the Vapi REST API.
type Client struct {
	apiKey     string
	workflowID string
	baseURL    string
	http       *http.Client
}

// NewClient builds a client; an empty BaseURL falls back to DefaultBaseURL.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey:     cfg.APIKey,
		workflowID: cfg.WorkflowID,
		baseURL:    baseURL,
		http:       &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an API key is present.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// ProviderModel selects a provider-hosted model.
type ProviderModel struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Voice selects the speaking voice.
type Voice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

// Assistant is the transient assistant config sent with a call.
type Assistant struct {
	Name        string        `json:"name"`
	Model       ProviderModel `json:"model"`
	Voice       Voice         `json:"voice"`
	Transcriber ProviderModel `json:"transcriber"`
}

// InterviewerAssistant is the assistant every interview call runs with.
func InterviewerAssistant() Assistant {
	return Assistant{
		Name:        "PrepX Interviewer",
		Model:       ProviderModel{Provider: "openai", Model: "gpt-4o"},
		Voice:       Voice{Provider: "vapi", VoiceID: "Spencer"},
		Transcriber: ProviderModel{Provider: "deepgram", Model: "nova-2"},
	}
}

// StartRequest describes a call to create.
type StartRequest struct {
	UserName string
	UserID   string
	Metadata map[string]string
}

type createCallBody struct {
	WorkflowID     string            `json:"workflowId,omitempty"`
	VariableValues map[string]string `json:"variableValues"`
	Assistant      Assistant         `json:"assistant"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// CallResponse is the subset of the created call we rely on.
type CallResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Monitor struct {
		ListenURL  string `json:"listenUrl"`
		ControlURL string `json:"controlUrl"`
	} `json:"monitor"`
}

// StartCall creates a call for the interview workflow.
func (c *Client) StartCall(ctx context.Context, req StartRequest) (CallResponse, error) {
	var out CallResponse
	if !c.Enabled() {
		return out, ErrNotConfigured
	}

	body := createCallBody{
		WorkflowID: c.workflowID,
		VariableValues: map[string]string{
			"username": req.UserName,
			"userid":   req.UserID,
		},
		Assistant: InterviewerAssistant(),
		Metadata:  req.Metadata,
	}
	if err := c.postJSON(ctx, c.baseURL+"/call", body, &out); err != nil {
		return out, err
	}
	if out.ID == "" {
		return out, errors.New("vapi: response missing call id")
	}
	return out, nil
}

// StopCall asks a live call to hang up through its monitor control URL.
func (c *Client) StopCall(ctx context.Context, controlURL string) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if strings.TrimSpace(controlURL) == "" {
		return errors.New("vapi: control url is empty")
	}
	return c.postJSON(ctx, controlURL, map[string]string{"type": "end-call"}, nil)
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("vapi: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("vapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("vapi: decode response: %w", err)
	}
	return nil
}
