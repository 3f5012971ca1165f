package vapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	callsvc "github.com/zhouzirui/prepx/backend/internal/service/call"
)

func TestStartCallSendsWorkflowAndAssistant(t *testing.T) {
	var got createCallBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"vc-1","status":"queued","monitor":{"controlUrl":"http://control/vc-1"}}`))
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "secret", WorkflowID: "wf-1", BaseURL: srv.URL + "/"})
	resp, err := client.StartCall(context.Background(), StartRequest{UserName: "Ada", UserID: "u1"})
	if err != nil {
		t.Fatalf("StartCall err: %v", err)
	}
	if resp.ID != "vc-1" || resp.Monitor.ControlURL != "http://control/vc-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.WorkflowID != "wf-1" || got.VariableValues["username"] != "Ada" || got.VariableValues["userid"] != "u1" {
		t.Fatalf("unexpected body %+v", got)
	}
	if got.Assistant.Name != "PrepX Interviewer" || got.Assistant.Transcriber.Model != "nova-2" {
		t.Fatalf("assistant config missing: %+v", got.Assistant)
	}
}

func TestStartCallReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad workflow", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: srv.URL})
	_, err := client.StartCall(context.Background(), StartRequest{UserName: "Ada", UserID: "u1"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Body != "bad workflow" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestClientWithoutKey(t *testing.T) {
	client := NewClient(Config{})
	if client.Enabled() {
		t.Fatal("client without key should be disabled")
	}
	if _, err := client.StartCall(context.Background(), StartRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if NewVendor(client) != nil {
		t.Fatal("vendor should be nil without credentials")
	}
}

func TestVendorStartAndStop(t *testing.T) {
	var (
		metadata map[string]string
		stopBody map[string]string
	)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/call", func(w http.ResponseWriter, r *http.Request) {
		var body createCallBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		metadata = body.Metadata
		_, _ = w.Write([]byte(`{"id":"vc-9","monitor":{"controlUrl":"` + srv.URL + `/control/vc-9"}}`))
	})
	mux.HandleFunc("/control/vc-9", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&stopBody)
		w.WriteHeader(http.StatusOK)
	})

	vendor := NewVendor(NewClient(Config{APIKey: "k", BaseURL: srv.URL}))
	session, err := vendor.Start(context.Background(), callsvc.StartParams{CallID: "c1", UserID: "u1", UserName: "Ada", InterviewID: "i1"})
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if session.VendorCallID != "vc-9" {
		t.Fatalf("unexpected session %+v", session)
	}
	if metadata[MetadataCallID] != "c1" || metadata["interviewId"] != "i1" {
		t.Fatalf("metadata not forwarded: %v", metadata)
	}

	if err := vendor.Stop(context.Background(), session); err != nil {
		t.Fatalf("Stop err: %v", err)
	}
	if stopBody["type"] != "end-call" {
		t.Fatalf("unexpected stop body %v", stopBody)
	}
}
