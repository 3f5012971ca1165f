package call

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/prepx/backend/internal/middleware"
	"github.com/zhouzirui/prepx/backend/internal/model/call"
	"github.com/zhouzirui/prepx/backend/internal/model/interview"
	"github.com/zhouzirui/prepx/backend/internal/model/user"
	callService "github.com/zhouzirui/prepx/backend/internal/service/call"
)

type stubVendor struct {
	err error
}

func (v *stubVendor) Start(_ context.Context, params callService.StartParams) (callService.VendorSession, error) {
	if v.err != nil {
		return callService.VendorSession{}, v.err
	}
	return callService.VendorSession{VendorCallID: "vc-" + params.CallID}, nil
}

func (v *stubVendor) Stop(context.Context, callService.VendorSession) error { return nil }

// withUser authenticates every request as the user named in X-Test-User.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-User")
		if id == "" {
			id = r.URL.Query().Get("user")
		}
		if id == "" {
			id = "user1"
		}
		ctx := middleware.WithUser(r.Context(), user.User{ID: id, Name: "Ada"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func setupRouter(vendor callService.Vendor) (*chi.Mux, *callService.Service) {
	svc := callService.NewService(vendor, callService.Options{})
	r := chi.NewRouter()
	r.Use(withUser)
	New(svc, interview.NewMemoryStore(interview.Seed())).RegisterRoutes(r)
	return r, svc
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createCall(t *testing.T, r http.Handler) call.Call {
	t.Helper()
	resp := do(r, http.MethodPost, "/calls", map[string]string{"interviewId": "1", "type": "interview"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created call.Call
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	return created
}

func TestCallLifecycleOverREST(t *testing.T) {
	r, _ := setupRouter(&stubVendor{})
	created := createCall(t, r)
	if created.Status != call.StatusInactive || created.UserName != "Ada" {
		t.Fatalf("unexpected created call %+v", created)
	}

	base := "/calls/" + created.ID
	if resp := do(r, http.MethodPost, base+"/start", nil); resp.Code != http.StatusAccepted {
		t.Fatalf("start expected 202, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPost, base+"/start", nil); resp.Code != http.StatusConflict {
		t.Fatalf("second start expected 409, got %d", resp.Code)
	}

	if resp := do(r, http.MethodPost, base+"/events", call.Event{Type: call.EventCallStart}); resp.Code != http.StatusOK {
		t.Fatalf("call-start expected 200, got %d", resp.Code)
	}
	msg := call.Event{Type: call.EventMessage, Message: &call.VendorMessage{
		Type: "transcript", TranscriptType: "final", Role: call.RoleAssistant, Transcript: "Welcome!",
	}}
	if resp := do(r, http.MethodPost, base+"/events", msg); resp.Code != http.StatusOK {
		t.Fatalf("message expected 200, got %d", resp.Code)
	}

	resp := do(r, http.MethodGet, base+"/transcript", nil)
	var transcript transcriptResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &transcript)
	if len(transcript.Messages) != 1 || transcript.Latest != "Welcome!" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}

	resp = do(r, http.MethodPost, base+"/stop", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("stop expected 200, got %d", resp.Code)
	}
	var stopped call.Call
	_ = json.Unmarshal(resp.Body.Bytes(), &stopped)
	if stopped.Status != call.StatusFinished {
		t.Fatalf("expected FINISHED, got %s", stopped.Status)
	}

	list := do(r, http.MethodGet, "/calls", nil)
	var calls []call.Call
	_ = json.Unmarshal(list.Body.Bytes(), &calls)
	if len(calls) != 1 {
		t.Fatalf("expected 1 listed call, got %d", len(calls))
	}
}

func TestStartVendorFailureReturns502(t *testing.T) {
	r, _ := setupRouter(&stubVendor{err: errors.New("permission denied")})
	created := createCall(t, r)

	resp := do(r, http.MethodPost, "/calls/"+created.ID+"/start", nil)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}

	resp = do(r, http.MethodGet, "/calls/"+created.ID, nil)
	var snap call.Call
	_ = json.Unmarshal(resp.Body.Bytes(), &snap)
	if snap.Status != call.StatusInactive {
		t.Fatalf("expected INACTIVE after failed start, got %s", snap.Status)
	}
}

func TestCreateCallUnknownInterview(t *testing.T) {
	r, _ := setupRouter(nil)
	resp := do(r, http.MethodPost, "/calls", map[string]string{"interviewId": "missing"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestCallsOfOtherUsersAreHidden(t *testing.T) {
	r, _ := setupRouter(nil)
	created := createCall(t, r)

	req := httptest.NewRequest(http.MethodGet, "/calls/"+created.ID, nil)
	req.Header.Set("X-Test-User", "intruder")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign call, got %d", resp.Code)
	}
}

func TestInvalidEventsAreRejected(t *testing.T) {
	r, _ := setupRouter(&stubVendor{})
	created := createCall(t, r)
	base := "/calls/" + created.ID

	if resp := do(r, http.MethodPost, base+"/events", call.Event{Type: "volume-level"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("unsupported event expected 400, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPost, base+"/events", call.Event{Type: call.EventCallEnd}); resp.Code != http.StatusConflict {
		t.Fatalf("call-end on INACTIVE expected 409, got %d", resp.Code)
	}
}

func TestStreamDeliversRedirect(t *testing.T) {
	r, svc := setupRouter(&stubVendor{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	created := createCall(t, r)
	if _, err := svc.Start(context.Background(), created.ID); err != nil {
		t.Fatalf("Start err: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/calls/"+created.ID+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request err: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	waitFor := func(event string) {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("stream ended before %q: %v", event, err)
			}
			if strings.TrimSpace(line) == "event: "+event {
				return
			}
		}
	}

	waitFor("snapshot")
	if _, err := svc.Stop(context.Background(), created.ID); err != nil {
		t.Fatalf("Stop err: %v", err)
	}
	waitFor(call.UpdateStatus)
	waitFor(call.UpdateRedirect)
}

func TestWebSocketStartAndUpdates(t *testing.T) {
	r, _ := setupRouter(&stubVendor{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	created := createCall(t, r)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/calls/" + created.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello outgoingMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "connected" {
		t.Fatalf("expected connected message, got %+v (%v)", hello, err)
	}

	if err := conn.WriteJSON(inboundMessage{Type: "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}

	var sawResult, sawStatus bool
	for i := 0; i < 10 && !(sawResult && sawStatus); i++ {
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch msg.Type {
		case "result":
			var snap call.Call
			_ = json.Unmarshal(msg.Data, &snap)
			sawResult = snap.Status == call.StatusConnecting
		case "update":
			var update call.Update
			_ = json.Unmarshal(msg.Data, &update)
			if update.Kind == call.UpdateStatus && update.Status == call.StatusConnecting {
				sawStatus = true
			}
		}
	}
	if !sawResult || !sawStatus {
		t.Fatalf("missing result or status update (result=%v status=%v)", sawResult, sawStatus)
	}

	if err := conn.WriteJSON(inboundMessage{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply outgoingMessage
	if err := conn.ReadJSON(&reply); err != nil || reply.Type != "error" {
		t.Fatalf("expected error reply, got %+v (%v)", reply, err)
	}
}
