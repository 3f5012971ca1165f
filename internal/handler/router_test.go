package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/prepx/backend/internal/model/interview"
	"github.com/zhouzirui/prepx/backend/internal/model/user"
	authService "github.com/zhouzirui/prepx/backend/internal/service/auth"
	callService "github.com/zhouzirui/prepx/backend/internal/service/call"
)

func newTestRouter() http.Handler {
	return NewRouter(Dependencies{
		Auth:        authService.NewService(user.NewMemoryStore(), authService.Config{BcryptCost: bcrypt.MinCost}),
		Calls:       callService.NewService(nil, callService.Options{}),
		Interviews:  interview.NewMemoryStore(interview.Seed()),
		CORSOrigins: []string{"http://localhost:3000"},
	})
}

func send(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/api/interviews", "/api/calls", "/api/auth/me"} {
		if resp := send(r, http.MethodGet, path, "", nil); resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s expected 401, got %d", path, resp.Code)
		}
	}
	if resp := send(r, http.MethodGet, "/healthz", "", nil); resp.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", resp.Code)
	}
}

func TestSignedInUserCanCreateCall(t *testing.T) {
	r := newTestRouter()
	form := map[string]string{"name": "Ada", "email": "ada@example.com", "password": "secret"}
	if resp := send(r, http.MethodPost, "/api/auth/sign-up", "", form); resp.Code != http.StatusCreated {
		t.Fatalf("sign-up expected 201, got %d", resp.Code)
	}

	resp := send(r, http.MethodPost, "/api/auth/sign-in", "", form)
	var signedIn struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &signedIn)
	if signedIn.Token == "" {
		t.Fatalf("no token in sign-in response: %s", resp.Body.String())
	}

	resp = send(r, http.MethodPost, "/api/calls", signedIn.Token, map[string]string{"type": "generate"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create call expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &created)

	// no vendor configured
	resp = send(r, http.MethodPost, "/api/calls/"+created.ID+"/start", signedIn.Token, nil)
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("start without vendor expected 503, got %d", resp.Code)
	}
}
