package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/menucraft/apiserver/internal/auth"
)

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Alice",
		"email":    "Alice@Example.com",
		"password": "hunter22",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp AuthResponse
	decodeBody(t, recorder, &resp)
	if resp.User.Email != "alice@example.com" {
		t.Fatalf("email = %q, want normalized", resp.User.Email)
	}
	if strings.Contains(recorder.Body.String(), "password") {
		t.Fatalf("response leaks password material: %s", recorder.Body.String())
	}

	// The issued token verifies back to the registered user.
	claims, err := auth.NewTokenService(testJWTSecret).Verify(resp.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	identity, err := claims.Identity()
	if err != nil {
		t.Fatalf("claims identity: %v", err)
	}
	if identity.UserID != resp.User.ID {
		t.Fatalf("token subject = %d, want %d", identity.UserID, resp.User.ID)
	}
}

func TestRegisterDuplicateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerTestUser(t, router, "dup@example.com")

	recorder := doRequest(t, router, http.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Second",
		"email":    "DUP@example.com",
		"password": "other-pass",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", recorder.Code, recorder.Body.String())
	}
}

func TestRegisterMissingFieldsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	recorder := doRequest(t, router, http.MethodPost, "/auth/register", "", map[string]any{
		"email": "nobody@example.com",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)
	_, user := registerTestUser(t, router, "login@example.com")

	recorder := doRequest(t, router, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "LOGIN@example.com",
		"password": "testpass123!",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}

	var resp AuthResponse
	decodeBody(t, recorder, &resp)
	if resp.User.ID != user.ID {
		t.Fatalf("logged in as %d, want %d", resp.User.ID, user.ID)
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	router := newTestRouter(t)
	registerTestUser(t, router, "known@example.com")

	wrongPass := doRequest(t, router, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "known@example.com",
		"password": "wrong",
	})
	unknownUser := doRequest(t, router, http.MethodPost, "/auth/login", "", map[string]any{
		"email":    "ghost@example.com",
		"password": "testpass123!",
	})

	if wrongPass.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("statuses = %d/%d, want 401/401", wrongPass.Code, unknownUser.Code)
	}
	if wrongPass.Body.String() != unknownUser.Body.String() {
		t.Fatalf("failure bodies differ: %q vs %q", wrongPass.Body.String(), unknownUser.Body.String())
	}
}

func TestOAuthEndpointRequiresInternalKey(t *testing.T) {
	router := newTestRouter(t)

	payload := map[string]any{
		"email":    "sso@example.com",
		"name":     "SSO User",
		"provider": "google",
	}

	recorder := doRequest(t, router, http.MethodPost, "/auth/oauth", "", payload)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("without key: status = %d, want 401", recorder.Code)
	}

	recorder = doRequestWithHeader(t, router, http.MethodPost, "/auth/oauth", payload, internalKeyHeader, "wrong-key")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", recorder.Code)
	}

	recorder = doRequestWithHeader(t, router, http.MethodPost, "/auth/oauth", payload, internalKeyHeader, testInternalKey)
	if recorder.Code != http.StatusOK {
		t.Fatalf("with key: status = %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestOAuthEndpointIdempotent(t *testing.T) {
	router := newTestRouter(t)

	first := doRequestWithHeader(t, router, http.MethodPost, "/auth/oauth", map[string]any{
		"email": "sso@example.com", "name": "First", "provider": "google",
	}, internalKeyHeader, testInternalKey)
	if first.Code != http.StatusOK {
		t.Fatalf("first sync status = %d: %s", first.Code, first.Body.String())
	}

	second := doRequestWithHeader(t, router, http.MethodPost, "/auth/oauth", map[string]any{
		"email": "SSO@example.com", "name": "Renamed", "provider": "google",
	}, internalKeyHeader, testInternalKey)
	if second.Code != http.StatusOK {
		t.Fatalf("second sync status = %d: %s", second.Code, second.Body.String())
	}

	var firstResp, secondResp AuthResponse
	decodeBody(t, first, &firstResp)
	decodeBody(t, second, &secondResp)

	if firstResp.User.ID != secondResp.User.ID {
		t.Fatalf("resync changed identity: %d vs %d", firstResp.User.ID, secondResp.User.ID)
	}
	if secondResp.User.Name != "Renamed" {
		t.Fatalf("resync did not refresh name: %q", secondResp.User.Name)
	}
}

func TestMeEndpoint(t *testing.T) {
	router := newTestRouter(t)
	token, user := registerTestUser(t, router, "me@example.com")

	recorder := doRequest(t, router, http.MethodGet, "/auth/me", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}

	var got struct {
		ID int `json:"id"`
	}
	decodeBody(t, recorder, &got)
	if got.ID != user.ID {
		t.Fatalf("me returned id %d, want %d", got.ID, user.ID)
	}

	recorder = doRequest(t, router, http.MethodGet, "/auth/me", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d, want 401", recorder.Code)
	}

	recorder = doRequest(t, router, http.MethodGet, "/auth/me", "garbage-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", recorder.Code)
	}
}
