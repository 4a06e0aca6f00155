package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusboard/internal/auth"
	"campusboard/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:        ":0",
		JWTSecret:       "test-secret",
		JWTIssuer:       "test-issuer",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func mustToken(t *testing.T, cfg config.Config, userID, email, role string, ttl time.Duration) string {
	t.Helper()
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, ttl, auth.Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func TestHealth(t *testing.T) {
	server := NewServer(testConfig(), nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	resp, err := http.Get(app.URL + "/api/health")
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

// Missing token is 401; a token that fails verification is 403.
func TestAuthMiddlewareStatusSplit(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"garbage token", "Bearer garbage", http.StatusForbidden},
		{"expired token", "Bearer " + mustToken(t, cfg, "user-1", "a@b.com", "admin", -time.Minute), http.StatusForbidden},
		{"wrong secret", "Bearer " + wrongSecretToken(t, cfg), http.StatusForbidden},
	}

	for _, tc := range cases {
		req, err := http.NewRequest(http.MethodGet, app.URL+"/api/students", nil)
		if err != nil {
			t.Fatalf("%s: request error: %v", tc.name, err)
		}
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: http error: %v", tc.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
	}
}

func wrongSecretToken(t *testing.T, cfg config.Config) string {
	t.Helper()
	token, err := auth.NewAccessToken("other-secret", cfg.JWTIssuer, time.Hour, auth.Claims{
		UserID: "user-1",
		Role:   "admin",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func TestRoleGate(t *testing.T) {
	cfg := testConfig()
	server := NewServer(cfg, nil, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	teacherToken := mustToken(t, cfg, "user-2", "t@b.com", "teacher", time.Hour)
	userToken := mustToken(t, cfg, "user-3", "u@b.com", "user", time.Hour)
	noRoleToken := mustToken(t, cfg, "user-4", "n@b.com", "", time.Hour)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"teacher cannot delete", http.MethodDelete, "/api/students/some-id", teacherToken},
		{"teacher cannot create", http.MethodPost, "/api/students", teacherToken},
		{"teacher cannot update", http.MethodPut, "/api/students/some-id", teacherToken},
		{"plain user cannot list", http.MethodGet, "/api/students", userToken},
		{"plain user cannot read", http.MethodGet, "/api/students/some-id", userToken},
		{"empty role cannot list", http.MethodGet, "/api/students", noRoleToken},
	}

	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, app.URL+tc.path, nil)
		if err != nil {
			t.Fatalf("%s: request error: %v", tc.name, err)
		}
		req.Header.Set("Authorization", "Bearer "+tc.token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: http error: %v", tc.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", tc.name, resp.StatusCode)
		}
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"bearer abc":      "abc",
		"Basic abc":       "",
		"Bearer":          "",
		"Bearer abc def":  "abc def",
		"Bearer   spaced": "spaced",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("header %q: expected %q, got %q", header, expect, got)
		}
	}
}
