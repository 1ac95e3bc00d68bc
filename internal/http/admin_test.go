package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"procbse/server/internal/auth"
	"procbse/server/internal/config"
)

func testAuthServer() *Server {
	return &Server{
		cfg: config.Config{
			Admin: config.AdminConfig{
				Username:  "Admin",
				Password:  "Admin@2026",
				JWTSecret: "test-secret",
				TokenTTL:  time.Hour,
			},
		},
		logger: zap.NewNop(),
	}
}

func TestAdminAuthorizedCredentials(t *testing.T) {
	s := testAuthServer()
	r := httptest.NewRequest("POST", "/api/admin", nil)

	cases := map[string]struct {
		username string
		password string
		want     bool
	}{
		"exact match":       {"Admin", "Admin@2026", true},
		"wrong password":    {"Admin", "Admin@2025", false},
		"wrong username":    {"admin", "Admin@2026", false},
		"near-miss prefix":  {"Admin", "Admin@202", false},
		"near-miss suffix":  {"Admin", "Admin@20266", false},
		"empty credentials": {"", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := adminRequest{Action: "fetch", Username: tc.username, Password: tc.password}
			if got := s.adminAuthorized(r, req); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestAdminAuthorizedBearer(t *testing.T) {
	s := testAuthServer()

	token, err := auth.NewAdminToken("test-secret", "Admin", time.Hour)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}

	r := httptest.NewRequest("POST", "/api/admin", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	if !s.adminAuthorized(r, adminRequest{Action: "fetch"}) {
		t.Fatalf("valid bearer token must authorize")
	}

	r.Header.Set("Authorization", "Bearer not-a-token")
	if s.adminAuthorized(r, adminRequest{Action: "fetch"}) {
		t.Fatalf("garbage bearer token must not authorize")
	}

	// A bearer token never satisfies login; login re-checks the pair.
	r.Header.Set("Authorization", "Bearer "+token)
	if s.adminAuthorized(r, adminRequest{Action: "login"}) {
		t.Fatalf("login must require the credential pair")
	}

	forged, err := auth.NewAdminToken("other-secret", "Admin", time.Hour)
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}
	r.Header.Set("Authorization", "Bearer "+forged)
	if s.adminAuthorized(r, adminRequest{Action: "fetch"}) {
		t.Fatalf("token signed with another secret must not authorize")
	}
}
