package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignAndVerifyJWT(t *testing.T) {
	secret := "test-secret"
	claims := TokenClaims{
		Sub:      "user-123",
		Exp:      time.Now().Add(time.Hour).Unix(),
		Issuer:   "tester",
		Audience: "clients",
	}
	token, err := SignJWT(secret, claims)
	if err != nil {
		t.Fatalf("SignJWT() unexpected error: %v", err)
	}
	parsed, err := VerifyJWT(secret, token)
	if err != nil {
		t.Fatalf("VerifyJWT() unexpected error: %v", err)
	}
	if *parsed != claims {
		t.Fatalf("VerifyJWT() returned %+v, want %+v", parsed, claims)
	}
}

func TestVerifyJWTInvalidSignature(t *testing.T) {
	token, err := SignJWT("secret-a", TokenClaims{Sub: "user-123", Exp: time.Now().Add(time.Hour).Unix()})
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}
	if _, err := VerifyJWT("secret-b", token); err == nil {
		t.Fatalf("VerifyJWT() expected invalid signature error")
	}
}

func TestVerifyJWTExpired(t *testing.T) {
	token, err := SignJWT("secret", TokenClaims{Sub: "user-123", Exp: time.Now().Add(-time.Minute).Unix()})
	if err != nil {
		t.Fatalf("SignJWT() error: %v", err)
	}
	if _, err := VerifyJWT("secret", token); err == nil {
		t.Fatalf("VerifyJWT() expected expiration error")
	}
}

func TestVerifyJWTRequiresSubject(t *testing.T) {
	token, _ := SignJWT("secret", TokenClaims{Exp: time.Now().Add(time.Hour).Unix()})
	if _, err := VerifyJWT("secret", token); err == nil {
		t.Fatalf("VerifyJWT() expected error for empty subject")
	}
}

func TestAuthJWT(t *testing.T) {
	secret := "secret"
	token, _ := SignJWT(secret, TokenClaims{Sub: "user-9", Exp: time.Now().Add(time.Hour).Unix()})

	var seen string
	h := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		prepare  func(*http.Request)
		wantCode int
		wantUser string
	}{
		{
			name:     "bearer header",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
			wantCode: http.StatusOK,
			wantUser: "user-9",
		},
		{
			name:     "session cookie",
			prepare:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token}) },
			wantCode: http.StatusOK,
			wantUser: "user-9",
		},
		{
			name:     "no session",
			prepare:  func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong scheme",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) },
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "tampered token",
			prepare:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token + "x"}) },
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.prepare(req)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if seen != tc.wantUser {
				t.Fatalf("user = %q, want %q", seen, tc.wantUser)
			}
			if tc.wantCode == http.StatusUnauthorized {
				var body struct {
					Error struct {
						Code string `json:"code"`
					} `json:"error"`
				}
				if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.Error.Code != "unauthorized" {
					t.Fatalf("error code = %q", body.Error.Code)
				}
			}
		})
	}
}
