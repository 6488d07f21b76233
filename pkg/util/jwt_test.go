package util

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndParseJWT(t *testing.T) {
	now := time.Now()
	token, claims, err := GenerateJWT("user-1", "secret", time.Hour, now)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	parsed, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if parsed.Subject != "user-1" {
		t.Errorf("subject = %q", parsed.Subject)
	}
	if parsed.ID == "" || parsed.ID != claims.ID {
		t.Errorf("jti = %q, want %q", parsed.ID, claims.ID)
	}
}

func TestParseJWTRejects(t *testing.T) {
	good, _, _ := GenerateJWT("u", "secret", time.Hour, time.Now())
	expired, _, _ := GenerateJWT("u", "secret", time.Minute, time.Now().Add(-2*time.Hour))

	tests := []struct {
		name  string
		token string
		key   string
	}{
		{"wrong secret", good, "other"},
		{"expired", expired, "secret"},
		{"garbage", "not.a.token", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJWT(tt.token, tt.key); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := ExtractToken(r); got != tt.want {
			t.Errorf("ExtractToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
