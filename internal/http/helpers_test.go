package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUserID(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"  alice  ", "alice"},
		{"bob\x00", "bob"},
		{"", ""},
		{"a|b", ""},
		{strings.Repeat("x", maxUserIDLength+1), ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(UserIDHeader, tt.header)
		if got := userID(r); got != tt.want {
			t.Errorf("userID(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "trace-123")
	if got := requestID(r); got != "trace-123" {
		t.Fatalf("caller id should be kept, got %q", got)
	}

	r.Header.Set("X-Request-ID", strings.Repeat("z", maxRequestIDLength+1))
	minted := requestID(r)
	if !strings.HasPrefix(minted, "req_") || len(minted) != len("req_")+16 {
		t.Fatalf("unexpected minted id %q", minted)
	}
	if again := requestID(r); again == minted {
		t.Fatal("minted ids should differ")
	}
}
