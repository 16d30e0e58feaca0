package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		country  string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "ES")
			},
			country: "US",
			want:    "es",
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			want: "en",
		},
		{
			name: "accept-language pt preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "pt-BR,en;q=0.8")
			},
			want: "pt",
		},
		{
			name:    "country maps to locale",
			country: "BR",
			want:    "pt",
		},
		{
			name:    "unmapped country falls back to en",
			country: "DE",
			want:    "en",
		},
		{
			name:     "configured fallback",
			fallback: "es",
			want:     "es",
		},
		{
			name: "default to en",
			want: "en",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			if got := detectLocale(req, tc.fallback, tc.country); got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountryHeaderHint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("CF-IPCountry", "br")
	if got := ResolveCountry(req, nil); got != "BR" {
		t.Fatalf("ResolveCountry() = %q, want %q", got, "BR")
	}
}

func TestResolveCountryLookupFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.1:443"
	lookup := func(ip string) (string, error) {
		return "", errors.New("database offline")
	}
	if got := ResolveCountry(req, lookup); got != "" {
		t.Fatalf("ResolveCountry() = %q, want empty", got)
	}
}

func TestResolveCountryLookupSuccess(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.1:443"
	lookup := func(ip string) (string, error) {
		if ip != "203.0.113.1" {
			t.Fatalf("lookup received %q", ip)
		}
		return "es", nil
	}
	if got := ResolveCountry(req, lookup); got != "ES" {
		t.Fatalf("ResolveCountry() = %q, want %q", got, "ES")
	}
}
