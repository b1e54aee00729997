package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 127.0.0.1 ", "", "::1"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d prefixes, want 3", len(got))
	}
	if _, err := ParseTrustedProxies([]string{"not-an-ip"}); err == nil {
		t.Fatalf("expected error for malformed entry")
	}
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatalf("expected error for malformed prefix")
	}
}

func TestResolveClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	cases := []struct {
		name    string
		remote  string
		xff     string
		trusted bool
		want    string
	}{
		{"no proxies configured", "10.1.1.1:5000", "203.0.113.5", false, "10.1.1.1"},
		{"untrusted peer", "192.0.2.10:5000", "203.0.113.5", true, "192.0.2.10"},
		{"trusted peer", "10.1.1.1:5000", "203.0.113.5", true, "203.0.113.5"},
		{"spoofed left hop", "10.1.1.1:5000", "1.2.3.4, 203.0.113.5", true, "203.0.113.5"},
		{"proxy chain", "10.1.1.1:5000", "203.0.113.5, 10.2.2.2", true, "203.0.113.5"},
		{"trusted peer without header", "10.1.1.1:5000", "", true, "10.1.1.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			list := trusted
			if !tc.trusted {
				list = nil
			}
			if got := resolveClientIP(r, list); got != tc.want {
				t.Fatalf("resolveClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
