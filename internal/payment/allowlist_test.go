package payment

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

var yookassaSources = []string{
	"185.71.76.0/27", "185.71.77.0/27", "77.75.153.0/25", "77.75.156.11",
	"77.75.156.35", "77.75.154.128/25", "2a02:5180::/32",
}

func TestAllowListContains(t *testing.T) {
	a, err := NewAllowList(yookassaSources, false)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		addr string
		want bool
	}{
		{"185.71.76.1", true},
		{"185.71.76.31", true},
		{"185.71.76.32", false},
		{"77.75.156.11", true},
		{"77.75.156.12", false},
		{"::ffff:185.71.77.5", true},
		{"2a02:5180::1", true},
		{"2a02:5181::1", false},
		{"127.0.0.1", false},
	}
	for _, c := range cases {
		if got := a.Contains(netip.MustParseAddr(c.addr)); got != c.want {
			t.Errorf("Contains(%s) = %v, want %v", c.addr, got, c.want)
		}
	}
}

func TestNewAllowListRejectsGarbage(t *testing.T) {
	if _, err := NewAllowList([]string{"185.71.76.0/99"}, false); err == nil {
		t.Error("expected error for bad prefix")
	}
	if _, err := NewAllowList([]string{"not-an-ip"}, false); err == nil {
		t.Error("expected error for bad address")
	}
}

func TestAllowListClientAddr(t *testing.T) {
	direct, _ := NewAllowList(yookassaSources, false)
	proxied, _ := NewAllowList(yookassaSources, true)

	r := httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 185.71.76.10")

	if direct.Allowed(r) {
		t.Error("direct mode must ignore X-Forwarded-For")
	}
	if !proxied.Allowed(r) {
		t.Error("proxied mode should use the right-most hop")
	}

	r.Header.Set("X-Forwarded-For", "185.71.76.10, 1.2.3.4")
	if proxied.Allowed(r) {
		t.Error("spoofed left-most hop must not be trusted")
	}

	r = httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "[2a02:5180::7]:443"
	if !direct.Allowed(r) {
		t.Error("ipv6 remote addr should match")
	}
}
