package payment

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// AllowList holds the networks webhook deliveries may come from.
type AllowList struct {
	prefixes   []netip.Prefix
	trustProxy bool
}

// NewAllowList parses CIDR prefixes and single addresses. With trustProxy the
// client address is the right-most X-Forwarded-For hop.
func NewAllowList(sources []string, trustProxy bool) (*AllowList, error) {
	a := &AllowList{trustProxy: trustProxy}
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.Contains(s, "/") {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return nil, fmt.Errorf("allow list entry %q: %w", s, err)
			}
			a.prefixes = append(a.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("allow list entry %q: %w", s, err)
		}
		addr = addr.Unmap()
		a.prefixes = append(a.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return a, nil
}

// Contains reports whether addr is inside one of the allowed networks.
func (a *AllowList) Contains(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientAddr returns the address the request is attributed to.
func (a *AllowList) ClientAddr(r *http.Request) (netip.Addr, bool) {
	if a.trustProxy {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(xff[len(xff)-1], ",")
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[len(hops)-1]))
			if err != nil {
				return netip.Addr{}, false
			}
			return addr.Unmap(), true
		}
	}
	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

// Allowed combines ClientAddr and Contains.
func (a *AllowList) Allowed(r *http.Request) bool {
	addr, ok := a.ClientAddr(r)
	return ok && a.Contains(addr)
}
