package middleware

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIPExtractor resolves the real client IP for access logs.
// X-Forwarded-For is only consulted when the direct peer is a trusted
// proxy; with no trusted proxies configured the peer address is always
// used, so clients cannot spoof their IP through headers.
type ClientIPExtractor struct {
	trusted []netip.Prefix
}

// NewClientIPExtractor builds an extractor trusting the given proxies.
// Entries may be CIDR prefixes ("10.0.0.0/8") or single addresses
// ("192.0.2.1"); entries that parse as neither are skipped.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	trusted := make([]netip.Prefix, 0, len(trustedProxies))
	for _, entry := range trustedProxies {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			trusted = append(trusted, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			trusted = append(trusted, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return &ClientIPExtractor{trusted: trusted}
}

// Extract returns the client IP for the request. The peer address is
// authoritative unless it belongs to a trusted proxy, in which case
// X-Forwarded-For is walked right to left until the first address
// outside the trusted set.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	peer := stripPort(r.RemoteAddr)
	if !e.isTrusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get(HeaderXForwardedFor), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !e.isTrusted(hop) {
			return hop
		}
	}

	// Every hop in the chain is one of our own proxies.
	return peer
}

// isTrusted reports whether the address falls inside a trusted prefix.
func (e *ClientIPExtractor) isTrusted(addrStr string) bool {
	if len(e.trusted) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(addrStr)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range e.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// stripPort removes the port from an address string, handling both
// "192.0.2.1:8080" and "[::1]:8080" forms. Addresses without a port
// are returned unchanged.
func stripPort(addr string) string {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap.Addr().Unmap().String()
	}
	return addr
}

// globalExtractor is used by middleware functions to extract client IPs.
// It defaults to the secure extractor (only RemoteAddr, no header trust).
//
//nolint:gochecknoglobals // Package-level extractor set once at startup
var globalExtractor = NewClientIPExtractor(nil)

// SetGlobalIPExtractor sets the package-level ClientIPExtractor used by
// all middleware functions. This should be called once during application
// startup before any requests are served.
func SetGlobalIPExtractor(e *ClientIPExtractor) {
	if e != nil {
		globalExtractor = e
	}
}
