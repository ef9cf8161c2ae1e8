package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/crm/internal/core"
)

// proxySet is the parsed TRUSTED_PROXIES list.
type proxySet []*net.IPNet

func parseProxies(cidrs []string) proxySet {
	var set proxySet
	for _, cidr := range cidrs {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			set = append(set, network)
			continue
		}
		// A bare address trusts exactly that host.
		ip := net.ParseIP(cidr)
		if ip == nil {
			slog.Warn("client ip: invalid trusted proxy, skipping", "cidr", cidr)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			ip, bits = ip.To4(), 32
		}
		set = append(set, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return set
}

func (p proxySet) trusts(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, network := range p {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// resolve returns the client address for r. Forwarding headers count only when
// the connection comes from a trusted proxy. X-Forwarded-For is read from the
// right, skipping trusted hops, so a client cannot prepend a fake address.
func (p proxySet) resolve(r *http.Request) net.IP {
	peer := hostIP(r.RemoteAddr)
	if !p.trusts(peer) {
		return peer
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			break
		}
		if !p.trusts(ip) {
			return ip
		}
	}
	return peer
}

// ClientIP resolves the caller's address and records it in the request
// context, where imports pick it up for their history entry. RemoteAddr is
// rewritten to the bare address so rate limiting and request logs agree.
func ClientIP(trustedCIDRs []string) func(http.Handler) http.Handler {
	proxies := parseProxies(trustedCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := proxies.resolve(r); ip != nil {
				r.RemoteAddr = ip.String()
				r = r.WithContext(core.ContextWithIPAddress(r.Context(), r.RemoteAddr))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hostIP parses the address out of a host:port string or a plain IP.
func hostIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
