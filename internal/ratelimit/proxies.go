package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Proxies is the set of peers whose forwarding headers are believed. A nil
// or empty set trusts nobody, so the caller is always the connecting peer.
type Proxies struct {
	nets []*net.IPNet
}

// ParseProxies accepts CIDR blocks and bare addresses.
func ParseProxies(list []string) (*Proxies, error) {
	p := &Proxies{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q: not an address", s)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			p.nets = append(p.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		p.nets = append(p.nets, n)
	}
	return p, nil
}

func (p *Proxies) trusted(ip net.IP) bool {
	if p == nil || ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP is the caller address. Forwarding headers count only when the
// connecting peer is a trusted proxy; X-Forwarded-For is read right to left
// and the first hop that is not itself trusted wins.
func (p *Proxies) ClientIP(r *http.Request) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !p.trusted(net.ParseIP(remote)) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		client := remote
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				return client
			}
			client = hop
			if !p.trusted(ip) {
				return client
			}
		}
		return client
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return remote
}
