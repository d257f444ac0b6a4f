package helpers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// WithClientIP guarda la IP ya resuelta por ProxyTrust.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP devuelve la IP resuelta por el middleware; sin él, la del peer TCP.
// X-Forwarded-For nunca se lee acá.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return remoteIP(r)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// ProxyTrust decide cuándo creer X-Forwarded-For. El zero value no confía en
// nadie.
type ProxyTrust struct {
	nets []*net.IPNet
}

// ParseTrustedProxies acepta IPs sueltas o CIDRs.
func ParseTrustedProxies(list []string) (ProxyTrust, error) {
	var p ProxyTrust
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			ip := net.ParseIP(s)
			if ip == nil {
				return ProxyTrust{}, fmt.Errorf("trusted proxy %q: invalid ip", s)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			s = fmt.Sprintf("%s/%d", s, bits)
		}
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return ProxyTrust{}, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		p.nets = append(p.nets, n)
	}
	return p, nil
}

func (p ProxyTrust) trusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Resolve devuelve la IP del cliente. X-Forwarded-For sólo cuenta si el peer
// es un proxy de confianza, y se recorre de derecha a izquierda: la primera
// dirección que no es proxy propio es el cliente. Lo que está más a la
// izquierda lo escribe el cliente y no se usa.
func (p ProxyTrust) Resolve(r *http.Request) string {
	peer := remoteIP(r)
	if len(p.nets) == 0 || !p.trusted(peer) {
		return peer
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if net.ParseIP(hop) == nil {
			return peer
		}
		if !p.trusted(hop) {
			return hop
		}
	}
	return peer
}
