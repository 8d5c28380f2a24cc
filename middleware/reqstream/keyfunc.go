package reqstream

import (
	"net"
	"net/http"
	"strings"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"
)

// KeyFunc extrai a chave do cliente para o rate limit.
type KeyFunc func(r *http.Request) string

// RateLimit configura o limite por cliente aplicado pela Source antes de entregar o
// request à sequência. Requests bloqueados recebem 429 e não contam para o buffer.
type RateLimit struct {
	Store              domain.LimiterStore
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RetryAfter         time.Duration
	// AddHeaders inclui X-RateLimit-* nas respostas.
	AddHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// DefaultKeyFunc usa, nesta ordem: o header keyHeader, o primeiro IP do X-Forwarded-For
// (se trustXFF) e o host de RemoteAddr.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		remote := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
			return host
		}
		if remote != "" {
			return remote
		}
		return "unknown"
	}
}
