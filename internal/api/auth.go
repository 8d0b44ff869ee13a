package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"seatreserve/internal/config"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"
)

// Permissions granted to API keys.
const (
	PermReadStatus    = "read:status"
	PermWriteBookings = "write:bookings"
	PermAdmin         = "admin"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errRateLimited      = errors.New("rate limit exceeded")
)

type clientCtxKey struct{}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m}
}

// Wrap authenticates the caller and applies the rate limit. /healthz is open.
func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			client, err := a.authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), clientCtxKey{}, client))
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Require rejects callers whose key lacks perm. A key without any listed
// permissions is allowed everything.
func (a *HTTPAuth) Require(perm string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if a.cfg.Auth.Enabled && perm != "" {
			client, _ := r.Context().Value(clientCtxKey{}).(config.APIClientKey)
			if !hasPermission(client, perm) {
				writeError(w, http.StatusForbidden, errPermissionDenied.Error())
				return
			}
		}
		next(w, r, ps)
	}
}

func (a *HTTPAuth) headerNames() (apiKey, extra string) {
	apiKey = strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if apiKey == "" {
		apiKey = "x-api-key"
	}
	extra = strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderExtra))
	if extra == "" {
		extra = "x-api-extra"
	}
	return apiKey, extra
}

func (a *HTTPAuth) authenticate(r *http.Request) (config.APIClientKey, error) {
	keyHeader, extraHeader := a.headerNames()

	apiKey := strings.TrimSpace(r.Header.Get(keyHeader))
	extra := strings.TrimSpace(r.Header.Get(extraHeader))
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errMissingKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errInvalidExtra
	}
	return client, nil
}

func hasPermission(client config.APIClientKey, required string) bool {
	if len(client.Permissions) == 0 {
		return true
	}
	for _, p := range client.Permissions {
		p = strings.TrimSpace(p)
		if p == required || p == PermAdmin {
			return true
		}
	}
	return false
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}
	if !a.getLimiter(a.clientKey(r)).Allow() {
		return errRateLimited
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	keyHeader, _ := a.headerNames()
	if apiKey := strings.TrimSpace(r.Header.Get(keyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, _ := a.limiters.LoadOrStore(key, lim)
	return actual.(*rate.Limiter)
}
