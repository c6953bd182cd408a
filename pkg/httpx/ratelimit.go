package httpx

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/campus/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: RequestsPerWindow refill over Window,
// with up to Burst available at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Valid reports whether every field is positive.
func (c RateLimitConfig) Valid() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0 && c.Burst > 0
}

// RateLimits groups the profiles the router hands out per endpoint class.
type RateLimits struct {
	Strict   RateLimitConfig // login
	Moderate RateLimitConfig // refresh, logout, admin writes
	Lenient  RateLimitConfig // authenticated reads
	Public   RateLimitConfig // jwks, health

	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means clients are keyed by socket address.
	TrustedProxies []netip.Prefix
}

// ClientIP returns the key extractor for these limits.
func (l RateLimits) ClientIP() KeyExtractor {
	return ClientIPKeyExtractor(l.TrustedProxies)
}

// DefaultRateLimits returns the stock profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5},
		Moderate: RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20},
		Lenient:  RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100},
		Public:   RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000},
	}
}

// RateLimitsFromEnv overlays RATELIMIT_{STRICT,MODERATE,LENIENT,PUBLIC}_*
// variables onto base. lookup is usually os.LookupEnv.
func RateLimitsFromEnv(lookup func(string) (string, bool), base RateLimits) RateLimits {
	base.Strict = ParseRateLimitFromEnv(lookup, "STRICT", base.Strict)
	base.Moderate = ParseRateLimitFromEnv(lookup, "MODERATE", base.Moderate)
	base.Lenient = ParseRateLimitFromEnv(lookup, "LENIENT", base.Lenient)
	base.Public = ParseRateLimitFromEnv(lookup, "PUBLIC", base.Public)
	return base
}

// ParseRateLimitFromEnv reads RATELIMIT_<prefix>_REQUESTS, _WINDOW_SEC and
// _BURST. Missing or non-positive values keep the default.
func ParseRateLimitFromEnv(lookup func(string) (string, bool), prefix string, def RateLimitConfig) RateLimitConfig {
	positive := func(name string) (int, bool) {
		raw, ok := lookup("RATELIMIT_" + prefix + "_" + name)
		if !ok {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}

	cfg := def
	if n, ok := positive("REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

// KeyExtractor buckets requests for rate limiting. An empty key bypasses
// the limiter.
type KeyExtractor func(*http.Request) string

// ParseTrustedProxies reads a comma separated list of CIDRs or bare
// addresses.
func ParseTrustedProxies(raw string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for field := range strings.SplitSeq(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.Contains(field, "/") {
			p, err := netip.ParsePrefix(field)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", field, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(field)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", field, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// IPKeyExtractor keys by the socket address and ignores forwarding headers.
func IPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ClientIPKeyExtractor reads forwarding headers only when the socket peer is
// inside trusted. X-Forwarded-For is walked from the right and the first hop
// outside trusted wins, so entries a client prepends are never used.
func ClientIPKeyExtractor(trusted []netip.Prefix) KeyExtractor {
	if len(trusted) == 0 {
		return IPKeyExtractor
	}

	isTrusted := func(s string) bool {
		addr, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		for _, p := range trusted {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := IPKeyExtractor(r)
		if !isTrusted(peer) {
			return peer
		}

		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(strings.Join(xff, ","), ",")
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if hop != "" && !isTrusted(hop) {
					return hop
				}
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}
}

// SubjectKeyExtractor keys by the authenticated subject.
func SubjectKeyExtractor(r *http.Request) string {
	return SubjectFromContext(r.Context())
}

// CompositeKeyExtractor joins the non-empty results of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// FormFieldKeyExtractor keys by a query or form value, e.g. the username
// on a login attempt.
func FormFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(r.FormValue(field)))
	}
}

const limiterSweepInterval = 5 * time.Minute

type limiterPool struct {
	limit rate.Limit
	burst int

	limiters sync.Map // key -> *rate.Limiter

	mu        sync.Mutex
	lastSweep time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	return &limiterPool{
		limit:     rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:     cfg.Burst,
		lastSweep: time.Now(),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	if l, ok := p.limiters.Load(key); ok {
		return l.(*rate.Limiter)
	}

	l, _ := p.limiters.LoadOrStore(key, rate.NewLimiter(p.limit, p.burst))
	p.sweep()
	return l.(*rate.Limiter)
}

// sweep drops limiters whose bucket has refilled, i.e. keys that have gone
// quiet. Runs at most once per limiterSweepInterval.
func (p *limiterPool) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.lastSweep) < limiterSweepInterval {
		return
	}
	p.lastSweep = time.Now()

	p.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(p.burst) {
			p.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitMiddleware rejects requests over cfg with 429 and Retry-After.
func RateLimitMiddleware(cfg RateLimitConfig, keyOf KeyExtractor) Middleware {
	if !cfg.Valid() {
		cfg = DefaultRateLimits().Public
	}
	pool := newLimiterPool(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := pool.get(key)
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.Reserve()
			retryAfter := max(int(res.Delay().Seconds()), 1)
			res.Cancel()

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			slogx.FromContext(r.Context(), nil).Warn("rate limit exceeded",
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)

			WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, try again later")
		})
	}
}

// RateLimitByIP limits per client address. A nil clientIP means
// IPKeyExtractor.
func RateLimitByIP(cfg RateLimitConfig, clientIP KeyExtractor) Middleware {
	return RateLimitMiddleware(cfg, orSocket(clientIP))
}

// RateLimitBySubject limits per authenticated subject, falling back to the
// client address. It must run after AuthnMiddleware.
func RateLimitBySubject(cfg RateLimitConfig, clientIP KeyExtractor) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", SubjectKeyExtractor, orSocket(clientIP)))
}

// RateLimitByIPAndFormField limits per client address plus a form field.
func RateLimitByIPAndFormField(cfg RateLimitConfig, clientIP KeyExtractor, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", orSocket(clientIP), FormFieldKeyExtractor(field)))
}

func orSocket(clientIP KeyExtractor) KeyExtractor {
	if clientIP == nil {
		return IPKeyExtractor
	}
	return clientIP
}
