package apiapp

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/IdrisKulubi/demo-site-sub001/internal/config"
	authsvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/auth"
	httperrors "github.com/IdrisKulubi/demo-site-sub001/internal/transport/http/errors"
)

const (
	requestTimeout    = 60 * time.Second
	ipLimiterIdleTTL  = 10 * time.Minute
	ipLimiterSweepGap = time.Minute
)

// ApplyMiddlewares installs the middleware shared by every route. Request
// timeouts are applied per group because streams are long-lived.
func ApplyMiddlewares(r chiRouter, cfg config.HTTPConfig, log *zap.Logger) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

type tokenParser interface {
	ParseAccessToken(raw string) (authsvc.AccessClaims, error)
}

// AuthMiddleware validates the bearer token and attaches the caller's
// identity. Browsers cannot set headers on a WebSocket handshake, so upgrade
// requests may pass the token as access_token instead.
func AuthMiddleware(tokens tokenParser, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens == nil {
				httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{
					Code:    "AUTH_SERVICE_UNAVAILABLE",
					Message: "auth service is unavailable",
				})
				return
			}

			accessToken, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok && websocket.IsWebSocketUpgrade(r) {
				accessToken = strings.TrimSpace(r.URL.Query().Get("access_token"))
				ok = accessToken != ""
			}
			if !ok {
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				})
				return
			}

			claims, err := tokens.ParseAccessToken(accessToken)
			if err != nil {
				if log != nil {
					log.Debug("auth middleware validation failed", zap.Error(err))
				}
				httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{
					Code:    "UNAUTHORIZED",
					Message: "invalid access token",
				})
				return
			}

			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{
				UserID: claims.UserID,
				SID:    claims.SID,
				Role:   claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(value string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

// ipLimiter throttles requests per client address with a token bucket each.
type ipLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return &ipLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > ipLimiterSweepGap {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > ipLimiterIdleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.APIError{
				Code:    "TOO_MANY_CONNECTIONS",
				Message: "too many stream connection attempts",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on chi's RealIP having already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
