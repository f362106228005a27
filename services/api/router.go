package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"mailadmin/pkg/telemetry"
)

const requestIDHeader = "X-Request-ID"

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	// RateLimitPerMinute caps requests per client IP; zero disables the limit.
	RateLimitPerMinute int
	// LoginRateLimitPerMinute caps login attempts per client IP.
	LoginRateLimitPerMinute int
	// ServiceName labels tracing spans; empty disables tracing middleware.
	ServiceName string
}

// Router builds the HTTP handler with health, readiness, metrics and API routes.
func (a *API) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(a.log))
	r.Use(requestID)
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if opts.ServiceName != "" {
		r.Use(telemetry.Middleware(opts.ServiceName))
	}

	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(opts.RateLimitPerMinute, time.Minute))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	a.routes(r, opts)
	return r
}

// requestID reuses the caller's X-Request-ID or mints one, echoes it and tags
// the request logger with it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("request_id", id)
		})
		next.ServeHTTP(w, r)
	})
}
