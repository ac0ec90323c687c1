package metrics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewServer builds an HTTP server exposing /metrics and /healthz on addr.
// Each mount may register further routes on the same router.
func NewServer(addr string, mounts ...func(chi.Router)) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           Router(mounts...),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Router returns the chi router backing NewServer.
func Router(mounts ...func(chi.Router)) http.Handler {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", Handler())
	for _, mount := range mounts {
		mount(r)
	}
	return r
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			routePattern = rctx.RoutePattern()
		}
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
