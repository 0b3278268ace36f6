package handler

import (
	"context"
	"dspgend/metrics"
	"github.com/google/uuid"
	"net/http"
)

type contextKey string

const requestIDKey = contextKey("requestID")

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestIDFrom returns the id stored by WithRequestID, or "" if there is none.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestID tags every request with an id, reusing the caller's X-Request-Id when present.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// withRecover turns a panic in a handler into a logged 500 so the listener keeps serving.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				requestLogger(r).Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// NewMux wires the dispatcher behind the health and metrics endpoints.
// m is only served when exposeMetrics is set. POST requests skip the ServeMux so
// its path cleaning never answers them with a redirect.
func NewMux(d *Dispatcher, m *metrics.Metrics, exposeMetrics bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthz)
	if exposeMetrics && m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	mux.Handle("/", d)

	return WithRequestID(withRecover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			d.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})))
}
