package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dwikikusuma/shop-fulfillment/internal/identity"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
	"github.com/dwikikusuma/shop-fulfillment/pkg/metrics"
)

type ctxKey int

const identityKey ctxKey = iota

var errNoIdentity = errs.New(errs.KindUnauthorized, "IDENTITY_MISSING", "caller identity headers missing or invalid")

// callerFrom returns the identity placed on the context by withIdentity.
func callerFrom(ctx context.Context) (identity.Identity, bool) {
	id, ok := ctx.Value(identityKey).(identity.Identity)
	return id, ok
}

// withIdentity reads the identity headers the upstream auth proxy sets.
// Authentication itself happened there; this service only trusts the result.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity.Identity{
			ID:   r.Header.Get("X-User-ID"),
			Role: identity.Role(r.Header.Get("X-User-Role")),
		}
		if !id.Valid() {
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: errs.CodeOf(errNoIdentity), Message: errNoIdentity.Message})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func observe(log *slog.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tmpl, err := cur.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			elapsed := time.Since(start)
			if m != nil {
				m.Requests.WithLabelValues(route, http.StatusText(rec.status)).Inc()
				m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
			}
			log.Info("http request",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", rec.status),
				slog.Duration("elapsed", elapsed),
			)
		})
	}
}
