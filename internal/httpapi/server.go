// Package httpapi is the HTTP surface of the service: buyer and admin REST
// endpoints plus the provider webhook. It translates between the wire and
// the application services and holds no business rules of its own.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	cartapp "github.com/dwikikusuma/shop-fulfillment/internal/cart/app"
	catalogapp "github.com/dwikikusuma/shop-fulfillment/internal/catalog/app"
	fulfillapp "github.com/dwikikusuma/shop-fulfillment/internal/fulfillment/app"
	orderapp "github.com/dwikikusuma/shop-fulfillment/internal/order/app"
	"github.com/dwikikusuma/shop-fulfillment/pkg/metrics"
)

// Pinger reports storage liveness for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	fulfillment *fulfillapp.Service
	orders      *orderapp.Service
	cart        *cartapp.Service
	catalog     *catalogapp.Service

	db      Pinger
	metrics *metrics.Metrics
	log     *slog.Logger
}

type ServerDeps struct {
	Fulfillment *fulfillapp.Service
	Orders      *orderapp.Service
	Cart        *cartapp.Service
	Catalog     *catalogapp.Service
	DB          Pinger
	Metrics     *metrics.Metrics
	Log         *slog.Logger
}

func NewServer(deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Server{
		fulfillment: deps.Fulfillment,
		orders:      deps.Orders,
		cart:        deps.Cart,
		catalog:     deps.Catalog,
		db:          deps.DB,
		metrics:     deps.Metrics,
		log:         deps.Log,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(observe(s.log, s.metrics))

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// The webhook authenticates by signature, not by identity headers.
	r.HandleFunc("/api/webhooks/payment", s.handlePaymentWebhook).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(withIdentity)

	api.HandleFunc("/payments/intent", s.handleCreateIntent).Methods(http.MethodPost)

	api.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/review", s.handleListReview).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/cancel", s.handleCancelOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/status", s.handleUpdateStatus).Methods(http.MethodPatch)

	api.HandleFunc("/cart", s.handleGetCart).Methods(http.MethodGet)
	api.HandleFunc("/cart", s.handleClearCart).Methods(http.MethodDelete)
	api.HandleFunc("/cart/items", s.handleAddCartItem).Methods(http.MethodPost)
	api.HandleFunc("/cart/items/{id}", s.handleSetCartItem).Methods(http.MethodPut)
	api.HandleFunc("/cart/items/{id}", s.handleRemoveCartItem).Methods(http.MethodDelete)

	api.HandleFunc("/products", s.handleCreateProduct).Methods(http.MethodPost)
	api.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.handleGetProduct).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
