package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	cartdomain "github.com/dwikikusuma/shop-fulfillment/internal/cart/domain"
	orderdomain "github.com/dwikikusuma/shop-fulfillment/internal/order/domain"
	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

const maxWebhookBody = 1 << 20

var errBadBody = errs.New(errs.KindValidation, "INVALID_BODY", "request body is not valid JSON")

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}

func (s *Server) handleCreateIntent(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	resp, err := s.fulfillment.CreateIntent(r.Context(), who)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"intentId":     resp.IntentID,
		"clientSecret": resp.ClientSecret,
		"amount":       resp.Amount,
		"currency":     resp.Currency,
	})
}

// handlePaymentWebhook hands the raw bytes and signature header to the
// gateway untouched; any re-serialization here would break the signature.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_BODY", Message: "cannot read body"})
		return
	}

	err = s.fulfillment.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
	case errs.IsKind(err, errs.KindUnauthorized), errs.IsKind(err, errs.KindValidation):
		// Non-retryable: the provider would redeliver the same bad payload.
		writeJSON(w, http.StatusBadRequest, errorBody{Code: errs.CodeOf(err), Message: "event rejected"})
	default:
		// 5xx makes the provider retry, which is what a transient failure needs.
		s.log.Error("webhook handling failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
	}
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	orders, err := s.orders.ListMine(r.Context(), who)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderListJSON(orders)})
}

func (s *Server) handleListReview(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	orders, err := s.orders.ListNeedingReview(r.Context(), who)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": toOrderListJSON(orders)})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	o, err := s.orders.Get(r.Context(), who, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	res, err := s.fulfillment.Cancel(r.Context(), who, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":    toOrderJSON(res.Order),
		"refunded": res.Refunded,
	})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}

	o, err := s.fulfillment.UpdateStatus(r.Context(), who, mux.Vars(r)["id"], orderdomain.Status(body.Status))
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	cart, err := s.cart.GetOrCreate(r.Context(), who.ID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartJSON(cart))
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	var body struct {
		ProductID string `json:"product_id"`
		Quantity  int32  `json:"quantity"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}

	cart, err := s.cart.AddItem(r.Context(), who.ID, cartdomain.CartItem{ProductID: body.ProductID, Quantity: body.Quantity})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartJSON(cart))
}

func (s *Server) handleSetCartItem(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	var body struct {
		Quantity int32 `json:"quantity"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}

	cart, err := s.cart.SetItemQuantity(r.Context(), who.ID, cartdomain.CartItem{ProductID: mux.Vars(r)["id"], Quantity: body.Quantity})
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartJSON(cart))
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	cart, err := s.cart.RemoveItem(r.Context(), who.ID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartJSON(cart))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())

	if err := s.cart.ClearCart(r.Context(), who.ID); err != nil {
		writeError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	who, _ := callerFrom(r.Context())
	if !who.IsAdmin() {
		writeError(w, s.log, errs.New(errs.KindForbidden, "ADMIN_ONLY", "admin role required"))
		return
	}

	var body struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Currency    string          `json:"currency"`
		Stock       int32           `json:"stock"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, s.log, err)
		return
	}

	p, err := s.catalog.CreateProduct(r.Context(), body.Name, body.Description, body.Currency, body.Price, body.Stock, who.ID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductJSON(p))
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	products, next, err := s.catalog.ListProducts(r.Context(), q.Get("query"), limit, q.Get("cursor"))
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	out := make([]productJSON, 0, len(products))
	for _, p := range products {
		out = append(out, toProductJSON(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out, "next_cursor": next})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductJSON(p))
}
