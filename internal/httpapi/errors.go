package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dwikikusuma/shop-fulfillment/pkg/errs"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the taxonomy error as {code, message}. Internal details
// never leak to the client; they go to the log instead.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusOf(err)
	body := errorBody{Code: errs.CodeOf(err), Message: err.Error()}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Any("err", err))
		body = errorBody{Code: "INTERNAL", Message: "internal error"}
	}
	writeJSON(w, status, body)
}
