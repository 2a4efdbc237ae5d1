package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/sony/gobreaker/v2"

	"github.com/ariefcatur/go-kiosk/internal/analytics"
	"github.com/ariefcatur/go-kiosk/internal/apiclient"
	"github.com/ariefcatur/go-kiosk/internal/checkout"
	"github.com/ariefcatur/go-kiosk/internal/kiosk"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// errorStatus maps domain and upstream errors onto HTTP answers.
func errorStatus(err error) (int, string, string) {
	var se *apiclient.StatusError
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict, "empty_cart", err.Error()
	case errors.Is(err, checkout.ErrInFlight):
		return http.StatusConflict, "in_flight", err.Error()
	case errors.Is(err, checkout.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition", err.Error()
	case errors.Is(err, kiosk.ErrNoCheckout):
		return http.StatusConflict, "no_checkout", err.Error()
	case errors.Is(err, kiosk.ErrNotOnSale):
		return http.StatusNotFound, "unknown_product", err.Error()
	case errors.Is(err, kiosk.ErrUnknownEvent):
		return http.StatusBadRequest, "unknown_event", err.Error()
	case errors.Is(err, analytics.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_query", err.Error()
	case errors.Is(err, analytics.ErrWrongPIN):
		return http.StatusUnauthorized, "wrong_pin", err.Error()
	case errors.Is(err, analytics.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "invalid or expired token"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable, "upstream_circuit_open", "commerce api temporarily unavailable"
	case errors.As(err, &se) && se.Code >= 400 && se.Code < 500:
		return se.Code, "upstream_rejected", se.Message
	case errors.As(err, &se):
		return http.StatusBadGateway, "upstream_error", se.Message
	case errors.Is(err, apiclient.ErrTransport):
		return http.StatusBadGateway, "upstream_unavailable", "commerce api unreachable"
	case errors.Is(err, apiclient.ErrMalformed), errors.Is(err, checkout.ErrMalformedResult):
		return http.StatusBadGateway, "upstream_malformed", err.Error()
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

func respondErr(w http.ResponseWriter, err error) {
	status, code, msg := errorStatus(err)
	if status >= 500 {
		log.Printf("request failed: %v", err)
	}
	respondError(w, status, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
