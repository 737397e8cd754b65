package mercadopago

import (
	"encoding/json"
	"fmt"

	"github.com/vasiliy-maslov/laofi/internal/apperr"
)

type PreferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference,omitempty"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
}

// Payment holds the fields of GET /v1/payments/{id} this service reads.
type Payment struct {
	ID                json.RawMessage `json:"id,omitempty"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	TransactionAmount float64         `json:"transaction_amount,omitempty"`
}

const StatusApproved = "approved"

func (p *Payment) Approved() bool {
	return p.Status == StatusApproved
}

// APIError is a failed provider call. StatusCode is zero when no response arrived.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return apperr.ErrUpstream
}

var ErrMissingAccessToken = fmt.Errorf("%w: Token de Mercado Pago no configurado", apperr.ErrConfiguration)

type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   json.RawMessage `json:"error"`
	Cause   json.RawMessage `json:"cause"`
}

// extractMessage picks the human readable part of a provider error body. It checks message,
// then error, then the first cause description, and falls back to def.
func extractMessage(body []byte, def string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return def
	}

	if s, ok := jsonString(eb.Message); ok {
		return s
	}
	if s, ok := jsonString(eb.Error); ok {
		return s
	}

	var causes []struct {
		Description string `json:"description"`
	}
	if len(eb.Cause) > 0 && json.Unmarshal(eb.Cause, &causes) == nil && len(causes) > 0 && causes[0].Description != "" {
		return causes[0].Description
	}

	return def
}

func jsonString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
