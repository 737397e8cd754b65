// Package mercadopago is a minimal client for the two Mercado Pago endpoints the checkout
// flow needs: preference creation and payment lookup.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
	"github.com/vasiliy-maslov/laofi/internal/config"
)

const (
	defaultPreferenceError = "Error al crear preferencia"
	defaultPaymentError    = "No se pudo verificar el pago"
	maxBodyBytes           = 1 << 20
)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewClient(cfg config.MercadoPagoConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.APIURL, "/"),
		accessToken: strings.TrimSpace(cfg.AccessToken),
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c.accessToken != ""
}

// CreatePreference posts a checkout preference and returns the provider payload unchanged.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to encode preference: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/checkout/preferences", bytes.NewReader(payload), defaultPreferenceError)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		log.Warn().Msg("mercadopago: preference response is not valid JSON")
		return nil, &APIError{StatusCode: http.StatusOK, Message: defaultPreferenceError}
	}

	return json.RawMessage(body), nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, apperr.Validation("payment id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, defaultPaymentError)
	if err != nil {
		return nil, err
	}

	var p Payment
	if err := json.Unmarshal(body, &p); err != nil {
		log.Warn().Err(err).Str("payment_id", paymentID).Msg("mercadopago: failed to decode payment")
		return nil, &APIError{StatusCode: http.StatusOK, Message: defaultPaymentError}
	}

	return &p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, defaultMsg string) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrMissingAccessToken
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("mercadopago: request failed")
		return nil, &APIError{Message: defaultMsg}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("mercadopago: failed to read response")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: defaultMsg}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: extractMessage(respBody, defaultMsg)}
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("method", method).
			Str("path", path).
			Str("provider_message", apiErr.Message).
			Msg("mercadopago: non-success response")
		return nil, apiErr
	}

	return respBody, nil
}
