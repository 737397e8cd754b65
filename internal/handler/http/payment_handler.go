package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
	"github.com/vasiliy-maslov/laofi/internal/order"
	"github.com/vasiliy-maslov/laofi/internal/payment"
	"github.com/vasiliy-maslov/laofi/internal/payment/mercadopago"
)

const (
	msgMissingToken        = "Token de Mercado Pago no configurado"
	msgPreferenceFailed    = "Error al crear preferencia"
	msgPaymentUnverifiable = "No se pudo verificar el pago"
)

type PreferenceCreator interface {
	CreatePreference(ctx context.Context, input payment.CheckoutInput) (json.RawMessage, error)
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, n payment.Notification) error
}

type PreferenceItemRequest struct {
	Name      string  `json:"nombre" validate:"required"`
	Quantity  int     `json:"cantidad" validate:"required,gte=1"`
	UnitPrice float64 `json:"precio" validate:"gte=0"`
}

type CreatePreferenceRequest struct {
	Items             []PreferenceItemRequest `json:"productos" validate:"required,min=1,dive"`
	ExternalReference string                  `json:"external_reference"`
	PaymentMethod     string                  `json:"metodoPago"`
	Total             optionalNumber          `json:"total"`
	UserID            string                  `json:"userId" validate:"omitempty,uuid"`
}

type PreferenceResponse struct {
	Preference json.RawMessage `json:"preference"`
}

type PaymentHandler struct {
	checkout   PreferenceCreator
	reconciler PaymentReconciler
	validate   *validator.Validate
}

func NewPaymentHandler(checkout PreferenceCreator, reconciler PaymentReconciler) *PaymentHandler {
	return &PaymentHandler{
		checkout:   checkout,
		reconciler: reconciler,
		validate:   newValidator(),
	}
}

func (h *PaymentHandler) RegisterRoutes(router chi.Router) {
	for _, path := range []string{"/preference-create", "/api/mercado-pago/create-preference"} {
		router.Post(path, h.handleCreatePreference)
	}
	for _, path := range []string{"/payment-webhook", "/api/mercado-pago/webhook"} {
		router.Post(path, h.handleWebhook)
		router.Get(path, h.handleWebhookProbe)
	}
}

func (h *PaymentHandler) handleCreatePreference(w http.ResponseWriter, r *http.Request) {
	var requestPayload CreatePreferenceRequest
	if err := decodeJSON(w, r, &requestPayload, false); err != nil {
		log.Warn().Err(err).Msg("Failed to decode preference request body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if len(requestPayload.Items) == 0 {
		respondWithError(w, http.StatusBadRequest, order.ErrNoItems.Error())
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return
	}

	input := payment.CheckoutInput{
		Items:             make([]payment.CheckoutItem, 0, len(requestPayload.Items)),
		ExternalReference: requestPayload.ExternalReference,
		PaymentMethod:     order.PaymentMethod(requestPayload.PaymentMethod),
		Total:             requestPayload.Total.Value,
	}
	for _, it := range requestPayload.Items {
		input.Items = append(input.Items, payment.CheckoutItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	if requestPayload.UserID != "" {
		userID := uuid.FromStringOrNil(requestPayload.UserID)
		input.UserID = &userID
	}

	preference, err := h.checkout.CreatePreference(r.Context(), input)
	if err != nil {
		log.Error().Err(err).Str("external_reference", input.ExternalReference).Msg("Failed to create payment preference")

		var apiErr *mercadopago.APIError
		switch {
		case errors.Is(err, apperr.ErrConfiguration):
			respondWithError(w, http.StatusInternalServerError, msgMissingToken)
		case errors.As(err, &apiErr):
			respondWithError(w, http.StatusInternalServerError, apiErr.Message)
		case errors.Is(err, order.ErrOwnerNotFound):
			respondWithError(w, http.StatusNotFound, "Usuario no encontrado")
		case errors.Is(err, apperr.ErrValidation):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, msgPreferenceFailed)
		}
		return
	}

	respondWithJSON(w, http.StatusOK, PreferenceResponse{Preference: preference})
}

// handleWebhook answers 200 for everything it ignores so the provider does not retry.
// Only an unverifiable payment is reported as retryable.
func (h *PaymentHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	n, err := readNotification(w, r)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to decode payment notification")
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.reconciler.Reconcile(r.Context(), n); err != nil {
		log.Error().Err(err).Str("payment_id", string(n.Data.ID)).Str("type", n.Type).Msg("Failed to process payment notification")

		switch {
		case errors.Is(err, apperr.ErrConfiguration):
			respondWithError(w, http.StatusInternalServerError, msgMissingToken)
		case errors.Is(err, payment.ErrPaymentUnverifiable):
			respondWithError(w, http.StatusBadGateway, msgPaymentUnverifiable)
		default:
			respondWithError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *PaymentHandler) handleWebhookProbe(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readNotification decodes the JSON body. Mercado Pago also sends notifications with an
// empty body and the fields in the query string (type and data.id).
func readNotification(w http.ResponseWriter, r *http.Request) (payment.Notification, error) {
	var n payment.Notification

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		return n, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		q := r.URL.Query()
		if q.Get("type") == "" {
			return n, errors.New("notification body is empty")
		}
		n.Type = q.Get("type")
		n.Data.ID = payment.NotificationID(q.Get("data.id"))
		return n, nil
	}

	if err := json.Unmarshal(body, &n); err != nil {
		return n, err
	}
	return n, nil
}
