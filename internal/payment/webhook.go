package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
)

const NotificationTypePayment = "payment"

var ErrPaymentUnverifiable = fmt.Errorf("%w: No se pudo verificar el pago", apperr.ErrUpstream)

// Notification is the body Mercado Pago posts to the webhook.
type Notification struct {
	Type string           `json:"type"`
	Data NotificationData `json:"data"`
}

type NotificationData struct {
	ID NotificationID `json:"id"`
}

// NotificationID accepts the payment id as a JSON string or number.
type NotificationID string

func (id *NotificationID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = NotificationID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("data.id must be a string or a number: %w", err)
	}
	*id = NotificationID(n.String())
	return nil
}

type Reconciler struct {
	provider Provider
	orders   Orders
}

func NewReconciler(provider Provider, orders Orders) *Reconciler {
	return &Reconciler{provider: provider, orders: orders}
}

// Reconcile verifies a payment notification against the provider and moves the matching order.
// Notifications that are not about a payment are ignored.
func (r *Reconciler) Reconcile(ctx context.Context, n Notification) error {
	if n.Type != NotificationTypePayment || n.Data.ID == "" {
		log.Debug().Str("type", n.Type).Msg("payment: ignoring notification")
		return nil
	}
	paymentID := string(n.Data.ID)

	p, err := r.provider.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, apperr.ErrConfiguration) {
			return err
		}
		log.Error().Err(err).Str("payment_id", paymentID).Msg("payment: failed to fetch payment from provider")
		return ErrPaymentUnverifiable
	}

	if p.ExternalReference == "" {
		log.Info().Str("payment_id", paymentID).Str("status", p.Status).Msg("payment: payment carries no external reference")
		return nil
	}

	if err := r.orders.ApplyPaymentStatus(ctx, p.ExternalReference, p.Approved()); err != nil {
		return fmt.Errorf("payment: failed to reconcile payment %s: %w", paymentID, err)
	}

	log.Info().
		Str("payment_id", paymentID).
		Str("external_reference", p.ExternalReference).
		Str("status", p.Status).
		Msg("payment: notification reconciled")
	return nil
}
