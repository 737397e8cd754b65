package payment

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/order"
	"github.com/vasiliy-maslov/laofi/internal/payment/mercadopago"
)

// Provider is the subset of the Mercado Pago client used by the checkout flow.
type Provider interface {
	Configured() bool
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (json.RawMessage, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// Orders is the subset of the order service the payment flows drive.
type Orders interface {
	CreatePendingOrder(ctx context.Context, input order.PendingInput) (*order.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
	ApplyPaymentStatus(ctx context.Context, reference string, approved bool) error
}

type CheckoutItem struct {
	Name      string
	Quantity  int
	UnitPrice float64
}

type CheckoutInput struct {
	Items             []CheckoutItem
	ExternalReference string
	PaymentMethod     order.PaymentMethod
	Total             *float64
	UserID            *uuid.UUID
}

type Checkout struct {
	provider Provider
	orders   Orders
	baseURL  string
	currency string
}

func NewCheckout(provider Provider, orders Orders, baseURL, currency string) *Checkout {
	if currency == "" {
		currency = "ARS"
	}
	return &Checkout{
		provider: provider,
		orders:   orders,
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: currency,
	}
}

// CreatePreference persists a pending order when both a reference and an owner are given,
// then opens a provider checkout for the items. The provider payload is returned unchanged.
// A pending order whose checkout could not be opened is cancelled.
func (c *Checkout) CreatePreference(ctx context.Context, input CheckoutInput) (json.RawMessage, error) {
	if len(input.Items) == 0 {
		return nil, order.ErrNoItems
	}
	if !c.provider.Configured() {
		return nil, mercadopago.ErrMissingAccessToken
	}

	ref := strings.TrimSpace(input.ExternalReference)

	var pending *order.Order
	if ref != "" && input.UserID != nil && *input.UserID != uuid.Nil {
		created, err := c.orders.CreatePendingOrder(ctx, order.PendingInput{
			UserID:            *input.UserID,
			Items:             toLineItems(input.Items),
			PaymentMethod:     input.PaymentMethod,
			Total:             input.Total,
			ExternalReference: ref,
		})
		if err != nil {
			return nil, err
		}
		pending = created
	}

	preference, err := c.provider.CreatePreference(ctx, c.buildRequest(input.Items, ref))
	if err != nil {
		log.Error().Err(err).Str("external_reference", ref).Msg("payment: failed to create provider preference")
		if pending != nil {
			c.compensate(ctx, pending.ID)
		}
		return nil, err
	}

	log.Info().Str("external_reference", ref).Int("items", len(input.Items)).Msg("payment: preference created")
	return preference, nil
}

func (c *Checkout) compensate(ctx context.Context, orderID uuid.UUID) {
	// The request context may already be cancelled; the compensation must still land.
	if err := c.orders.CancelOrder(context.WithoutCancel(ctx), orderID); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("payment: failed to cancel pending order after provider failure")
		return
	}
	log.Warn().Stringer("order_id", orderID).Msg("payment: pending order cancelled after provider failure")
}

func (c *Checkout) buildRequest(items []CheckoutItem, ref string) mercadopago.PreferenceRequest {
	prefItems := make([]mercadopago.PreferenceItem, 0, len(items))
	for _, it := range items {
		prefItems = append(prefItems, mercadopago.PreferenceItem{
			Title:      it.Name,
			Quantity:   it.Quantity,
			CurrencyID: c.currency,
			UnitPrice:  it.UnitPrice,
		})
	}

	return mercadopago.PreferenceRequest{
		Items:             prefItems,
		ExternalReference: ref,
		BackURLs: mercadopago.BackURLs{
			Success: c.baseURL + "/pedidos/pago-exitoso",
			Failure: c.baseURL + "/pedidos/pago-cancelado",
			Pending: c.baseURL + "/pedidos/pago-pendiente",
		},
		AutoReturn: "approved",
	}
}

func toLineItems(items []CheckoutItem) []order.LineItem {
	out := make([]order.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, order.LineItem{Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return out
}
