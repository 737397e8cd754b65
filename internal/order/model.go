package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
	"github.com/vasiliy-maslov/laofi/internal/user"
)

type Status string

const (
	StatusPending   Status = "pendiente"
	StatusPaid      Status = "pagado"
	StatusPrepared  Status = "preparado"
	StatusDelivered Status = "entregado"
	StatusCancelled Status = "cancelado"
)

func (s Status) String() string {
	return string(s)
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusPending, StatusPaid, StatusPrepared, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", apperr.Validation("estado inválido: %q", s)
	}
}

type PaymentMethod string

const (
	PaymentMercadoPago PaymentMethod = "mercadopago"
	PaymentCash        PaymentMethod = "efectivo"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.TrimSpace(s)); m {
	case PaymentMercadoPago, PaymentCash:
		return m, nil
	default:
		return "", apperr.Validation("metodoPago inválido: %q", s)
	}
}

// LineItem is a product snapshot taken when the order is placed.
type LineItem struct {
	ProductID *uuid.UUID `json:"producto,omitempty"`
	Name      string     `json:"nombre"`
	Quantity  int        `json:"cantidad"`
	UnitPrice float64    `json:"precio"`
}

// Owner is the populated view of the user an order belongs to.
type Owner struct {
	ID    uuid.UUID `json:"_id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  user.Role `json:"role"`
}

type Order struct {
	ID                uuid.UUID     `json:"_id"`
	UserID            uuid.UUID     `json:"userId"`
	Owner             *Owner        `json:"user,omitempty"`
	Items             []LineItem    `json:"productos"`
	PaymentMethod     PaymentMethod `json:"metodoPago"`
	Total             float64       `json:"total"`
	Status            Status        `json:"estado"`
	ExternalReference *string       `json:"external_reference,omitempty"`
	Comment           string        `json:"comentarios,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// CreateInput is an order placed through the orders endpoint.
type CreateInput struct {
	UserID        *uuid.UUID
	Items         []LineItem
	PaymentMethod PaymentMethod
	Total         *float64
	Comment       string
}

// PendingInput is an order persisted ahead of a provider checkout.
type PendingInput struct {
	UserID            uuid.UUID
	Items             []LineItem
	PaymentMethod     PaymentMethod
	Total             *float64
	ExternalReference string
}

// Patch carries the fields an admin may edit. Line items are immutable.
type Patch struct {
	Status        *Status
	PaymentMethod *PaymentMethod
	Total         *float64
	Comment       *string
}

func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.PaymentMethod == nil && p.Total == nil && p.Comment == nil
}

type ListFilter struct {
	// UserID restricts the listing to one owner. Nil lists every order.
	UserID *uuid.UUID
}

// ComputeTotal returns Σ quantity × unit price rounded to cents.
func ComputeTotal(items []LineItem) float64 {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2).InexactFloat64()
}

// resolveTotal prefers an explicit total over the computed one.
func resolveTotal(explicit *float64, items []LineItem) float64 {
	if explicit != nil {
		return decimal.NewFromFloat(*explicit).Round(2).InexactFloat64()
	}
	return ComputeTotal(items)
}

func validateItems(items []LineItem, requireProduct bool) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for i, it := range items {
		switch {
		case requireProduct && (it.ProductID == nil || *it.ProductID == uuid.Nil):
			return apperr.Validation("productos[%d].producto es obligatorio", i)
		case strings.TrimSpace(it.Name) == "":
			return apperr.Validation("productos[%d].nombre es obligatorio", i)
		case it.Quantity <= 0:
			return apperr.Validation("productos[%d].cantidad debe ser mayor a cero", i)
		case it.UnitPrice < 0:
			return apperr.Validation("productos[%d].precio no puede ser negativo", i)
		}
	}
	return nil
}

var (
	ErrOrderNotFound           = fmt.Errorf("order %w", apperr.ErrNotFound)
	ErrOwnerNotFound           = fmt.Errorf("order owner %w", apperr.ErrNotFound)
	ErrProductNotFound         = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrNoItems                 = apperr.Validation("Productos requeridos")
	ErrNegativeTotal           = apperr.Validation("total no puede ser negativo")
	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid order status transition", apperr.ErrValidation)
	ErrAdminOnly               = fmt.Errorf("%w: admin role required", apperr.ErrForbidden)
)
