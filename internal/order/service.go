package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
	"github.com/vasiliy-maslov/laofi/internal/user"
)

// EventNewOrder is broadcast to admin listeners after an order is created.
const EventNewOrder = "nuevo-pedido"

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusPrepared:  true,
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusPrepared:  true,
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusPrepared: {
		StatusDelivered: true,
		StatusCancelled: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

// Payment notifications may only confirm a pending order or revert a paid one.
var paymentTransitions = map[Status]Status{
	StatusPending: StatusPaid,
	StatusPaid:    StatusPending,
}

// Publisher delivers realtime events. Publish must not block.
type Publisher interface {
	Publish(event string, data any)
}

type Service interface {
	ListOrders(ctx context.Context, caller user.Principal) ([]Order, error)
	CreateOrder(ctx context.Context, caller user.Principal, input CreateInput) (*Order, error)
	CreatePendingOrder(ctx context.Context, input PendingInput) (*Order, error)
	UpdateOrder(ctx context.Context, caller user.Principal, orderID uuid.UUID, patch Patch) (*Order, error)
	DeleteOrder(ctx context.Context, caller user.Principal, orderID uuid.UUID) error
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
	ApplyPaymentStatus(ctx context.Context, reference string, approved bool) error
}

type service struct {
	orderRepo Repository
	publisher Publisher
}

// NewService wires the order service. publisher may be nil.
func NewService(orderRepo Repository, publisher Publisher) Service {
	return &service{
		orderRepo: orderRepo,
		publisher: publisher,
	}
}

func checkTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if !allowedTransitions[from][to] {
		return fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}

func (s *service) ListOrders(ctx context.Context, caller user.Principal) ([]Order, error) {
	if caller.ID == uuid.Nil {
		return nil, apperr.ErrUnauthenticated
	}

	filter := ListFilter{}
	if !caller.IsAdmin() {
		id := caller.ID
		filter.UserID = &id
	}

	orders, err := s.orderRepo.ListOrders(ctx, filter)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", caller.ID).Msg("service: failed to list orders in repository")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}

func (s *service) CreateOrder(ctx context.Context, caller user.Principal, input CreateInput) (*Order, error) {
	if caller.ID == uuid.Nil {
		return nil, apperr.ErrUnauthenticated
	}

	ownerID := caller.ID
	if caller.IsAdmin() && input.UserID != nil && *input.UserID != uuid.Nil {
		ownerID = *input.UserID
	}

	if err := validateItems(input.Items, true); err != nil {
		log.Warn().Err(err).Stringer("user_id", ownerID).Msg("service: attempt to create invalid order")
		return nil, err
	}
	if input.PaymentMethod == "" {
		return nil, apperr.Validation("metodoPago es obligatorio")
	}
	method, err := ParsePaymentMethod(string(input.PaymentMethod))
	if err != nil {
		return nil, err
	}
	if input.Total != nil && *input.Total < 0 {
		return nil, ErrNegativeTotal
	}

	o := &Order{
		UserID:        ownerID,
		Items:         input.Items,
		PaymentMethod: method,
		Total:         resolveTotal(input.Total, input.Items),
		Status:        StatusPending,
		Comment:       strings.TrimSpace(input.Comment),
	}

	if err := s.persist(ctx, o); err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", o.ID).Stringer("user_id", o.UserID).Stringer("metodo_pago", o.PaymentMethod).Msg("service: order created successfully")
	s.notifyNewOrder(o.ID)

	return o, nil
}

func (s *service) CreatePendingOrder(ctx context.Context, input PendingInput) (*Order, error) {
	if input.UserID == uuid.Nil {
		return nil, apperr.Validation("userId es obligatorio")
	}
	ref := strings.TrimSpace(input.ExternalReference)
	if ref == "" {
		return nil, apperr.Validation("external_reference es obligatorio")
	}
	if err := validateItems(input.Items, false); err != nil {
		return nil, err
	}
	method := PaymentMercadoPago
	if input.PaymentMethod != "" {
		parsed, err := ParsePaymentMethod(string(input.PaymentMethod))
		if err != nil {
			return nil, err
		}
		method = parsed
	}
	if input.Total != nil && *input.Total < 0 {
		return nil, ErrNegativeTotal
	}

	o := &Order{
		UserID:            input.UserID,
		Items:             input.Items,
		PaymentMethod:     method,
		Total:             resolveTotal(input.Total, input.Items),
		Status:            StatusPending,
		ExternalReference: &ref,
	}

	if err := s.persist(ctx, o); err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", o.ID).Stringer("user_id", o.UserID).Str("external_reference", ref).Msg("service: pending checkout order created")

	return o, nil
}

func (s *service) persist(ctx context.Context, o *Order) error {
	o.ID = uuid.Nil

	if _, err := s.orderRepo.CreateOrder(ctx, o); err != nil {
		switch {
		case errors.Is(err, ErrOwnerNotFound):
			return ErrOwnerNotFound
		case errors.Is(err, ErrProductNotFound):
			return ErrProductNotFound
		}
		log.Error().Err(err).Stringer("user_id", o.UserID).Msg("service: failed to create order in repository")
		return fmt.Errorf("service: failed to create order: %w", err)
	}

	return nil
}

func (s *service) notifyNewOrder(orderID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(EventNewOrder, map[string]string{"_id": orderID.String()})
}

func (s *service) UpdateOrder(ctx context.Context, caller user.Principal, orderID uuid.UUID, patch Patch) (*Order, error) {
	if !caller.IsAdmin() {
		return nil, ErrAdminOnly
	}

	currentOrder, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", orderID).Msg("service: order not found, cannot update")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to get order for update")
		return nil, fmt.Errorf("service: failed to get order for update: %w", err)
	}

	if patch.IsEmpty() {
		return currentOrder, nil
	}

	oldStatus := currentOrder.Status
	if patch.Status != nil {
		newStatus, err := ParseStatus(string(*patch.Status))
		if err != nil {
			return nil, err
		}
		if err := checkTransition(currentOrder.Status, newStatus); err != nil {
			log.Warn().
				Stringer("order_id", currentOrder.ID).
				Stringer("current_status", currentOrder.Status).
				Stringer("new_status", newStatus).
				Msg("service: invalid status transition attempt")
			return nil, err
		}
		currentOrder.Status = newStatus
	}
	if patch.PaymentMethod != nil {
		method, err := ParsePaymentMethod(string(*patch.PaymentMethod))
		if err != nil {
			return nil, err
		}
		currentOrder.PaymentMethod = method
	}
	if patch.Total != nil {
		if *patch.Total < 0 {
			return nil, ErrNegativeTotal
		}
		currentOrder.Total = resolveTotal(patch.Total, nil)
	}
	if patch.Comment != nil {
		currentOrder.Comment = strings.TrimSpace(*patch.Comment)
	}

	if err := s.orderRepo.UpdateOrder(ctx, currentOrder); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", orderID).Msg("service: order disappeared during update")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to update order in repository")
		return nil, fmt.Errorf("service: failed to update order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", oldStatus).Stringer("new_status", currentOrder.Status).Msg("service: order updated successfully")
	return currentOrder, nil
}

func (s *service) DeleteOrder(ctx context.Context, caller user.Principal, orderID uuid.UUID) error {
	if !caller.IsAdmin() {
		return ErrAdminOnly
	}

	if err := s.orderRepo.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to delete order in repository")
		return fmt.Errorf("service: failed to delete order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Msg("service: order deleted")
	return nil
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	currentOrder, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for cancellation: %w", err)
	}

	if currentOrder.Status == StatusCancelled {
		return nil
	}
	if err := checkTransition(currentOrder.Status, StatusCancelled); err != nil {
		return err
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, orderID, StatusCancelled); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to cancel order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", currentOrder.Status).Msg("service: order cancelled")
	return nil
}

func (s *service) ApplyPaymentStatus(ctx context.Context, reference string, approved bool) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}

	target := StatusPending
	if approved {
		target = StatusPaid
	}

	currentOrder, err := s.orderRepo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Str("external_reference", reference).Msg("service: no order matches payment reference, ignoring")
			return nil
		}
		log.Error().Err(err).Str("external_reference", reference).Msg("service: failed to find order by payment reference")
		return fmt.Errorf("service: failed to find order by reference: %w", err)
	}

	if currentOrder.Status == target {
		log.Info().Stringer("order_id", currentOrder.ID).Stringer("status", target).Msg("service: order status is already the same, no update needed")
		return nil
	}

	if next, ok := paymentTransitions[currentOrder.Status]; !ok || next != target {
		log.Warn().
			Stringer("order_id", currentOrder.ID).
			Stringer("current_status", currentOrder.Status).
			Stringer("payment_status", target).
			Msg("service: payment notification does not apply to order in current status, skipping")
		return nil
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, currentOrder.ID, target); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", currentOrder.ID).Msg("service: order removed before payment status update")
			return nil
		}
		log.Error().Err(err).Stringer("order_id", currentOrder.ID).Msg("service: failed to apply payment status")
		return fmt.Errorf("service: failed to apply payment status: %w", err)
	}

	log.Info().
		Stringer("order_id", currentOrder.ID).
		Stringer("old_status", currentOrder.Status).
		Stringer("new_status", target).
		Str("external_reference", reference).
		Msg("service: payment status applied")
	return nil
}
