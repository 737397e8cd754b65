package payment_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
	"github.com/vasiliy-maslov/laofi/internal/order"
	"github.com/vasiliy-maslov/laofi/internal/payment"
	"github.com/vasiliy-maslov/laofi/internal/payment/mercadopago"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Configured() bool {
	return m.Called().Bool(0)
}

func (m *MockProvider) CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockProvider) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mercadopago.Payment), args.Error(1)
}

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) CreatePendingOrder(ctx context.Context, input order.PendingInput) (*order.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrders) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockOrders) ApplyPaymentStatus(ctx context.Context, reference string, approved bool) error {
	return m.Called(ctx, reference, approved).Error(0)
}

// MockOrderRepository backs a real order service in the end-to-end checkout test.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, o *order.Order) (uuid.UUID, error) {
	args := m.Called(ctx, o)
	id := args.Get(0).(uuid.UUID)
	if args.Error(1) == nil {
		o.ID = id
	}
	return id, args.Error(1)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) ListOrders(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByReference(ctx context.Context, ref string) (*order.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateOrder(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status order.Status) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOrderRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

var preferencePayload = json.RawMessage(`{"id":"pref-1","init_point":"https://mp.test/checkout/pref-1"}`)

func latte(qty int) []payment.CheckoutItem {
	return []payment.CheckoutItem{{Name: "Latte", Quantity: qty, UnitPrice: 1500}}
}

func TestCheckout_CreatePreference_EndToEnd(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.Must(uuid.NewV4())
	orderID := uuid.Must(uuid.NewV4())

	repo := new(MockOrderRepository)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, order.NewService(repo, nil), "https://laofi.co/", "ARS")

	provider.On("Configured").Return(true)
	repo.On("CreateOrder", ctx, mock.MatchedBy(func(o *order.Order) bool {
		return o.UserID == ownerID &&
			o.Total == 3000 &&
			o.Status == order.StatusPending &&
			o.PaymentMethod == order.PaymentMercadoPago &&
			o.ExternalReference != nil && *o.ExternalReference == "abc-123" &&
			len(o.Items) == 1 && o.Items[0].Name == "Latte" && o.Items[0].Quantity == 2
	})).Return(orderID, nil).Once()
	provider.On("CreatePreference", ctx, mercadopago.PreferenceRequest{
		Items:             []mercadopago.PreferenceItem{{Title: "Latte", Quantity: 2, CurrencyID: "ARS", UnitPrice: 1500}},
		ExternalReference: "abc-123",
		BackURLs: mercadopago.BackURLs{
			Success: "https://laofi.co/pedidos/pago-exitoso",
			Failure: "https://laofi.co/pedidos/pago-cancelado",
			Pending: "https://laofi.co/pedidos/pago-pendiente",
		},
		AutoReturn: "approved",
	}).Return(preferencePayload, nil).Once()

	got, err := checkout.CreatePreference(ctx, payment.CheckoutInput{
		Items:             latte(2),
		ExternalReference: "abc-123",
		UserID:            &ownerID,
	})

	require.NoError(t, err)
	assert.JSONEq(t, string(preferencePayload), string(got))
	repo.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestCheckout_CreatePreference_ExplicitTotal(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.Must(uuid.NewV4())
	total := 2500.0

	repo := new(MockOrderRepository)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, order.NewService(repo, nil), "https://laofi.co", "ARS")

	provider.On("Configured").Return(true)
	repo.On("CreateOrder", ctx, mock.MatchedBy(func(o *order.Order) bool {
		return o.Total == 2500 && o.PaymentMethod == order.PaymentCash
	})).Return(uuid.Must(uuid.NewV4()), nil).Once()
	provider.On("CreatePreference", ctx, mock.Anything).Return(preferencePayload, nil).Once()

	_, err := checkout.CreatePreference(ctx, payment.CheckoutInput{
		Items:             latte(2),
		ExternalReference: "ref-1",
		PaymentMethod:     order.PaymentCash,
		Total:             &total,
		UserID:            &ownerID,
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestCheckout_CreatePreference_WithoutOwnerDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	orders := new(MockOrders)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, orders, "https://laofi.co", "")

	provider.On("Configured").Return(true)
	provider.On("CreatePreference", ctx, mock.MatchedBy(func(req mercadopago.PreferenceRequest) bool {
		return req.ExternalReference == "abc-123" && req.Items[0].CurrencyID == "ARS"
	})).Return(preferencePayload, nil).Once()

	_, err := checkout.CreatePreference(ctx, payment.CheckoutInput{Items: latte(1), ExternalReference: "abc-123"})

	require.NoError(t, err)
	orders.AssertNotCalled(t, "CreatePendingOrder", mock.Anything, mock.Anything)
	provider.AssertExpectations(t)
}

func TestCheckout_CreatePreference_WithoutReferenceDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.Must(uuid.NewV4())
	orders := new(MockOrders)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, orders, "https://laofi.co", "ARS")

	provider.On("Configured").Return(true)
	provider.On("CreatePreference", ctx, mock.Anything).Return(preferencePayload, nil).Once()

	_, err := checkout.CreatePreference(ctx, payment.CheckoutInput{Items: latte(1), ExternalReference: "  ", UserID: &ownerID})

	require.NoError(t, err)
	orders.AssertNotCalled(t, "CreatePendingOrder", mock.Anything, mock.Anything)
}

func TestCheckout_CreatePreference_NoItems(t *testing.T) {
	orders := new(MockOrders)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, orders, "https://laofi.co", "ARS")

	_, err := checkout.CreatePreference(context.Background(), payment.CheckoutInput{})

	require.ErrorIs(t, err, apperr.ErrValidation)
	provider.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything)
}

func TestCheckout_CreatePreference_NotConfigured(t *testing.T) {
	ownerID := uuid.Must(uuid.NewV4())
	orders := new(MockOrders)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, orders, "https://laofi.co", "ARS")

	provider.On("Configured").Return(false)

	_, err := checkout.CreatePreference(context.Background(), payment.CheckoutInput{
		Items: latte(1), ExternalReference: "abc-123", UserID: &ownerID,
	})

	require.ErrorIs(t, err, apperr.ErrConfiguration)
	orders.AssertNotCalled(t, "CreatePendingOrder", mock.Anything, mock.Anything)
	provider.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything)
}

func TestCheckout_CreatePreference_PersistFailure(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.Must(uuid.NewV4())
	orders := new(MockOrders)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, orders, "https://laofi.co", "ARS")

	provider.On("Configured").Return(true)
	orders.On("CreatePendingOrder", ctx, mock.Anything).Return(nil, order.ErrOwnerNotFound).Once()

	_, err := checkout.CreatePreference(ctx, payment.CheckoutInput{Items: latte(1), ExternalReference: "abc-123", UserID: &ownerID})

	require.ErrorIs(t, err, order.ErrOwnerNotFound)
	provider.AssertNotCalled(t, "CreatePreference", mock.Anything, mock.Anything)
}

func TestCheckout_CreatePreference_ProviderFailureCancelsPendingOrder(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.Must(uuid.NewV4())
	pendingID := uuid.Must(uuid.NewV4())
	providerErr := &mercadopago.APIError{StatusCode: 400, Message: "invalid items"}

	orders := new(MockOrders)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, orders, "https://laofi.co", "ARS")

	provider.On("Configured").Return(true)
	orders.On("CreatePendingOrder", ctx, mock.Anything).Return(&order.Order{ID: pendingID, Status: order.StatusPending}, nil).Once()
	provider.On("CreatePreference", ctx, mock.Anything).Return(nil, providerErr).Once()
	orders.On("CancelOrder", mock.Anything, pendingID).Return(nil).Once()

	_, err := checkout.CreatePreference(ctx, payment.CheckoutInput{Items: latte(1), ExternalReference: "abc-123", UserID: &ownerID})

	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Equal(t, "invalid items", err.Error())
	orders.AssertExpectations(t)
}

func TestCheckout_CreatePreference_CompensationFailureKeepsProviderError(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.Must(uuid.NewV4())
	pendingID := uuid.Must(uuid.NewV4())

	orders := new(MockOrders)
	provider := new(MockProvider)
	checkout := payment.NewCheckout(provider, orders, "https://laofi.co", "ARS")

	provider.On("Configured").Return(true)
	orders.On("CreatePendingOrder", ctx, mock.Anything).Return(&order.Order{ID: pendingID}, nil).Once()
	provider.On("CreatePreference", ctx, mock.Anything).Return(nil, &mercadopago.APIError{Message: "Error al crear preferencia"}).Once()
	orders.On("CancelOrder", mock.Anything, pendingID).Return(order.ErrOrderNotFound).Once()

	_, err := checkout.CreatePreference(ctx, payment.CheckoutInput{Items: latte(1), ExternalReference: "abc-123", UserID: &ownerID})

	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.NotErrorIs(t, err, order.ErrOrderNotFound)
	orders.AssertExpectations(t)
}
