package payment_test

import (
	"context"
	"encoding/json"
	"errors"
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

func TestNotification_UnmarshalID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantID  payment.NotificationID
		wantErr bool
	}{
		{name: "string id", body: `{"type":"payment","data":{"id":"123"}}`, wantID: "123"},
		{name: "numeric id", body: `{"type":"payment","data":{"id":1234567890123}}`, wantID: "1234567890123"},
		{name: "null id", body: `{"type":"payment","data":{"id":null}}`, wantID: ""},
		{name: "missing data", body: `{"type":"merchant_order"}`, wantID: ""},
		{name: "object id", body: `{"type":"payment","data":{"id":{"x":1}}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n payment.Notification
			err := json.Unmarshal([]byte(tt.body), &n)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, n.Data.ID)
		})
	}
}

func TestReconciler_IgnoresNonPaymentNotifications(t *testing.T) {
	tests := []struct {
		name string
		n    payment.Notification
	}{
		{name: "merchant order", n: payment.Notification{Type: "merchant_order", Data: payment.NotificationData{ID: "1"}}},
		{name: "empty type", n: payment.Notification{Data: payment.NotificationData{ID: "1"}}},
		{name: "payment without id", n: payment.Notification{Type: "payment"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(MockProvider)
			orders := new(MockOrders)

			err := payment.NewReconciler(provider, orders).Reconcile(context.Background(), tt.n)

			require.NoError(t, err)
			provider.AssertNotCalled(t, "GetPayment", mock.Anything, mock.Anything)
			orders.AssertNotCalled(t, "ApplyPaymentStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReconciler_AppliesProviderStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		wantApproved bool
	}{
		{name: "approved", status: "approved", wantApproved: true},
		{name: "pending", status: "pending", wantApproved: false},
		{name: "rejected", status: "rejected", wantApproved: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			provider := new(MockProvider)
			orders := new(MockOrders)

			provider.On("GetPayment", ctx, "X").Return(&mercadopago.Payment{Status: tt.status, ExternalReference: "R"}, nil).Once()
			orders.On("ApplyPaymentStatus", ctx, "R", tt.wantApproved).Return(nil).Once()

			err := payment.NewReconciler(provider, orders).Reconcile(ctx, payment.Notification{
				Type: payment.NotificationTypePayment,
				Data: payment.NotificationData{ID: "X"},
			})

			require.NoError(t, err)
			orders.AssertExpectations(t)
		})
	}
}

func TestReconciler_ApprovedPaymentMarksOrderPaid(t *testing.T) {
	ctx := context.Background()
	orderID := uuid.Must(uuid.NewV4())

	repo := new(MockOrderRepository)
	provider := new(MockProvider)
	reconciler := payment.NewReconciler(provider, order.NewService(repo, nil))

	provider.On("GetPayment", ctx, "X").Return(&mercadopago.Payment{Status: "approved", ExternalReference: orderID.String()}, nil).Once()
	repo.On("FindByReference", ctx, orderID.String()).Return(&order.Order{ID: orderID, Status: order.StatusPending}, nil).Once()
	repo.On("UpdateOrderStatus", ctx, orderID, order.StatusPaid).Return(nil).Once()

	err := reconciler.Reconcile(ctx, payment.Notification{Type: "payment", Data: payment.NotificationData{ID: "X"}})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReconciler_UnknownReferenceIsNotAnError(t *testing.T) {
	ctx := context.Background()
	repo := new(MockOrderRepository)
	provider := new(MockProvider)
	reconciler := payment.NewReconciler(provider, order.NewService(repo, nil))

	provider.On("GetPayment", ctx, "X").Return(&mercadopago.Payment{Status: "approved", ExternalReference: "missing"}, nil).Once()
	repo.On("FindByReference", ctx, "missing").Return(nil, order.ErrOrderNotFound).Once()

	err := reconciler.Reconcile(ctx, payment.Notification{Type: "payment", Data: payment.NotificationData{ID: "X"}})

	require.NoError(t, err)
	repo.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_PaymentWithoutReference(t *testing.T) {
	ctx := context.Background()
	provider := new(MockProvider)
	orders := new(MockOrders)

	provider.On("GetPayment", ctx, "X").Return(&mercadopago.Payment{Status: "approved"}, nil).Once()

	err := payment.NewReconciler(provider, orders).Reconcile(ctx, payment.Notification{Type: "payment", Data: payment.NotificationData{ID: "X"}})

	require.NoError(t, err)
	orders.AssertNotCalled(t, "ApplyPaymentStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconciler_Errors(t *testing.T) {
	tests := []struct {
		name        string
		providerErr error
		applyErr    error
		wantErr     error
	}{
		{
			name:        "provider rejects lookup",
			providerErr: &mercadopago.APIError{StatusCode: 404, Message: "Payment not found"},
			wantErr:     payment.ErrPaymentUnverifiable,
		},
		{
			name:        "provider unreachable",
			providerErr: &mercadopago.APIError{Message: "No se pudo verificar el pago"},
			wantErr:     apperr.ErrUpstream,
		},
		{
			name:        "missing credential",
			providerErr: mercadopago.ErrMissingAccessToken,
			wantErr:     apperr.ErrConfiguration,
		},
		{
			name:     "persistence failure",
			applyErr: errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			provider := new(MockProvider)
			orders := new(MockOrders)

			if tt.providerErr != nil {
				provider.On("GetPayment", ctx, "X").Return(nil, tt.providerErr).Once()
			} else {
				provider.On("GetPayment", ctx, "X").Return(&mercadopago.Payment{Status: "approved", ExternalReference: "R"}, nil).Once()
				orders.On("ApplyPaymentStatus", ctx, "R", true).Return(tt.applyErr).Once()
			}

			err := payment.NewReconciler(provider, orders).Reconcile(ctx, payment.Notification{Type: "payment", Data: payment.NotificationData{ID: "X"}})

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NotErrorIs(t, err, apperr.ErrUpstream)
				assert.NotErrorIs(t, err, apperr.ErrConfiguration)
			}
		})
	}
}
