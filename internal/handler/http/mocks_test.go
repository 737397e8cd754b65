package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/vasiliy-maslov/laofi/internal/auth"
	"github.com/vasiliy-maslov/laofi/internal/order"
	"github.com/vasiliy-maslov/laofi/internal/payment"
	"github.com/vasiliy-maslov/laofi/internal/product"
	"github.com/vasiliy-maslov/laofi/internal/user"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) ListOrders(ctx context.Context, caller user.Principal) ([]order.Order, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, caller user.Principal, input order.CreateInput) (*order.Order, error) {
	args := m.Called(ctx, caller, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) CreatePendingOrder(ctx context.Context, input order.PendingInput) (*order.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateOrder(ctx context.Context, caller user.Principal, orderID uuid.UUID, patch order.Patch) (*order.Order, error) {
	args := m.Called(ctx, caller, orderID, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) DeleteOrder(ctx context.Context, caller user.Principal, orderID uuid.UUID) error {
	return m.Called(ctx, caller, orderID).Error(0)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return m.Called(ctx, orderID).Error(0)
}

func (m *MockOrderService) ApplyPaymentStatus(ctx context.Context, reference string, approved bool) error {
	return m.Called(ctx, reference, approved).Error(0)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input user.RegisterInput) (*user.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]user.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]user.User), args.Error(1)
}

func (m *MockUserService) UpdateUser(ctx context.Context, id uuid.UUID, patch user.Patch) (*user.User, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) ListProducts(ctx context.Context) ([]product.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]product.Product), args.Error(1)
}

func (m *MockProductService) CreateProduct(ctx context.Context, p *product.Product) (*product.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) UpdateProduct(ctx context.Context, p *product.Product) (*product.Product, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.Product), args.Error(1)
}

func (m *MockProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductService) SeedCatalog(ctx context.Context, r io.Reader) ([]string, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockPreferenceCreator struct {
	mock.Mock
}

func (m *MockPreferenceCreator) CreatePreference(ctx context.Context, input payment.CheckoutInput) (json.RawMessage, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, n payment.Notification) error {
	return m.Called(ctx, n).Error(0)
}

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Issue(p user.Principal) (string, time.Time, error) {
	args := m.Called(p)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

func (m *MockSessions) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	m.Called(w, token, expires)
	http.SetCookie(w, &http.Cookie{Name: "session-token", Value: token, Expires: expires})
}

func (m *MockSessions) ClearCookie(w http.ResponseWriter) {
	m.Called(w)
}

type routeRegistrar interface {
	RegisterRoutes(router chi.Router)
}

// newRouter mounts h behind a middleware that authenticates every request as caller.
// A nil caller leaves requests anonymous.
func newRouter(h routeRegistrar, caller *user.Principal) chi.Router {
	router := chi.NewRouter()
	if caller != nil {
		p := *caller
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
			})
		})
	}
	h.RegisterRoutes(router)
	return router
}

func customer() *user.Principal {
	return &user.Principal{ID: uuid.Must(uuid.NewV4()), Name: "Ana", Email: "ana@example.com", Role: user.RoleUser}
}

func admin() *user.Principal {
	return &user.Principal{ID: uuid.Must(uuid.NewV4()), Name: "Admin", Email: "admin@laofi.co", Role: user.RoleAdmin}
}

func ptr[T any](v T) *T {
	return &v
}
