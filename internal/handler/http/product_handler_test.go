package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	handler "github.com/vasiliy-maslov/laofi/internal/handler/http"
	"github.com/vasiliy-maslov/laofi/internal/product"
)

func TestProductHandler_ListIsPublic(t *testing.T) {
	mockService := new(MockProductService)
	router := newRouter(handler.NewProductHandler(mockService), nil)

	mockService.On("ListProducts", mock.Anything).Return([]product.Product{
		{ID: uuid.Must(uuid.NewV4()), Name: "Latte Cremoso", Price: 1500, ImageURL: "https://img.test/latte.jpg"},
	}, nil).Once()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/products", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Latte Cremoso", got[0]["name"])
	assert.Equal(t, "https://img.test/latte.jpg", got[0]["image"])
}

func TestProductHandler_MutationsRequireAdmin(t *testing.T) {
	id := uuid.Must(uuid.NewV4()).String()
	mockService := new(MockProductService)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/products"},
		{http.MethodPut, "/products/" + id},
		{http.MethodDelete, "/products/" + id},
	}

	anonymous := newRouter(handler.NewProductHandler(mockService), nil)
	regular := newRouter(handler.NewProductHandler(mockService), customer())

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		anonymous.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tt.method)

		rr = httptest.NewRecorder()
		regular.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusForbidden, rr.Code, tt.method)
	}
	mockService.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestProductHandler_CreateProduct(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(m *MockProductService)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "success",
			body: `{"name":"Cortado XL","price":1300,"description":"Doble","image":"https://img.test/cortado.jpg"}`,
			setup: func(m *MockProductService) {
				m.On("CreateProduct", mock.Anything, mock.MatchedBy(func(p *product.Product) bool {
					return p.Name == "Cortado XL" && p.Price == 1300 && p.ImageURL == "https://img.test/cortado.jpg"
				})).Return(&product.Product{ID: uuid.Must(uuid.NewV4()), Name: "Cortado XL", Price: 1300}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{name: "missing price", body: `{"name":"Cortado XL"}`, expectedStatus: http.StatusBadRequest, expectedError: "Validation failed: Field 'price' is required"},
		{name: "negative price", body: `{"name":"Cortado XL","price":-1}`, expectedStatus: http.StatusBadRequest, expectedError: "Validation failed: Field 'price' must be greater than 0"},
		{name: "unknown field", body: `{"name":"Cortado XL","price":1300,"stock":3}`, expectedStatus: http.StatusBadRequest, expectedError: "Cuerpo de la solicitud inválido"},
		{
			name: "duplicate name",
			body: `{"name":"Cortado XL","price":1300}`,
			setup: func(m *MockProductService) {
				m.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, product.ErrNameTaken).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "Ya existe un producto con ese nombre",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			if tt.setup != nil {
				tt.setup(mockService)
			}
			router := newRouter(handler.NewProductHandler(mockService), admin())

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedError != "" {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedError, body["error"])
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_UpdateProduct(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())

	t.Run("success", func(t *testing.T) {
		mockService := new(MockProductService)
		router := newRouter(handler.NewProductHandler(mockService), admin())

		mockService.On("UpdateProduct", mock.Anything, &product.Product{ID: productID, Name: "Lungo", Price: 1250}).
			Return(&product.Product{ID: productID, Name: "Lungo", Price: 1250}, nil).Once()

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/products/"+productID.String(), strings.NewReader(`{"name":"Lungo","price":1250}`)))

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		mockService := new(MockProductService)
		router := newRouter(handler.NewProductHandler(mockService), admin())

		mockService.On("UpdateProduct", mock.Anything, mock.Anything).Return(nil, product.ErrProductNotFound).Once()

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/products/"+productID.String(), strings.NewReader(`{"name":"Lungo","price":1250}`)))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"El producto no fue encontrado"}`, rr.Body.String())
	})

	t.Run("invalid id", func(t *testing.T) {
		mockService := new(MockProductService)
		router := newRouter(handler.NewProductHandler(mockService), admin())

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/products/abc", strings.NewReader(`{"name":"Lungo","price":1250}`)))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything)
	})
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	productID := uuid.Must(uuid.NewV4())

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{name: "success", expectedStatus: http.StatusOK, expectedBody: `{"message":"El producto fue eliminado"}`},
		{name: "not found", err: product.ErrProductNotFound, expectedStatus: http.StatusNotFound, expectedBody: `{"error":"El producto no fue encontrado"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			mockService.On("DeleteProduct", mock.Anything, productID).Return(tt.err).Once()
			router := newRouter(handler.NewProductHandler(mockService), admin())

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/products/"+productID.String(), nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.JSONEq(t, tt.expectedBody, rr.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
