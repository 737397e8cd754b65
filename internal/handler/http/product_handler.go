package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/auth"
	"github.com/vasiliy-maslov/laofi/internal/product"
)

type ProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
}

type ProductHandler struct {
	service  product.Service
	validate *validator.Validate
}

func NewProductHandler(service product.Service) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *ProductHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleListProducts)

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Post("/products", h.handleCreateProduct)
		r.Put("/products/{id}", h.handleUpdateProduct)
		r.Delete("/products/{id}", h.handleDeleteProduct)
	})
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products via service")
		respondWithError(w, mapErrorToStatusCode(err), productErrorMessage(err, "Error al obtener productos"))
		return
	}
	if products == nil {
		products = []product.Product{}
	}

	respondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	requestPayload, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	createdProduct, err := h.service.CreateProduct(r.Context(), &product.Product{
		Name:        requestPayload.Name,
		Price:       requestPayload.Price,
		Description: requestPayload.Description,
		ImageURL:    requestPayload.Image,
	})
	if err != nil {
		log.Error().Err(err).Str("name", requestPayload.Name).Msg("Failed to create product via service")
		respondWithError(w, mapErrorToStatusCode(err), productErrorMessage(err, "Error al crear producto"))
		return
	}

	respondWithJSON(w, http.StatusCreated, createdProduct)
}

func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	productID, ok := parseID(idParam)
	if !ok {
		log.Warn().Str("product_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "id de producto inválido")
		return
	}

	requestPayload, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	updatedProduct, err := h.service.UpdateProduct(r.Context(), &product.Product{
		ID:          productID,
		Name:        requestPayload.Name,
		Price:       requestPayload.Price,
		Description: requestPayload.Description,
		ImageURL:    requestPayload.Image,
	})
	if err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("Failed to update product via service")
		respondWithError(w, mapErrorToStatusCode(err), productErrorMessage(err, "Error al actualizar producto"))
		return
	}

	respondWithJSON(w, http.StatusOK, updatedProduct)
}

func (h *ProductHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	productID, ok := parseID(idParam)
	if !ok {
		log.Warn().Str("product_id", idParam).Msg("Failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "id de producto inválido")
		return
	}

	if err := h.service.DeleteProduct(r.Context(), productID); err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("Failed to delete product via service")
		respondWithError(w, mapErrorToStatusCode(err), productErrorMessage(err, "Error al eliminar producto"))
		return
	}

	respondWithJSON(w, http.StatusOK, MessageResponse{Message: "El producto fue eliminado"})
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (ProductRequest, bool) {
	var requestPayload ProductRequest
	if err := decodeJSON(w, r, &requestPayload, true); err != nil {
		log.Warn().Err(err).Msg("Failed to decode product request body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return requestPayload, false
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return requestPayload, false
	}
	return requestPayload, true
}

func productErrorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		return "El producto no fue encontrado"
	case errors.Is(err, product.ErrNameTaken):
		return "Ya existe un producto con ese nombre"
	default:
		return clientMessage(err, fallback)
	}
}
