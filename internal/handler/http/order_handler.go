package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/auth"
	"github.com/vasiliy-maslov/laofi/internal/order"
)

type LineItemRequest struct {
	Product   string  `json:"producto" validate:"required,uuid"`
	Name      string  `json:"nombre" validate:"required"`
	Quantity  int     `json:"cantidad" validate:"required,gte=1"`
	UnitPrice float64 `json:"precio" validate:"gte=0"`
}

type CreateOrderRequest struct {
	Items         []LineItemRequest `json:"productos" validate:"required,min=1,dive"`
	PaymentMethod string            `json:"metodoPago" validate:"required"`
	Total         optionalNumber    `json:"total"`
	Comment       string            `json:"comentarios"`
	User          string            `json:"user" validate:"omitempty,uuid"`
}

type UpdateOrderRequest struct {
	ID            string   `json:"_id"`
	Status        *string  `json:"estado"`
	PaymentMethod *string  `json:"metodoPago"`
	Total         *float64 `json:"total" validate:"omitempty,gte=0"`
	Comment       *string  `json:"comentarios"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: newValidator(),
	}
}

// RegisterRoutes expects auth.Authenticate to run before the router.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession)
		r.Get("/orders", h.handleListOrders)
		r.Post("/orders", h.handleCreateOrder)
		r.Put("/orders", h.handleUpdateOrder)
		r.Delete("/orders", h.handleDeleteOrder)
	})
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())

	orders, err := h.service.ListOrders(r.Context(), caller)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", caller.ID).Msg("Failed to list orders via service")
		respondWithError(w, mapErrorToStatusCode(err), orderErrorMessage(err, "Error al obtener pedidos"))
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())

	var requestPayload CreateOrderRequest
	if err := decodeJSON(w, r, &requestPayload, false); err != nil {
		log.Warn().Err(err).Msg("Failed to decode order request body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return
	}

	input := order.CreateInput{
		Items:         make([]order.LineItem, 0, len(requestPayload.Items)),
		PaymentMethod: order.PaymentMethod(requestPayload.PaymentMethod),
		Total:         requestPayload.Total.Value,
		Comment:       requestPayload.Comment,
	}
	for _, it := range requestPayload.Items {
		productID := uuid.FromStringOrNil(it.Product)
		input.Items = append(input.Items, order.LineItem{
			ProductID: &productID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}
	if requestPayload.User != "" {
		ownerID := uuid.FromStringOrNil(requestPayload.User)
		input.UserID = &ownerID
	}

	createdOrder, err := h.service.CreateOrder(r.Context(), caller, input)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", caller.ID).Msg("Failed to create order via service")
		respondWithError(w, mapErrorToStatusCode(err), orderErrorMessage(err, "Error al crear pedido"))
		return
	}

	respondWithJSON(w, http.StatusCreated, createdOrder)
}

func (h *OrderHandler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())

	var requestPayload UpdateOrderRequest
	if err := decodeJSON(w, r, &requestPayload, false); err != nil {
		log.Warn().Err(err).Msg("Failed to decode order update body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if requestPayload.ID == "" {
		respondWithError(w, http.StatusBadRequest, "Falta id")
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return
	}

	orderID, ok := parseID(requestPayload.ID)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "id de pedido inválido")
		return
	}

	patch := order.Patch{
		Total:   requestPayload.Total,
		Comment: requestPayload.Comment,
	}
	if requestPayload.Status != nil {
		status := order.Status(*requestPayload.Status)
		patch.Status = &status
	}
	if requestPayload.PaymentMethod != nil {
		method := order.PaymentMethod(*requestPayload.PaymentMethod)
		patch.PaymentMethod = &method
	}

	updatedOrder, err := h.service.UpdateOrder(r.Context(), caller, orderID, patch)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to update order via service")
		respondWithError(w, mapErrorToStatusCode(err), orderErrorMessage(err, "Error al actualizar pedido"))
		return
	}

	respondWithJSON(w, http.StatusOK, updatedOrder)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())

	idParam := r.URL.Query().Get("id")
	if idParam == "" {
		respondWithError(w, http.StatusBadRequest, "Falta id")
		return
	}
	orderID, ok := parseID(idParam)
	if !ok {
		log.Warn().Str("order_id", idParam).Msg("Failed to parse order id from query")
		respondWithError(w, http.StatusBadRequest, "id de pedido inválido")
		return
	}

	if err := h.service.DeleteOrder(r.Context(), caller, orderID); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to delete order via service")
		respondWithError(w, mapErrorToStatusCode(err), orderErrorMessage(err, "Error al eliminar pedido"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func orderErrorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return "Pedido no encontrado"
	case errors.Is(err, order.ErrOwnerNotFound):
		return "Usuario no encontrado"
	case errors.Is(err, order.ErrProductNotFound):
		return "El producto no fue encontrado"
	case errors.Is(err, order.ErrInvalidStatusTransition):
		return "Transición de estado no permitida"
	default:
		return clientMessage(err, fallback)
	}
}
