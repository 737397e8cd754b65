package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vasiliy-maslov/laofi/internal/auth"
)

// Streamer serves the realtime order channel.
type Streamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type Router struct {
	Sessions *auth.Manager
	Orders   *OrderHandler
	Payments *PaymentHandler
	Users    *UserHandler
	Products *ProductHandler
	Stream   Streamer
}

// NewRouter mounts every handler behind the shared middleware stack.
func NewRouter(rt Router) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(rt.Sessions.Authenticate)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	rt.Payments.RegisterRoutes(router)
	rt.Orders.RegisterRoutes(router)
	rt.Users.RegisterRoutes(router)
	rt.Products.RegisterRoutes(router)

	if rt.Stream != nil {
		router.With(auth.RequireAdmin).Get("/ws/orders", rt.Stream.ServeWS)
	}

	return router
}
