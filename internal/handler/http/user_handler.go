package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/auth"
	"github.com/vasiliy-maslov/laofi/internal/user"
)

// Sessions issues and clears the session cookie.
type Sessions interface {
	Issue(p user.Principal) (string, time.Time, error)
	SetCookie(w http.ResponseWriter, token string, expires time.Time)
	ClearCookie(w http.ResponseWriter)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateClientRequest struct {
	ID    string  `json:"_id"`
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	Role  *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type DeleteClientRequest struct {
	ID string `json:"_id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserHandler struct {
	service  user.Service
	sessions Sessions
	validate *validator.Validate
}

func NewUserHandler(service user.Service, sessions Sessions) *UserHandler {
	return &UserHandler{
		service:  service,
		sessions: sessions,
		validate: newValidator(),
	}
}

func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Post("/register", h.handleRegister)
	router.Post("/login", h.handleLogin)
	router.Post("/logout", h.handleLogout)
	router.With(auth.RequireSession).Get("/me", h.handleMe)

	router.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)
		r.Get("/clients", h.handleListClients)
		r.Put("/clients", h.handleUpdateClient)
		r.Delete("/clients", h.handleDeleteClient)
	})
}

func (h *UserHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var requestPayload RegisterRequest
	if err := decodeJSON(w, r, &requestPayload, true); err != nil {
		log.Warn().Err(err).Msg("Failed to decode register request body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return
	}

	createdUser, err := h.service.Register(r.Context(), user.RegisterInput{
		Name:     requestPayload.Name,
		Email:    requestPayload.Email,
		Password: requestPayload.Password,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to register user via service")
		respondWithError(w, mapErrorToStatusCode(err), userErrorMessage(err, "Error al registrar usuario"))
		return
	}

	log.Info().Stringer("user_id", createdUser.ID).Stringer("role", createdUser.Role).Msg("User registered")
	respondWithJSON(w, http.StatusCreated, MessageResponse{Message: "Usuario creado"})
}

func (h *UserHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var requestPayload LoginRequest
	if err := decodeJSON(w, r, &requestPayload, true); err != nil {
		log.Warn().Err(err).Msg("Failed to decode login request body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return
	}

	authenticated, err := h.service.Authenticate(r.Context(), requestPayload.Email, requestPayload.Password)
	if err != nil {
		if !errors.Is(err, user.ErrInvalidCredentials) {
			log.Error().Err(err).Msg("Failed to authenticate user via service")
		}
		respondWithError(w, mapErrorToStatusCode(err), userErrorMessage(err, "Error al iniciar sesión"))
		return
	}

	token, expires, err := h.sessions.Issue(authenticated.Principal())
	if err != nil {
		log.Error().Err(err).Stringer("user_id", authenticated.ID).Msg("Failed to issue session token")
		respondWithError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	h.sessions.SetCookie(w, token, expires)

	respondWithJSON(w, http.StatusOK, authenticated)
}

func (h *UserHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *UserHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.PrincipalFrom(r.Context())

	foundUser, err := h.service.GetUserByID(r.Context(), caller.ID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", caller.ID).Msg("Failed to get current user via service")
		respondWithError(w, mapErrorToStatusCode(err), userErrorMessage(err, "Error al obtener usuario"))
		return
	}

	respondWithJSON(w, http.StatusOK, foundUser)
}

func (h *UserHandler) handleListClients(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users via service")
		respondWithError(w, mapErrorToStatusCode(err), userErrorMessage(err, "Error al obtener clientes"))
		return
	}
	if users == nil {
		users = []user.User{}
	}

	respondWithJSON(w, http.StatusOK, users)
}

func (h *UserHandler) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var requestPayload UpdateClientRequest
	if err := decodeJSON(w, r, &requestPayload, false); err != nil {
		log.Warn().Err(err).Msg("Failed to decode client update body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	userID, ok := clientID(w, requestPayload.ID)
	if !ok {
		return
	}
	if err := h.validate.Struct(requestPayload); err != nil {
		respondWithValidationError(w, err)
		return
	}

	patch := user.Patch{Name: requestPayload.Name, Email: requestPayload.Email}
	if requestPayload.Role != nil {
		role := user.Role(*requestPayload.Role)
		patch.Role = &role
	}

	updatedUser, err := h.service.UpdateUser(r.Context(), userID, patch)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to update user via service")
		respondWithError(w, mapErrorToStatusCode(err), userErrorMessage(err, "Error al actualizar cliente"))
		return
	}

	respondWithJSON(w, http.StatusOK, updatedUser)
}

func (h *UserHandler) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	var requestPayload DeleteClientRequest
	if err := decodeJSON(w, r, &requestPayload, false); err != nil {
		log.Warn().Err(err).Msg("Failed to decode client delete body")
		respondWithError(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	userID, ok := clientID(w, requestPayload.ID)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("Failed to delete user via service")
		respondWithError(w, mapErrorToStatusCode(err), userErrorMessage(err, "Error al eliminar cliente"))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func clientID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	if raw == "" {
		respondWithError(w, http.StatusBadRequest, "Falta el _id del usuario")
		return uuid.Nil, false
	}
	id, ok := parseID(raw)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "_id de usuario inválido")
		return uuid.Nil, false
	}
	return id, true
}

func userErrorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return "Usuario no encontrado"
	case errors.Is(err, user.ErrEmailExists):
		return "Email ya registrado"
	case errors.Is(err, user.ErrInvalidCredentials):
		return "Credenciales inválidas"
	default:
		return clientMessage(err, fallback)
	}
}
