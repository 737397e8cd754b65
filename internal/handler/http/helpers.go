package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
)

const (
	msgUnauthenticated = "No autenticado"
	msgForbidden       = "Acceso denegado"
	msgInternal        = "Error interno"
	msgInvalidPayload  = "Cuerpo de la solicitud inválido"

	maxRequestBody = 1 << 20
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return validate
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage is the message for error classes every handler renders the same way.
// Handlers check their own sentinels first and fall back to this.
func clientMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return msgUnauthenticated
	case errors.Is(err, apperr.ErrForbidden):
		return msgForbidden
	case errors.Is(err, apperr.ErrValidation):
		return err.Error()
	default:
		return fallback
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			details[fe.Field()] = fmt.Sprintf("Field '%s' is required", fe.Field())
		case "email":
			details[fe.Field()] = fmt.Sprintf("Field '%s' must be a valid email", fe.Field())
		case "uuid", "uuid4":
			details[fe.Field()] = fmt.Sprintf("Field '%s' must be a valid id", fe.Field())
		case "min", "gte":
			details[fe.Field()] = fmt.Sprintf("Field '%s' must be at least %s", fe.Field(), fe.Param())
		case "gt":
			details[fe.Field()] = fmt.Sprintf("Field '%s' must be greater than %s", fe.Field(), fe.Param())
		default:
			details[fe.Field()] = fmt.Sprintf("Field '%s' failed on '%s'", fe.Field(), fe.Tag())
		}
	}
	return details
}

// respondWithValidationError renders a validator failure. Any other error is an internal one.
func respondWithValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		log.Error().Err(err).Type("validation_error_type", err).Msg("Unexpected error type during validation")
		respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		return
	}

	details := formatValidationErrors(validationErrors)
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, details[field])
	}

	respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:   "Validation failed: " + strings.Join(msgs, "; "),
		Details: details,
	})
}

// decodeJSON reads a JSON body into dst. strict rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func parseID(raw string) (uuid.UUID, bool) {
	id, err := uuid.FromString(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// optionalNumber is a JSON value used only when it is a number.
type optionalNumber struct {
	Value *float64
}

func (n *optionalNumber) UnmarshalJSON(b []byte) error {
	n.Value = nil
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	n.Value = &f
	return nil
}
