package product

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/laofi/internal/apperr"
)

type Product struct {
	ID          uuid.UUID `json:"_id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var (
	ErrProductNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)
	ErrNameTaken       = fmt.Errorf("%w: product name already exists", apperr.ErrConflict)
	ErrInvalidProduct  = apperr.Validation("Nombre y precio son obligatorios")
)
