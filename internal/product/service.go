package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) (*Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	// SeedCatalog upserts every catalog entry by name and returns the seeded names in catalog order.
	SeedCatalog(ctx context.Context, r io.Reader) ([]string, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validate(name string, price float64) error {
	if strings.TrimSpace(name) == "" || price <= 0 {
		return ErrInvalidProduct
	}
	return nil
}

func (s *service) ListProducts(ctx context.Context) ([]Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products in repository")
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	return products, nil
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validate(p.Name, p.Price); err != nil {
		return nil, err
	}
	p.ID = uuid.Nil

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrNameTaken) {
			return nil, err
		}
		log.Error().Err(err).Str("name", p.Name).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("name", p.Name).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, p *Product) (*Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validate(p.Name, p.Price); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrNameTaken) {
			return nil, err
		}
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to update product in repository")
		return nil, fmt.Errorf("service: failed to update product: %w", err)
	}

	return p, nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product in repository")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}

	log.Info().Stringer("product_id", id).Msg("service: product deleted")
	return nil
}

func (s *service) SeedCatalog(ctx context.Context, r io.Reader) ([]string, error) {
	catalog, err := ParseCatalog(r)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(catalog.Products))
	for _, entry := range catalog.Products {
		p := &Product{
			Name:        strings.TrimSpace(entry.Name),
			Price:       entry.Price,
			Description: entry.Description,
			ImageURL:    entry.Image,
		}
		if err := s.repo.UpsertByName(ctx, p); err != nil {
			log.Error().Err(err).Str("name", p.Name).Msg("service: failed to seed product")
			return names, fmt.Errorf("service: failed to seed product %q: %w", p.Name, err)
		}
		names = append(names, p.Name)
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return names, err
	}
	log.Info().Int("seeded", len(names)).Int("total", total).Msg("service: catalog seeded")

	return names, nil
}
