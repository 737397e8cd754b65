package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	// UpsertByName inserts p or overwrites the product that already carries its name.
	UpsertByName(ctx context.Context, p *Product) error
	Count(ctx context.Context) (int, error)
}

type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &repository{db: db}
}

const productColumns = `id, name, price, description, image_url, created_at, updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repository) Create(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate product ID: %w", err)
		}
		p.ID = id
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO products (id, name, price, description, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Price, p.Description, p.ImageURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("repository: failed to insert product: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product by id %s: %w", id, err)
	}

	return &p, nil
}

func (r *repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating products: %w", err)
	}

	return products, nil
}

func (r *repository) Update(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, price = $2, description = $3, image_url = $4, updated_at = $5
		WHERE id = $6
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, p.Name, p.Price, p.Description, p.ImageURL, p.UpdatedAt, p.ID).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("repository: failed to update product %s: %w", p.ID, err)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository: failed to delete product %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}

func (r *repository) UpsertByName(ctx context.Context, p *Product) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate product ID: %w", err)
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO products (id, name, price, description, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (name) DO UPDATE
		SET price = EXCLUDED.price,
		    description = EXCLUDED.description,
		    image_url = EXCLUDED.image_url,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query, id, p.Name, p.Price, p.Description, p.ImageURL, now).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to upsert product %q: %w", p.Name, err)
	}

	return nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("repository: failed to count products: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
