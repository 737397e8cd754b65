package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

type Repository interface {
	CreateOrder(ctx context.Context, order *Order) (uuid.UUID, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
	// FindByReference returns the newest order whose id or external reference equals ref.
	FindByReference(ctx context.Context, ref string) (*Order, error)
	UpdateOrder(ctx context.Context, order *Order) error
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}

type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	db DB
}

func NewRepository(db DB) Repository {
	return &postgresRepository{db: db}
}

const selectOrders = `
	SELECT o.id, o.user_id, o.payment_method, o.total, o.status, o.external_reference, o.comment,
	       o.created_at, o.updated_at, u.name, u.email, u.role
	FROM orders o
	JOIN users u ON u.id = o.user_id
`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	owner := &Owner{}
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.PaymentMethod,
		&o.Total,
		&o.Status,
		&o.ExternalReference,
		&o.Comment,
		&o.CreatedAt,
		&o.UpdatedAt,
		&owner.Name,
		&owner.Email,
		&owner.Role,
	)
	if err != nil {
		return nil, err
	}
	owner.ID = o.UserID
	o.Owner = owner
	o.Items = make([]LineItem, 0)
	return &o, nil
}

func (r *postgresRepository) CreateOrder(ctx context.Context, orderInput *Order) (orderID uuid.UUID, err error) {
	finalOrderID := orderInput.ID
	if finalOrderID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			log.Error().Err(genErr).Msg("repository: failed to generate order ID")
			return uuid.Nil, fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		finalOrderID = genID
	}
	orderInput.ID = finalOrderID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("order_id_attempted", finalOrderID).Msg("Panic recovered during CreateOrder, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Stringer("order_id_attempted", finalOrderID).Msg("Transaction for CreateOrder failed, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", finalOrderID).Msg("Failed to rollback transaction")
			}
		} else {
			if commitErr := tx.Commit(ctx); commitErr != nil {
				log.Error().Err(commitErr).Stringer("order_id", finalOrderID).Msg("Failed to commit transaction")
				orderID = uuid.Nil
				err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			}
		}
	}()

	createdAt := time.Now().UTC()

	queryOrder := `
		INSERT INTO orders (id, user_id, payment_method, total, status, external_reference, comment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err = tx.Exec(ctx, queryOrder,
		finalOrderID,
		orderInput.UserID,
		string(orderInput.PaymentMethod),
		orderInput.Total,
		string(orderInput.Status),
		orderInput.ExternalReference,
		orderInput.Comment,
		createdAt,
	)
	if err != nil {
		err = mapForeignKeyError(err)
		return uuid.Nil, fmt.Errorf("repository: failed to insert order: %w", err)
	}
	orderInput.CreatedAt = createdAt
	orderInput.UpdatedAt = createdAt

	queryItem := `
		INSERT INTO order_items (id, order_id, position, product_id, name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range orderInput.Items {
		item := &orderInput.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = genErr
			return uuid.Nil, fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
		}

		_, err = tx.Exec(ctx, queryItem,
			itemID,
			finalOrderID,
			i,
			item.ProductID,
			item.Name,
			item.Quantity,
			item.UnitPrice,
		)
		if err != nil {
			err = mapForeignKeyError(err)
			return uuid.Nil, fmt.Errorf("repository: failed to insert order item for order %s: %w", finalOrderID, err)
		}
	}

	return finalOrderID, nil
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, selectOrders+` WHERE o.id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	if err := r.loadItems(ctx, map[uuid.UUID]*Order{o.ID: o}, []uuid.UUID{o.ID}); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *postgresRepository) FindByReference(ctx context.Context, ref string) (*Order, error) {
	query := selectOrders + `
		WHERE o.id::text = $1 OR o.external_reference = $1
		ORDER BY o.created_at DESC
		LIMIT 1
	`
	o, err := scanOrder(r.db.QueryRow(ctx, query, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by reference %q: %w", ref, err)
	}

	if err := r.loadItems(ctx, map[uuid.UUID]*Order{o.ID: o}, []uuid.UUID{o.ID}); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *postgresRepository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := selectOrders
	args := []any{}
	if filter.UserID != nil {
		query += ` WHERE o.user_id = $1`
		args = append(args, *filter.UserID)
	}
	query += ` ORDER BY o.created_at DESC`

	orderRows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer orderRows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID
	for orderRows.Next() {
		o, err := scanOrder(orderRows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		ordersMap[o.ID] = o
		orderIDs = append(orderIDs, o.ID)
	}
	if err = orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders: %w", err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	if err := r.loadItems(ctx, ordersMap, orderIDs); err != nil {
		return nil, err
	}

	resultOrders := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		resultOrders = append(resultOrders, *ordersMap[id])
	}

	return resultOrders, nil
}

func (r *postgresRepository) loadItems(ctx context.Context, orders map[uuid.UUID]*Order, orderIDs []uuid.UUID) error {
	query := `
		SELECT order_id, product_id, name, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`
	itemRows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID uuid.UUID
			item    LineItem
		)
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		if o, ok := orders[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating order items: %w", err)
	}

	return nil
}

func (r *postgresRepository) UpdateOrder(ctx context.Context, o *Order) error {
	o.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE orders
		SET status = $1, payment_method = $2, total = $3, comment = $4, updated_at = $5
		WHERE id = $6
	`
	cmdTag, err := r.db.Exec(ctx, query,
		string(o.Status),
		string(o.PaymentMethod),
		o.Total,
		o.Comment,
		o.UpdatedAt,
		o.ID,
	)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("repository: failed to update order")
		return fmt.Errorf("repository: failed to update order %s: %w", o.ID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", o.ID).Msg("repository: order not found for update")
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	cmdTag, err := r.db.Exec(ctx, query, string(newStatus), time.Now().UTC(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", orderID).Stringer("new_status", newStatus).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func mapForeignKeyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.ForeignKeyViolation {
		return err
	}

	switch pgErr.ConstraintName {
	case "orders_user_id_fkey":
		return ErrOwnerNotFound
	case "order_items_product_id_fkey":
		return ErrProductNotFound
	default:
		return err
	}
}
