package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sokomart/marketplace-api/internal/domain"
)

type PostgresOrderRepository struct {
	db *pgxpool.Pool
}

func NewPostgresOrderRepository(db *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db: db,
	}
}

func (p *PostgresOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, business_id, buyer_id, customer, items, delivery, currency,
			subtotal, shipping_cost, tax, discount, total_price,
			status, payment, status_history, created_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
	`

	docs, err := marshalOrderDocs(order)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(ctx, query,
		order.ID, order.BusinessID, nullable(order.BuyerID), docs.customer, docs.items, docs.delivery, order.Currency,
		order.Subtotal, order.ShippingCost, order.Tax, order.Discount, order.TotalPrice,
		order.Status, docs.payment, docs.history, order.CreatedAt,
	)
	if err != nil {
		return err
	}

	order.Version = 1

	return nil
}

func (p *PostgresOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, business_id, buyer_id, customer, items, delivery, currency,
			subtotal, shipping_cost, tax, discount, total_price,
			status, payment, status_history, created_at, updated_at, version
		FROM orders
		WHERE id = $1
	`

	var (
		order    domain.Order
		buyerID  *string
		customer []byte
		items    []byte
		delivery []byte
		payment  []byte
		history  []byte
	)

	err := p.db.QueryRow(ctx, query, id).Scan(
		&order.ID, &order.BusinessID, &buyerID, &customer, &items, &delivery, &order.Currency,
		&order.Subtotal, &order.ShippingCost, &order.Tax, &order.Discount, &order.TotalPrice,
		&order.Status, &payment, &history, &order.CreatedAt, &order.UpdatedAt, &order.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	if buyerID != nil {
		order.BuyerID = *buyerID
	}

	for _, doc := range []struct {
		src []byte
		dst any
	}{
		{customer, &order.Customer},
		{items, &order.Items},
		{delivery, &order.Delivery},
		{payment, &order.Payment},
		{history, &order.StatusHistory},
	} {
		err = json.Unmarshal(doc.src, doc.dst)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling order document: %w", err)
		}
	}

	return &order, nil
}

// Update persists the order with an optimistic version check; stale writes
// return domain.ErrEditConflict.
func (p *PostgresOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET delivery = $1,
			status = $2,
			payment = $3,
			status_history = $4,
			updated_at = now(),
			version = version + 1
		WHERE id = $5 AND version = $6
	`

	docs, err := marshalOrderDocs(order)
	if err != nil {
		return err
	}

	tag, err := p.db.Exec(ctx, query,
		docs.delivery, order.Status, docs.payment, docs.history,
		order.ID, order.Version,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEditConflict
	}

	order.Version++

	return nil
}

type orderDocs struct {
	customer []byte
	items    []byte
	delivery []byte
	payment  []byte
	history  []byte
}

func marshalOrderDocs(order *domain.Order) (*orderDocs, error) {
	docs := &orderDocs{}

	for _, field := range []struct {
		dst *[]byte
		src any
	}{
		{&docs.customer, order.Customer},
		{&docs.items, order.Items},
		{&docs.delivery, order.Delivery},
		{&docs.payment, order.Payment},
		{&docs.history, order.StatusHistory},
	} {
		b, err := json.Marshal(field.src)
		if err != nil {
			return nil, fmt.Errorf("marshaling order document: %w", err)
		}
		*field.dst = b
	}

	return docs, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
