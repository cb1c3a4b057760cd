package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sokomart/marketplace-api/internal/domain"
)

type PostgresPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPaymentRepository(db *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db: db,
	}
}

const paymentColumns = `
	id, order_id, buyer_id, seller_id, business_id,
	method, currency, status,
	subtotal, delivery_fee, service_fee, tax, total,
	transaction_ref, escrow_status, auto_release_deadline,
	escrow, splits, gateway, refund, receipt, status_history,
	created_at, updated_at, version
`

func (p *PostgresPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, order_id, buyer_id, seller_id, business_id,
			method, currency, status,
			subtotal, delivery_fee, service_fee, tax, total,
			transaction_ref, escrow_status, auto_release_deadline,
			escrow, splits, gateway, refund, receipt, status_history,
			created_at, version
		)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16,
			$17, $18, $19, $20, $21, $22,
			$23, 1
		)
	`

	docs, err := marshalPaymentDocs(payment)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(ctx, query,
		payment.ID, payment.OrderID, payment.BuyerID, payment.SellerID, payment.BusinessID,
		payment.Method, payment.Currency, payment.Status,
		payment.Amount.Subtotal, payment.Amount.DeliveryFee, payment.Amount.ServiceFee,
		payment.Amount.Tax, payment.Amount.Total,
		payment.Gateway.TransactionRef, payment.Escrow.Status, payment.Escrow.AutoReleaseDeadline,
		docs.escrow, docs.splits, docs.gateway, docs.refund, docs.receipt, docs.history,
		payment.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrEditConflict
		}
		return err
	}

	payment.Version = 1

	return nil
}

func (p *PostgresPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT` + paymentColumns + `FROM payments WHERE id = $1`

	return p.getOne(ctx, query, id)
}

func (p *PostgresPaymentRepository) GetByTransactionRef(ctx context.Context, ref string) (*domain.Payment, error) {
	query := `SELECT` + paymentColumns + `FROM payments WHERE transaction_ref = $1`

	return p.getOne(ctx, query, ref)
}

func (p *PostgresPaymentRepository) GetByOrderID(ctx context.Context, orderID string) ([]domain.Payment, error) {
	query := `SELECT` + paymentColumns + `FROM payments WHERE order_id = $1 ORDER BY created_at`

	return p.list(ctx, query, orderID)
}

// Update writes the payment back using an optimistic version check. A stale
// write returns domain.ErrEditConflict so the caller can re-read and retry
// rather than merge over concurrent financial mutations.
func (p *PostgresPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET status = $1,
			escrow_status = $2,
			auto_release_deadline = $3,
			escrow = $4,
			splits = $5,
			gateway = $6,
			refund = $7,
			receipt = $8,
			status_history = $9,
			updated_at = now(),
			version = version + 1
		WHERE id = $10 AND version = $11
	`

	docs, err := marshalPaymentDocs(payment)
	if err != nil {
		return err
	}

	tag, err := p.db.Exec(ctx, query,
		payment.Status,
		payment.Escrow.Status, payment.Escrow.AutoReleaseDeadline,
		docs.escrow, docs.splits, docs.gateway, docs.refund, docs.receipt, docs.history,
		payment.ID, payment.Version,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEditConflict
	}

	payment.Version++

	return nil
}

func (p *PostgresPaymentRepository) ListDueEscrows(ctx context.Context, now time.Time) ([]domain.Payment, error) {
	query := `SELECT` + paymentColumns + `
		FROM payments
		WHERE escrow_status = 'held' AND auto_release_deadline <= $1
		ORDER BY auto_release_deadline
	`

	return p.list(ctx, query, now)
}

func (p *PostgresPaymentRepository) ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]domain.Payment, error) {
	query := `SELECT` + paymentColumns + `
		FROM payments
		WHERE status = 'processing' AND coalesce(updated_at, created_at) < $1
		ORDER BY created_at
	`

	return p.list(ctx, query, olderThan)
}

func (p *PostgresPaymentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	row := p.db.QueryRow(ctx, query, arg)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return payment, nil
}

func (p *PostgresPaymentRepository) list(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)

	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}

	return payments, rows.Err()
}

type paymentDocs struct {
	escrow  []byte
	splits  []byte
	gateway []byte
	refund  []byte
	receipt []byte
	history []byte
}

func marshalPaymentDocs(payment *domain.Payment) (*paymentDocs, error) {
	docs := &paymentDocs{}

	for _, field := range []struct {
		dst *[]byte
		src any
	}{
		{&docs.escrow, payment.Escrow},
		{&docs.splits, payment.Splits},
		{&docs.gateway, payment.Gateway},
		{&docs.refund, payment.Refund},
		{&docs.receipt, payment.Receipt},
		{&docs.history, payment.StatusHistory},
	} {
		b, err := json.Marshal(field.src)
		if err != nil {
			return nil, fmt.Errorf("marshaling payment document: %w", err)
		}
		*field.dst = b
	}

	return docs, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment             domain.Payment
		transactionRef      string
		escrowStatus        string
		autoReleaseDeadline *time.Time
		escrow              []byte
		splits              []byte
		gatewayDoc          []byte
		refund              []byte
		receipt             []byte
		history             []byte
	)

	err := row.Scan(
		&payment.ID, &payment.OrderID, &payment.BuyerID, &payment.SellerID, &payment.BusinessID,
		&payment.Method, &payment.Currency, &payment.Status,
		&payment.Amount.Subtotal, &payment.Amount.DeliveryFee, &payment.Amount.ServiceFee,
		&payment.Amount.Tax, &payment.Amount.Total,
		&transactionRef, &escrowStatus, &autoReleaseDeadline,
		&escrow, &splits, &gatewayDoc, &refund, &receipt, &history,
		&payment.CreatedAt, &payment.UpdatedAt, &payment.Version,
	)
	if err != nil {
		return nil, err
	}

	for _, doc := range []struct {
		src []byte
		dst any
	}{
		{escrow, &payment.Escrow},
		{splits, &payment.Splits},
		{gatewayDoc, &payment.Gateway},
		{refund, &payment.Refund},
		{receipt, &payment.Receipt},
		{history, &payment.StatusHistory},
	} {
		err = json.Unmarshal(doc.src, doc.dst)
		if err != nil {
			return nil, fmt.Errorf("unmarshaling payment document: %w", err)
		}
	}

	return &payment, nil
}
