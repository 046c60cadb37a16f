package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_checkout/checkout-service/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const attemptColumns = `id, idempotency_key, status, merchant_id, quote_id, quote_expires_at, quote_snapshot,
	order_id, payment_status, error_code, error_message, created_at, updated_at`

// AttemptUpdate moves an attempt to Status. Empty fields keep their stored
// value, except the error fields which always take the update's values.
type AttemptUpdate struct {
	Status         domain.CheckoutStatus
	QuoteID        string
	QuoteExpiresAt *time.Time
	QuoteSnapshot  []byte
	OrderID        string
	PaymentStatus  string
	ErrorCode      string
	ErrorMessage   string
}

// AttemptEvent is the outbox payload written on every attempt change.
type AttemptEvent struct {
	AttemptID      string                `json:"attempt_id"`
	IdempotencyKey string                `json:"idempotency_key"`
	Status         domain.CheckoutStatus `json:"status"`
	PreviousStatus domain.CheckoutStatus `json:"previous_status,omitempty"`
	MerchantID     string                `json:"merchant_id"`
	QuoteID        string                `json:"quote_id,omitempty"`
	OrderID        string                `json:"order_id,omitempty"`
	PaymentStatus  string                `json:"payment_status,omitempty"`
	ErrorCode      string                `json:"error_code,omitempty"`
	OccurredAt     time.Time             `json:"occurred_at"`
}

func EventType(status domain.CheckoutStatus) string {
	switch status {
	case domain.CheckoutStatusPending:
		return "CheckoutAttemptStarted"
	case domain.CheckoutStatusQuoted:
		return "CheckoutAttemptQuoted"
	case domain.CheckoutStatusOrdered:
		return "CheckoutAttemptOrdered"
	case domain.CheckoutStatusPaid:
		return "CheckoutAttemptPaid"
	default:
		return "CheckoutAttemptFailed"
	}
}

// CreateAttempt inserts a PENDING attempt. Status on the argument is
// overwritten.
func (r *Repository) CreateAttempt(ctx context.Context, attempt *domain.CheckoutAttempt) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	attempt.Status = domain.CheckoutStatusPending
	query := `INSERT INTO checkout_attempts (id, idempotency_key, status, merchant_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		attempt.ID,
		attempt.IdempotencyKey,
		attempt.Status,
		attempt.MerchantID,
	).Scan(&attempt.CreatedAt, &attempt.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert checkout attempt: %w", err)
	}

	if err := insertEvent(ctx, tx, attempt, ""); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) GetAttempt(ctx context.Context, id string) (*domain.CheckoutAttempt, error) {
	// ids are uuid columns; anything else cannot match a row.
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAttemptNotFound
	}
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts WHERE id = $1`

	attempt, err := scanAttempt(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout attempt: %w", err)
	}
	return attempt, nil
}

func (r *Repository) GetAttemptByIdempotencyKey(ctx context.Context, key string) (*domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts WHERE idempotency_key = $1`

	attempt, err := scanAttempt(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout attempt by idempotency key: %w", err)
	}
	return attempt, nil
}

// TransitionAttempt applies upd under a row lock, checks the transition table
// and writes the outbox event in the same transaction.
func (r *Repository) TransitionAttempt(ctx context.Context, id string, upd AttemptUpdate) (*domain.CheckoutAttempt, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAttemptNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current domain.CheckoutStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM checkout_attempts WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock checkout attempt: %w", err)
	}

	if !domain.CanTransitionTo(current, upd.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, upd.Status)
	}

	query := `UPDATE checkout_attempts SET
	              status = $2,
	              quote_id = COALESCE(NULLIF($3, ''), quote_id),
	              quote_expires_at = COALESCE($4, quote_expires_at),
	              quote_snapshot = COALESCE($5::jsonb, quote_snapshot),
	              order_id = COALESCE(NULLIF($6, ''), order_id),
	              payment_status = COALESCE(NULLIF($7, ''), payment_status),
	              error_code = NULLIF($8, ''),
	              error_message = NULLIF($9, ''),
	              updated_at = NOW()
	          WHERE id = $1
	          RETURNING ` + attemptColumns

	attempt, err := scanAttempt(tx.QueryRowContext(ctx, query,
		id,
		upd.Status,
		upd.QuoteID,
		nullTime(upd.QuoteExpiresAt),
		nullJSON(upd.QuoteSnapshot),
		upd.OrderID,
		upd.PaymentStatus,
		upd.ErrorCode,
		upd.ErrorMessage,
	))
	if err != nil {
		return nil, fmt.Errorf("update checkout attempt: %w", err)
	}

	if err := insertEvent(ctx, tx, attempt, current); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return attempt, nil
}

// GetStaleAttempts returns PENDING attempts not touched for olderThan. They
// were abandoned before a quote came back.
func (r *Repository) GetStaleAttempts(ctx context.Context, olderThan time.Duration) ([]*domain.CheckoutAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM checkout_attempts
	          WHERE status = $1 AND updated_at < $2
	          ORDER BY updated_at
	          LIMIT 100`

	rows, err := r.db.QueryContext(ctx, query, domain.CheckoutStatusPending, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("query stale attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.CheckoutAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale attempts: %w", err)
	}
	return attempts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*domain.CheckoutAttempt, error) {
	var (
		a             domain.CheckoutAttempt
		quoteID       sql.NullString
		expiresAt     sql.NullTime
		orderID       sql.NullString
		paymentStatus sql.NullString
		errorCode     sql.NullString
		errorMessage  sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.IdempotencyKey,
		&a.Status,
		&a.MerchantID,
		&quoteID,
		&expiresAt,
		&a.QuoteSnapshot,
		&orderID,
		&paymentStatus,
		&errorCode,
		&errorMessage,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.QuoteID = quoteID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		a.QuoteExpiresAt = &t
	}
	a.OrderID = orderID.String
	a.PaymentStatus = paymentStatus.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMessage.String
	return &a, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, a *domain.CheckoutAttempt, previous domain.CheckoutStatus) error {
	payload, err := json.Marshal(AttemptEvent{
		AttemptID:      a.ID,
		IdempotencyKey: a.IdempotencyKey,
		Status:         a.Status,
		PreviousStatus: previous,
		MerchantID:     a.MerchantID,
		QuoteID:        a.QuoteID,
		OrderID:        a.OrderID,
		PaymentStatus:  a.PaymentStatus,
		ErrorCode:      a.ErrorCode,
		OccurredAt:     a.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal attempt event: %w", err)
	}

	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at) VALUES ($1, $2, $3, NOW())`
	if _, err := tx.ExecContext(ctx, query, a.ID, EventType(a.Status), string(payload)); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
