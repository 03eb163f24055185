package donation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"donorgate/internal/common/database"
	"donorgate/internal/common/money"
)

// PostgresStore persists donation records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new donation record.
func (s *PostgresStore) Create(ctx context.Context, d *Donation) error {
	query := `
		INSERT INTO donations (
			id, transaction_id, category_id, user_id,
			donor_name, donor_email, donor_phone, items, quantity,
			base_amount, extra_amount, amount,
			status, payment_status, failure_reason, error_message, payment_details,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	details, _ := json.Marshal(d.PaymentDetails)

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.TransactionID, d.CategoryID, nullStr(d.UserID),
		d.DonorName, d.DonorEmail, nullStr(d.DonorPhone), nullStr(d.Items), d.Quantity,
		float64(d.BaseAmount), float64(d.ExtraAmount), float64(d.Amount),
		d.Status, d.PaymentStatus, nullStr(d.FailureReason), nullStr(d.ErrorMessage), details,
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

// GetByID retrieves a donation by its record id.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Donation, error) {
	query := `
		SELECT id, transaction_id, category_id, user_id,
			   donor_name, donor_email, donor_phone, items, quantity,
			   base_amount, extra_amount, amount,
			   status, payment_status, failure_reason, error_message, payment_details,
			   created_at, updated_at
		FROM donations WHERE id = $1
	`
	return s.scan(s.pool.QueryRow(ctx, query, id))
}

// GetByTransactionID retrieves a donation by gateway transaction id.
func (s *PostgresStore) GetByTransactionID(ctx context.Context, txnID string) (*Donation, error) {
	query := `
		SELECT id, transaction_id, category_id, user_id,
			   donor_name, donor_email, donor_phone, items, quantity,
			   base_amount, extra_amount, amount,
			   status, payment_status, failure_reason, error_message, payment_details,
			   created_at, updated_at
		FROM donations WHERE transaction_id = $1
	`
	return s.scan(s.pool.QueryRow(ctx, query, txnID))
}

// ApplyOutcome overwrites the lifecycle fields of a donation in a single
// update by id. Failure reason and error message are left untouched unless
// the update carries them. Per-row atomicity is all this write relies on;
// there is no compare-and-swap on the previous payment status.
func (s *PostgresStore) ApplyOutcome(ctx context.Context, id string, upd OutcomeUpdate) error {
	query := `
		UPDATE donations SET
			status = $2,
			payment_status = $3,
			transaction_id = COALESCE(NULLIF($4, ''), transaction_id),
			failure_reason = COALESCE($5, failure_reason),
			error_message = COALESCE($6, error_message),
			payment_details = $7,
			updated_at = $8
		WHERE id = $1
	`

	details, _ := json.Marshal(upd.Details)

	tag, err := s.pool.Exec(ctx, query,
		id, upd.Status, upd.PaymentStatus, upd.TransactionID,
		upd.FailureReason, upd.ErrorMessage, details, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return database.ErrNotFound
	}
	return nil
}

// GetStatusView retrieves a donation by transaction id joined with its
// category and donor user display names.
func (s *PostgresStore) GetStatusView(ctx context.Context, txnID string) (*StatusView, error) {
	query := `
		SELECT d.id, d.transaction_id, d.category_id, d.user_id,
			   d.donor_name, d.donor_email, d.donor_phone, d.items, d.quantity,
			   d.base_amount, d.extra_amount, d.amount,
			   d.status, d.payment_status, d.failure_reason, d.error_message, d.payment_details,
			   d.created_at, d.updated_at,
			   c.name, u.name
		FROM donations d
		LEFT JOIN categories c ON c.id = d.category_id
		LEFT JOIN users u ON u.id = d.user_id
		WHERE d.transaction_id = $1
	`

	row := s.pool.QueryRow(ctx, query, txnID)

	var v StatusView
	var userID, donorPhone, items, failureReason, errorMsg *string
	var categoryName, userName *string
	var details []byte
	var base, extra, amount float64

	err := row.Scan(
		&v.ID, &v.TransactionID, &v.CategoryID, &userID,
		&v.DonorName, &v.DonorEmail, &donorPhone, &items, &v.Quantity,
		&base, &extra, &amount,
		&v.Status, &v.PaymentStatus, &failureReason, &errorMsg, &details,
		&v.CreatedAt, &v.UpdatedAt,
		&categoryName, &userName,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	v.BaseAmount = money.Amount(base)
	v.ExtraAmount = money.Amount(extra)
	v.Amount = money.Amount(amount)
	assignStr(&v.UserID, userID)
	assignStr(&v.DonorPhone, donorPhone)
	assignStr(&v.Items, items)
	assignStr(&v.FailureReason, failureReason)
	assignStr(&v.ErrorMessage, errorMsg)
	assignStr(&v.CategoryName, categoryName)
	assignStr(&v.UserName, userName)
	unmarshalDetails(details, &v.Donation)

	return &v, nil
}

func (s *PostgresStore) scan(row pgx.Row) (*Donation, error) {
	var d Donation
	var userID, donorPhone, items, failureReason, errorMsg *string
	var details []byte
	var base, extra, amount float64

	err := row.Scan(
		&d.ID, &d.TransactionID, &d.CategoryID, &userID,
		&d.DonorName, &d.DonorEmail, &donorPhone, &items, &d.Quantity,
		&base, &extra, &amount,
		&d.Status, &d.PaymentStatus, &failureReason, &errorMsg, &details,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, database.ErrNotFound
		}
		return nil, err
	}

	d.BaseAmount = money.Amount(base)
	d.ExtraAmount = money.Amount(extra)
	d.Amount = money.Amount(amount)
	assignStr(&d.UserID, userID)
	assignStr(&d.DonorPhone, donorPhone)
	assignStr(&d.Items, items)
	assignStr(&d.FailureReason, failureReason)
	assignStr(&d.ErrorMessage, errorMsg)
	unmarshalDetails(details, &d)

	return &d, nil
}

func unmarshalDetails(raw []byte, d *Donation) {
	if len(raw) == 0 || string(raw) == "null" {
		return
	}
	var pd PaymentDetails
	if err := json.Unmarshal(raw, &pd); err == nil {
		d.PaymentDetails = &pd
	}
}

func assignStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
