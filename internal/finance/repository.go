package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mftcargo/tracker/internal/shared"
)

// Repository defines persistence operations for transactions.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Transaction, error)
	Create(ctx context.Context, t Transaction) (*Transaction, error)
	Delete(ctx context.Context, id int64) error
	Sums(ctx context.Context, from, to *time.Time) ([]Sum, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectTransaction = `
	SELECT t.id, t.type, t.category, t.amount, t.currency, t.description, t.date,
	       t.manifest_id, t.shipment_id, t.created_at,
	       COALESCE(m.name, ''), COALESCE(s.tracking_number, '')
	FROM transactions t
	LEFT JOIN manifests m ON m.id = t.manifest_id
	LEFT JOIN shipments s ON s.id = t.shipment_id`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Type, &t.Category, &t.Amount, &t.Currency, &t.Description, &t.Date,
		&t.ManifestID, &t.ShipmentID, &t.CreatedAt, &t.ManifestName, &t.TrackingNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// rangeClause appends date bounds on column to the clauses.
func rangeClause(column string, from, to *time.Time, clauses []string, args []any) ([]string, []any) {
	if from != nil {
		args = append(args, *from)
		clauses = append(clauses, fmt.Sprintf("%s >= $%d", column, len(args)))
	}
	if to != nil {
		args = append(args, *to)
		clauses = append(clauses, fmt.Sprintf("%s <= $%d", column, len(args)))
	}
	return clauses, args
}

// List returns matching transactions, newest first.
func (r *PGRepository) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.ManifestID != nil {
		args = append(args, *filter.ManifestID)
		clauses = append(clauses, fmt.Sprintf("t.manifest_id = $%d", len(args)))
	}
	if filter.ShipmentID != nil {
		args = append(args, *filter.ShipmentID)
		clauses = append(clauses, fmt.Sprintf("t.shipment_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		clauses = append(clauses, fmt.Sprintf("t.type = $%d", len(args)))
	}
	clauses, args = rangeClause("t.date", filter.From, filter.To, clauses, args)

	query := selectTransaction
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY t.date DESC, t.id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Persistence("list transactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, shared.Persistence("scan transaction", err)
		}
		out = append(out, *t)
	}
	return out, shared.Persistence("list transactions", rows.Err())
}

// Create inserts a transaction and returns it with its joined references.
func (r *PGRepository) Create(ctx context.Context, t Transaction) (*Transaction, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (type, category, amount, currency, description, date, manifest_id, shipment_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		t.Type, t.Category, t.Amount, t.Currency, t.Description, t.Date, t.ManifestID, t.ShipmentID, time.Now().UTC(),
	).Scan(&id)
	if shared.IsForeignKeyViolation(err) {
		return nil, ErrUnknownReference
	}
	if err != nil {
		return nil, shared.Persistence("create transaction", err)
	}
	created, err := scanTransaction(r.pool.QueryRow(ctx, selectTransaction+` WHERE t.id = $1`, id))
	return created, shared.Persistence("get transaction", err)
}

// Delete removes a transaction row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return shared.Persistence("delete transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Sums totals amounts per type and currency within the optional date range.
func (r *PGRepository) Sums(ctx context.Context, from, to *time.Time) ([]Sum, error) {
	clauses, args := rangeClause("date", from, to, nil, nil)
	query := `SELECT type, currency, COALESCE(SUM(amount), 0) FROM transactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " GROUP BY type, currency"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Persistence("sum transactions", err)
	}
	sums, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sum, error) {
		var s Sum
		err := row.Scan(&s.Type, &s.Currency, &s.Amount)
		return s, err
	})
	return sums, shared.Persistence("sum transactions", err)
}

var _ Repository = (*PGRepository)(nil)
