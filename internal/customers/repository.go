package customers

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mftcargo/tracker/internal/platform/db"
	"github.com/mftcargo/tracker/internal/shared"
)

// Repository defines persistence operations for customers.
type Repository interface {
	Get(ctx context.Context, id int64) (*Customer, error)
	GetByCode(ctx context.Context, code string) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Codes(ctx context.Context) ([]string, error)
	Create(ctx context.Context, c Customer) (*Customer, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*Customer, error)
	Upsert(ctx context.Context, in UpsertInput) (*Customer, error)
	Delete(ctx context.Context, id int64) error
	CountShipments(ctx context.Context, id int64) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const customerColumns = `id, customer_code, name, phone_number, address, city, country, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	if err := row.Scan(&c.ID, &c.CustomerCode, &c.Name, &c.PhoneNumber, &c.Address, &c.City, &c.Country, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Get fetches a customer by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	return c, shared.Persistence("get customer", err)
}

// GetByCode fetches a customer by its normalised code.
func (r *PGRepository) GetByCode(ctx context.Context, code string) (*Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_code = $1`, code))
	return c, shared.Persistence("get customer by code", err)
}

// List returns every customer, newest first.
func (r *PGRepository) List(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, shared.Persistence("list customers", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, shared.Persistence("scan customer", err)
		}
		out = append(out, *c)
	}
	return out, shared.Persistence("list customers", rows.Err())
}

// Codes returns every customer code that carries the MFT- prefix.
func (r *PGRepository) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT customer_code FROM customers WHERE customer_code LIKE 'MFT-%'`)
	if err != nil {
		return nil, shared.Persistence("list customer codes", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return codes, shared.Persistence("list customer codes", err)
}

// Create inserts a customer; a taken code yields ErrDuplicateCode.
func (r *PGRepository) Create(ctx context.Context, c Customer) (*Customer, error) {
	const query = `
		INSERT INTO customers (customer_code, name, phone_number, address, city, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + customerColumns
	created, err := scanCustomer(r.pool.QueryRow(ctx, query, c.CustomerCode, c.Name, c.PhoneNumber, c.Address, c.City, c.Country, time.Now().UTC()))
	if shared.IsUniqueViolation(err) {
		return nil, ErrDuplicateCode
	}
	return created, shared.Persistence("create customer", err)
}

// Update applies column updates and returns the fresh row.
func (r *PGRepository) Update(ctx context.Context, id int64, updates map[string]any) (*Customer, error) {
	query, args := db.BuildUpdate("customers", id, updates, time.Now().UTC())
	updated, err := scanCustomer(r.pool.QueryRow(ctx, query+` RETURNING `+customerColumns, args...))
	if shared.IsUniqueViolation(err) {
		return nil, ErrDuplicateCode
	}
	return updated, shared.Persistence("update customer", err)
}

// Upsert inserts the customer or refreshes name and the provided optional
// fields when the code already exists.
func (r *PGRepository) Upsert(ctx context.Context, in UpsertInput) (*Customer, error) {
	const query = `
		INSERT INTO customers (customer_code, name, phone_number, country, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (customer_code) DO UPDATE SET
			name = EXCLUDED.name,
			phone_number = COALESCE(EXCLUDED.phone_number, customers.phone_number),
			country = COALESCE(EXCLUDED.country, customers.country),
			address = COALESCE(EXCLUDED.address, customers.address),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + customerColumns
	c, err := scanCustomer(r.pool.QueryRow(ctx, query, in.CustomerCode, in.Name, in.PhoneNumber, in.Country, in.Address, time.Now().UTC()))
	return c, shared.Persistence("upsert customer", err)
}

// Delete removes a customer row.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return shared.Persistence("delete customer", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountShipments counts shipments linked to the customer.
func (r *PGRepository) CountShipments(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shipments WHERE customer_id = $1`, id).Scan(&n)
	return n, shared.Persistence("count customer shipments", err)
}

var _ Repository = (*PGRepository)(nil)
