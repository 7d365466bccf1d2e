package shipments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mftcargo/tracker/internal/platform/db"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/status"
)

// Repository defines the shipment read side plus transactional writes.
type Repository interface {
	Get(ctx context.Context, id int64) (*Shipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Shipment, error)
	TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]Shipment, int, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Shipment, error)
	ListByManifest(ctx context.Context, manifestID int64) ([]Shipment, error)
	Events(ctx context.Context, shipmentIDs []int64) (map[int64][]Event, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations.
type TxRepository interface {
	Create(ctx context.Context, s Shipment) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	AppendEvents(ctx context.Context, events []Event) error
	DeleteEvents(ctx context.Context, shipmentID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

// PGRepository provides PostgreSQL backed persistence for shipments.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// ============================================================================
// READS
// ============================================================================

const selectShipment = `
	SELECT s.id, s.tracking_number, s.sender_name, s.sender_phone, s.sender_address,
	       s.supplier_name, s.receiver_name, s.receiver_address, s.receiver_company,
	       s.receiver_phone, s.country, s.dimensions, s.weight, s.volume, s.quantity,
	       s.payment_method, s.truck_number, s.shipping_week, s.current_status,
	       s.customer_id, s.manifest_id, s.created_at, s.updated_at,
	       c.customer_code, c.name, c.phone_number,
	       m.name, m.status, m.current_stage, m.truck_plate
	FROM shipments s
	LEFT JOIN customers c ON c.id = s.customer_id
	LEFT JOIN manifests m ON m.id = s.manifest_id`

func scanShipment(row pgx.Row) (*Shipment, error) {
	var (
		s                            Shipment
		customerCode, customerName   *string
		customerPhone                *string
		manifestName, manifestStatus *string
		manifestStage, manifestPlate *string
	)
	err := row.Scan(
		&s.ID, &s.TrackingNumber, &s.SenderName, &s.SenderPhone, &s.SenderAddress,
		&s.SupplierName, &s.ReceiverName, &s.ReceiverAddress, &s.ReceiverCompany,
		&s.ReceiverPhone, &s.Country, &s.Dimensions, &s.Weight, &s.Volume, &s.Quantity,
		&s.PaymentMethod, &s.TruckNumber, &s.ShippingWeek, &s.CurrentStatus,
		&s.CustomerID, &s.ManifestID, &s.CreatedAt, &s.UpdatedAt,
		&customerCode, &customerName, &customerPhone,
		&manifestName, &manifestStatus, &manifestStage, &manifestPlate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if s.CustomerID != nil && customerCode != nil {
		s.Customer = &CustomerRef{ID: *s.CustomerID, CustomerCode: *customerCode, Name: deref(customerName), PhoneNumber: deref(customerPhone)}
	}
	if s.ManifestID != nil && manifestName != nil {
		s.Manifest = &ManifestRef{ID: *s.ManifestID, Name: *manifestName, Status: deref(manifestStatus), TruckPlate: deref(manifestPlate)}
		if manifestStage != nil && *manifestStage != "" {
			stage := status.Code(*manifestStage)
			s.Manifest.CurrentStage = &stage
		}
	}
	return &s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func collectShipments(rows pgx.Rows) ([]Shipment, error) {
	defer rows.Close()
	var out []Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Get retrieves a shipment with its customer and manifest summaries.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Shipment, error) {
	s, err := scanShipment(r.pool.QueryRow(ctx, selectShipment+` WHERE s.id = $1`, id))
	return s, shared.Persistence("get shipment", err)
}

// GetByTrackingNumber retrieves a shipment by its exact tracking number.
func (r *PGRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*Shipment, error) {
	s, err := scanShipment(r.pool.QueryRow(ctx, selectShipment+` WHERE s.tracking_number = $1`, trackingNumber))
	return s, shared.Persistence("get shipment by tracking number", err)
}

// TrackingNumberExists reports whether a tracking number is taken.
func (r *PGRepository) TrackingNumberExists(ctx context.Context, trackingNumber string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipments WHERE tracking_number = $1)`, trackingNumber).Scan(&exists)
	return exists, shared.Persistence("check tracking number", err)
}

// List returns a filtered page of shipments, newest first, and the total match count.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Shipment, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != nil {
		add("s.current_status = $%d", string(*filter.Status))
	}
	if filter.Unassigned {
		where = append(where, "s.manifest_id IS NULL")
	}
	if filter.ManifestID != nil {
		add("s.manifest_id = $%d", *filter.ManifestID)
	}
	if filter.CustomerID != nil {
		add("s.customer_id = $%d", *filter.CustomerID)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(s.tracking_number ILIKE $%d OR s.receiver_name ILIKE $%d OR s.sender_name ILIKE $%d OR c.customer_code ILIKE $%d)", n, n, n, n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM shipments s LEFT JOIN customers c ON c.id = s.customer_id` + clause
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, shared.Persistence("count shipments", err)
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`%s%s ORDER BY s.created_at DESC, s.id DESC LIMIT $%d OFFSET $%d`, selectShipment, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, shared.Persistence("list shipments", err)
	}
	list, err := collectShipments(rows)
	if err != nil {
		return nil, 0, shared.Persistence("list shipments", err)
	}
	return list, total, nil
}

// ListByCustomer returns every shipment of a customer, newest first.
func (r *PGRepository) ListByCustomer(ctx context.Context, customerID int64) ([]Shipment, error) {
	rows, err := r.pool.Query(ctx, selectShipment+` WHERE s.customer_id = $1 ORDER BY s.created_at DESC, s.id DESC`, customerID)
	if err != nil {
		return nil, shared.Persistence("list customer shipments", err)
	}
	list, err := collectShipments(rows)
	return list, shared.Persistence("list customer shipments", err)
}

// ListByManifest returns the members of a manifest, newest first.
func (r *PGRepository) ListByManifest(ctx context.Context, manifestID int64) ([]Shipment, error) {
	rows, err := r.pool.Query(ctx, selectShipment+` WHERE s.manifest_id = $1 ORDER BY s.created_at DESC, s.id DESC`, manifestID)
	if err != nil {
		return nil, shared.Persistence("list manifest shipments", err)
	}
	list, err := collectShipments(rows)
	return list, shared.Persistence("list manifest shipments", err)
}

// Events loads the histories of the given shipments, newest first.
func (r *PGRepository) Events(ctx context.Context, shipmentIDs []int64) (map[int64][]Event, error) {
	out := make(map[int64][]Event, len(shipmentIDs))
	if len(shipmentIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, shipment_id, status, description, location, timestamp
		FROM shipment_events
		WHERE shipment_id = ANY($1)
		ORDER BY timestamp DESC, id DESC`, shipmentIDs)
	if err != nil {
		return nil, shared.Persistence("list shipment events", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ShipmentID, &e.Status, &e.Description, &e.Location, &e.Timestamp); err != nil {
			return nil, shared.Persistence("scan shipment event", err)
		}
		out[e.ShipmentID] = append(out[e.ShipmentID], e)
	}
	return out, shared.Persistence("list shipment events", rows.Err())
}

// ============================================================================
// TRANSACTIONAL WRITES
// ============================================================================

// Create inserts a shipment and returns its id.
func (t *txRepo) Create(ctx context.Context, s Shipment) (int64, error) {
	const query = `
		INSERT INTO shipments (
			tracking_number, sender_name, sender_phone, sender_address, supplier_name,
			receiver_name, receiver_address, receiver_company, receiver_phone, country,
			dimensions, weight, volume, quantity, payment_method, truck_number,
			shipping_week, current_status, customer_id, manifest_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $21)
		RETURNING id`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		s.TrackingNumber, s.SenderName, s.SenderPhone, s.SenderAddress, s.SupplierName,
		s.ReceiverName, s.ReceiverAddress, s.ReceiverCompany, s.ReceiverPhone, s.Country,
		s.Dimensions, s.Weight, s.Volume, s.Quantity, s.PaymentMethod, s.TruckNumber,
		s.ShippingWeek, string(s.CurrentStatus), s.CustomerID, s.ManifestID, s.CreatedAt,
	).Scan(&id)
	if shared.IsUniqueViolation(err) {
		return 0, ErrDuplicateTracking
	}
	return id, shared.Persistence("create shipment", err)
}

// Update applies column updates to one shipment.
func (t *txRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	query, args := db.BuildUpdate("shipments", id, updates, time.Now().UTC())
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return shared.Persistence("update shipment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendEvents bulk inserts history entries.
func (t *txRepo) AppendEvents(ctx context.Context, events []Event) error {
	return InsertEvents(ctx, t.tx, events)
}

// DeleteEvents removes the whole history of a shipment.
func (t *txRepo) DeleteEvents(ctx context.Context, shipmentID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM shipment_events WHERE shipment_id = $1`, shipmentID)
	if err != nil {
		return 0, shared.Persistence("delete shipment events", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the shipment row.
func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM shipments WHERE id = $1`, id)
	if err != nil {
		return shared.Persistence("delete shipment", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertEvents writes events with COPY. Other packages that move shipments
// in bulk (manifest cascades) share it so every history row has one shape.
func InsertEvents(ctx context.Context, q pgx.Tx, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		rows = append(rows, []any{e.ShipmentID, string(e.Status), e.Description, e.Location, e.Timestamp})
	}
	_, err := q.CopyFrom(ctx,
		pgx.Identifier{"shipment_events"},
		[]string{"shipment_id", "status", "description", "location", "timestamp"},
		pgx.CopyFromRows(rows),
	)
	return shared.Persistence("insert shipment events", err)
}

var (
	_ Repository   = (*PGRepository)(nil)
	_ TxRepository = (*txRepo)(nil)
)
