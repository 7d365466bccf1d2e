package manifests

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mftcargo/tracker/internal/platform/db"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

// Repository defines manifest persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (*Manifest, error)
	List(ctx context.Context) ([]Summary, error)
	ListOpenStaged(ctx context.Context) ([]Manifest, error)
	MemberIDs(ctx context.Context, id int64) ([]int64, error)
	Create(ctx context.Context, m Manifest) (*Manifest, error)
	Update(ctx context.Context, id int64, updates map[string]any) (*Manifest, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the bulk shipment writes a manifest drives.
type TxRepository interface {
	MemberIDs(ctx context.Context, id int64) ([]int64, error)
	// Statuses locks the given shipments and returns their current status.
	Statuses(ctx context.Context, ids []int64) (map[int64]status.Code, error)
	// SetStatus moves the given shipments to code, skipping those already
	// there, and returns the ids it changed.
	SetStatus(ctx context.Context, ids []int64, code status.Code) ([]int64, error)
	Assign(ctx context.Context, manifestID int64, ids []int64) ([]int64, error)
	Unassign(ctx context.Context, manifestID int64, ids []int64) (int64, error)
	Orphan(ctx context.Context, manifestID int64) (int64, error)
	AppendEvents(ctx context.Context, events []shipments.Event) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository provides PostgreSQL backed persistence for manifests.
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

const manifestColumns = `id, name, status, current_stage, truck_plate, notes, start_date, end_date, created_at, updated_at`

func scanManifest(row pgx.Row, extra ...any) (*Manifest, error) {
	var (
		m     Manifest
		stage *string
	)
	dest := append([]any{&m.ID, &m.Name, &m.Status, &stage, &m.TruckPlate, &m.Notes, &m.StartDate, &m.EndDate, &m.CreatedAt, &m.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if stage != nil && *stage != "" {
		code := status.Code(*stage)
		m.CurrentStage = &code
	}
	return &m, nil
}

// Get retrieves a manifest by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Manifest, error) {
	m, err := scanManifest(r.pool.QueryRow(ctx, `SELECT `+manifestColumns+` FROM manifests WHERE id = $1`, id))
	return m, shared.Persistence("get manifest", err)
}

// List returns every manifest with shipment aggregates, newest first.
func (r *PGRepository) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.name, m.status, m.current_stage, m.truck_plate, m.notes,
		       m.start_date, m.end_date, m.created_at, m.updated_at,
		       COUNT(s.id), COALESCE(SUM(s.quantity), 0),
		       COALESCE(SUM(s.weight), 0)::float8, COALESCE(SUM(s.volume), 0)::float8
		FROM manifests m
		LEFT JOIN shipments s ON s.manifest_id = m.id
		GROUP BY m.id
		ORDER BY m.created_at DESC, m.id DESC`)
	if err != nil {
		return nil, shared.Persistence("list manifests", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		m, err := scanManifest(rows, &s.ShipmentCount, &s.TotalQuantity, &s.TotalWeight, &s.TotalVolume)
		if err != nil {
			return nil, shared.Persistence("scan manifest", err)
		}
		s.Manifest = *m
		out = append(out, s)
	}
	return out, shared.Persistence("list manifests", rows.Err())
}

// ListOpenStaged returns OPEN manifests that carry a current stage.
func (r *PGRepository) ListOpenStaged(ctx context.Context) ([]Manifest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+manifestColumns+` FROM manifests WHERE status = $1 AND current_stage IS NOT NULL ORDER BY id`, string(status.ManifestOpen))
	if err != nil {
		return nil, shared.Persistence("list staged manifests", err)
	}
	defer rows.Close()
	var out []Manifest
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, shared.Persistence("scan manifest", err)
		}
		out = append(out, *m)
	}
	return out, shared.Persistence("list staged manifests", rows.Err())
}

// MemberIDs returns the ids of the shipments in a manifest.
func (r *PGRepository) MemberIDs(ctx context.Context, id int64) ([]int64, error) {
	return memberIDs(ctx, r.pool, id)
}

func memberIDs(ctx context.Context, q db.Querier, id int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT id FROM shipments WHERE manifest_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, shared.Persistence("list manifest members", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return ids, shared.Persistence("list manifest members", err)
}

// Create inserts a manifest.
func (r *PGRepository) Create(ctx context.Context, m Manifest) (*Manifest, error) {
	created, err := scanManifest(r.pool.QueryRow(ctx, `
		INSERT INTO manifests (name, status, current_stage, truck_plate, notes, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+manifestColumns,
		m.Name, string(m.Status), stageArg(m.CurrentStage), m.TruckPlate, m.Notes, m.StartDate, m.EndDate, m.CreatedAt,
	))
	return created, shared.Persistence("create manifest", err)
}

// Update applies column updates and returns the stored row.
func (r *PGRepository) Update(ctx context.Context, id int64, updates map[string]any) (*Manifest, error) {
	query, args := db.BuildUpdate("manifests", id, updates, time.Now().UTC())
	m, err := scanManifest(r.pool.QueryRow(ctx, query+` RETURNING `+manifestColumns, args...))
	return m, shared.Persistence("update manifest", err)
}

func stageArg(code *status.Code) any {
	if code == nil {
		return nil
	}
	return string(*code)
}

func (t *txRepo) MemberIDs(ctx context.Context, id int64) ([]int64, error) {
	return memberIDs(ctx, t.tx, id)
}

func (t *txRepo) Statuses(ctx context.Context, ids []int64) (map[int64]status.Code, error) {
	out := make(map[int64]status.Code, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := t.tx.Query(ctx, `SELECT id, current_status FROM shipments WHERE id = ANY($1) FOR UPDATE`, ids)
	if err != nil {
		return nil, shared.Persistence("load shipment statuses", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			code string
		)
		if err := rows.Scan(&id, &code); err != nil {
			return nil, shared.Persistence("load shipment statuses", err)
		}
		out[id] = status.Code(code)
	}
	return out, shared.Persistence("load shipment statuses", rows.Err())
}

func (t *txRepo) SetStatus(ctx context.Context, ids []int64, code status.Code) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx, `
		UPDATE shipments SET current_status = $1, updated_at = $2
		WHERE id = ANY($3) AND current_status <> $1
		RETURNING id`, string(code), time.Now().UTC(), ids)
	if err != nil {
		return nil, shared.Persistence("set shipment status", err)
	}
	updated, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return updated, shared.Persistence("set shipment status", err)
}

func (t *txRepo) Assign(ctx context.Context, manifestID int64, ids []int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		UPDATE shipments SET manifest_id = $1, updated_at = $2
		WHERE id = ANY($3)
		RETURNING id`, manifestID, time.Now().UTC(), ids)
	if err != nil {
		return nil, shared.Persistence("assign shipments", err)
	}
	assigned, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	return assigned, shared.Persistence("assign shipments", err)
}

func (t *txRepo) Unassign(ctx context.Context, manifestID int64, ids []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE shipments SET manifest_id = NULL, updated_at = $2
		WHERE manifest_id = $1 AND id = ANY($3)`, manifestID, time.Now().UTC(), ids)
	if err != nil {
		return 0, shared.Persistence("unassign shipments", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) Orphan(ctx context.Context, manifestID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE shipments SET manifest_id = NULL, updated_at = $2 WHERE manifest_id = $1`, manifestID, time.Now().UTC())
	if err != nil {
		return 0, shared.Persistence("orphan shipments", err)
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) AppendEvents(ctx context.Context, events []shipments.Event) error {
	return shipments.InsertEvents(ctx, t.tx, events)
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM manifests WHERE id = $1`, id)
	if err != nil {
		return shared.Persistence("delete manifest", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var (
	_ Repository   = (*PGRepository)(nil)
	_ TxRepository = (*txRepo)(nil)
)
