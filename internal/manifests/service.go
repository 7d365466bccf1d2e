package manifests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

// ShipmentLister loads the members of a manifest for display.
type ShipmentLister interface {
	ListByManifest(ctx context.Context, manifestID int64) ([]shipments.Shipment, error)
}

// Service implements the manifest assignment engine.
type Service struct {
	repo    Repository
	members ShipmentLister
	audit   shared.Auditor
	logger  *slog.Logger
	events  shipments.EventCounter
	changes shipments.ChangeListener
	policy  status.Policy
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, members ShipmentLister, audit shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		members: members,
		audit:   audit,
		logger:  logger,
		policy:  status.Permissive{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithPolicy sets the status policy applied to cascades and stage snaps.
func (s *Service) WithPolicy(p status.Policy) *Service {
	if p != nil {
		s.policy = p
	}
	return s
}

// WithEventCounter reports appended events to c.
func (s *Service) WithEventCounter(c shipments.EventCounter) *Service {
	s.events = c
	return s
}

// WithChangeListener notifies l after writes that touch shipments.
func (s *Service) WithChangeListener(l shipments.ChangeListener) *Service {
	s.changes = l
	return s
}

// Create opens a new manifest. An empty name becomes the current ISO week.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Manifest, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := shared.Validate(in); err != nil {
		return nil, err
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, shared.Validationf("end date before start date")
	}
	now := s.now()
	name := shared.UpperTR(in.Name)
	if name == "" {
		name = WeekLabel(now)
	}
	m, err := s.repo.Create(ctx, Manifest{
		Name:       name,
		Status:     status.ManifestOpen,
		TruckPlate: shared.UpperTR(in.TruckPlate),
		Notes:      shared.UpperTR(in.Notes),
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("create manifest: %w", err)
	}
	return m, nil
}

// UpdateStage writes the manifest fields and, when a stage is given, moves
// every member not yet at that stage to it with one event each. The two
// steps are independent: a cascade failure is returned alongside the
// updated manifest.
func (s *Service) UpdateStage(ctx context.Context, id int64, patch Patch) (*Manifest, CascadeResult, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, CascadeResult{}, err
	}
	if err := shared.Validate(patch); err != nil {
		return nil, CascadeResult{}, err
	}
	updates, stage, err := patchUpdates(patch)
	if err != nil {
		return nil, CascadeResult{}, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, CascadeResult{}, err
	}
	m, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, CascadeResult{}, fmt.Errorf("update manifest: %w", err)
	}
	if stage == nil {
		return m, CascadeResult{}, nil
	}
	result, err := s.cascade(ctx, id, *stage)
	if err != nil {
		return m, result, fmt.Errorf("cascade stage %s: %w", *stage, err)
	}
	s.logger.Info("manifest stage cascaded",
		slog.Int64("manifest_id", id),
		slog.String("stage", string(*stage)),
		slog.Int("matched", result.Matched),
		slog.Int("updated", result.Updated),
	)
	return m, result, nil
}

func patchUpdates(p Patch) (map[string]any, *status.Code, error) {
	updates := make(map[string]any)
	var stage *status.Code
	if p.Status != nil {
		st, err := status.ParseManifestStatus(*p.Status)
		if err != nil {
			return nil, nil, err
		}
		updates["status"] = string(st)
	}
	if p.CurrentStage != nil {
		if strings.TrimSpace(*p.CurrentStage) == "" {
			updates["current_stage"] = nil
		} else {
			code, err := status.ParseStage(*p.CurrentStage)
			if err != nil {
				return nil, nil, err
			}
			updates["current_stage"] = string(code)
			stage = &code
		}
	}
	if p.TruckPlate != nil {
		updates["truck_plate"] = shared.UpperTR(*p.TruckPlate)
	}
	if p.Notes != nil {
		updates["notes"] = shared.UpperTR(*p.Notes)
	}
	if p.StartDate != nil {
		updates["start_date"] = *p.StartDate
	}
	if p.EndDate != nil {
		updates["end_date"] = *p.EndDate
	}
	return updates, stage, nil
}

// cascade moves the members of manifest id that are not at stage. The bulk
// status write and its events commit together.
func (s *Service) cascade(ctx context.Context, id int64, stage status.Code) (CascadeResult, error) {
	result := CascadeResult{Stage: stage}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		members, err := tx.MemberIDs(ctx, id)
		if err != nil {
			return err
		}
		movable, rejected, err := s.admit(ctx, tx, members, stage)
		if err != nil {
			return err
		}
		updated, err := tx.SetStatus(ctx, movable, stage)
		if err != nil {
			return err
		}
		events := shipments.StatusEvents(updated, stage, s.now())
		if err := tx.AppendEvents(ctx, events); err != nil {
			return err
		}
		result.Matched = len(members)
		result.Updated = len(updated)
		result.Rejected = rejected
		result.Events = len(events)
		return nil
	})
	if err != nil {
		return CascadeResult{Stage: stage}, err
	}
	s.countEvents("manifest_stage", result.Events)
	if result.Updated > 0 {
		s.changed(ctx)
		s.record(ctx, shared.EntityLog(ctx, shared.AuditStageChange, "manifest", id, map[string]any{
			"stage":   string(stage),
			"updated": result.Updated,
		}))
	}
	return result, nil
}

// admit filters ids down to the shipments the policy lets move to stage.
// Shipments already at stage are kept; SetStatus skips them.
func (s *Service) admit(ctx context.Context, tx TxRepository, ids []int64, stage status.Code) ([]int64, int, error) {
	if _, ok := s.policy.(status.Permissive); ok || len(ids) == 0 {
		return ids, 0, nil
	}
	current, err := tx.Statuses(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	movable := make([]int64, 0, len(ids))
	rejected := 0
	for _, id := range ids {
		from, ok := current[id]
		if ok && from != stage {
			if err := s.policy.Check(from, stage); err != nil {
				rejected++
				continue
			}
		}
		movable = append(movable, id)
	}
	if rejected > 0 {
		s.logger.Info("status policy held shipments back",
			slog.String("stage", string(stage)),
			slog.Int("rejected", rejected),
		)
	}
	return movable, rejected, nil
}

// AssignShipments moves shipments into manifest id. When the manifest has a
// stage, assigned shipments not at it are snapped to it with one event each.
func (s *Service) AssignShipments(ctx context.Context, id int64, shipmentIDs []int64) (int64, error) {
	if err := shared.Authorize(ctx); err != nil {
		return 0, err
	}
	if len(shipmentIDs) == 0 {
		return 0, shared.Validationf("no shipments provided")
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	var assigned []int64
	var events int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids, err := tx.Assign(ctx, id, shipmentIDs)
		if err != nil {
			return err
		}
		assigned = ids
		if m.CurrentStage == nil {
			return nil
		}
		movable, _, err := s.admit(ctx, tx, assigned, *m.CurrentStage)
		if err != nil {
			return err
		}
		updated, err := tx.SetStatus(ctx, movable, *m.CurrentStage)
		if err != nil {
			return err
		}
		evs := shipments.StatusEvents(updated, *m.CurrentStage, s.now())
		events = len(evs)
		return tx.AppendEvents(ctx, evs)
	})
	if err != nil {
		return 0, fmt.Errorf("assign shipments: %w", err)
	}
	s.countEvents("manifest_assign", events)
	s.changed(ctx)
	return int64(len(assigned)), nil
}

// UnassignShipments removes shipments from manifest id. Shipments that are
// not in the manifest are ignored.
func (s *Service) UnassignShipments(ctx context.Context, id int64, shipmentIDs []int64) (int64, error) {
	if err := shared.Authorize(ctx); err != nil {
		return 0, err
	}
	if len(shipmentIDs) == 0 {
		return 0, shared.Validationf("no shipments provided")
	}
	var n int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		n, err = tx.Unassign(ctx, id, shipmentIDs)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("unassign shipments: %w", err)
	}
	s.changed(ctx)
	return n, nil
}

// SyncMembership makes the manifest contain exactly desired. Adding and
// removing are independent; both run and their errors are joined.
func (s *Service) SyncMembership(ctx context.Context, id int64, desired []int64) (MembershipResult, error) {
	if err := shared.Authorize(ctx); err != nil {
		return MembershipResult{}, err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return MembershipResult{}, err
	}
	current, err := s.repo.MemberIDs(ctx, id)
	if err != nil {
		return MembershipResult{}, fmt.Errorf("sync membership: %w", err)
	}
	add, remove := diff(current, desired)

	var result MembershipResult
	var addErr, removeErr error
	if len(add) > 0 {
		result.Added, addErr = s.AssignShipments(ctx, id, add)
	}
	if len(remove) > 0 {
		result.Removed, removeErr = s.UnassignShipments(ctx, id, remove)
	}
	return result, errors.Join(addErr, removeErr)
}

// Delete orphans the members of manifest id and removes it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := shared.Authorize(ctx); err != nil {
		return err
	}
	var orphaned int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.Orphan(ctx, id)
		if err != nil {
			return err
		}
		orphaned = n
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete manifest: %w", err)
	}
	s.record(ctx, shared.EntityLog(ctx, shared.AuditDelete, "manifest", id, map[string]any{"orphaned": orphaned}))
	return nil
}

// Get returns a manifest with its shipments.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	list, err := s.members.ListByManifest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load manifest shipments: %w", err)
	}
	if list == nil {
		list = []shipments.Shipment{}
	}
	return &Detail{Manifest: *m, Shipments: list}, nil
}

// List returns every manifest with shipment totals.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}
	return list, nil
}

// ResyncStages re-runs the cascade for every open manifest with a stage so
// members that drifted are brought back in line. It runs without a user and
// keeps going past individual failures.
func (s *Service) ResyncStages(ctx context.Context) (ResyncReport, error) {
	list, err := s.repo.ListOpenStaged(ctx)
	if err != nil {
		return ResyncReport{}, fmt.Errorf("resync stages: %w", err)
	}
	var (
		report ResyncReport
		errs   []error
	)
	for _, m := range list {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Manifests++
		result, err := s.cascade(ctx, m.ID, *m.CurrentStage)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("manifest %d: %w", m.ID, err))
			continue
		}
		report.Updated += result.Updated
	}
	return report, errors.Join(errs...)
}

func (s *Service) countEvents(source string, n int) {
	if s.events != nil && n > 0 {
		s.events.EventsAppended(source, n)
	}
}

func (s *Service) changed(ctx context.Context) {
	if s.changes != nil {
		s.changes.ShipmentsChanged(ctx)
	}
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("entity", log.Entity), slog.Any("error", err))
	}
}
