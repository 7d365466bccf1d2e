package depot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mftcargo/tracker/internal/manifests"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

// ManifestReader loads a manifest with its shipments.
type ManifestReader interface {
	Get(ctx context.Context, id int64) (*manifests.Detail, error)
}

// StatusUpdater moves one shipment to a new status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, code status.Code) (*shipments.Detail, error)
}

// ScanCounter is told the outcome of every scan.
type ScanCounter interface {
	ScanRecorded(outcome string)
}

// Board is the operator view of the selected manifest.
type Board struct {
	ManifestID   *int64      `json:"manifestId,omitempty"`
	ManifestName string      `json:"manifestName,omitempty"`
	Groups       []GroupView `json:"groups"`
	LastScanned  *ItemView   `json:"lastScanned,omitempty"`
	Scanned      int         `json:"scanned"`
	Expected     int         `json:"expected"`
	Complete     bool        `json:"complete"`
}

// GroupView is one customer bucket with progress.
type GroupView struct {
	Key          string     `json:"key"`
	CustomerName string     `json:"customerName"`
	CustomerCode string     `json:"customerCode"`
	Scanned      int        `json:"scanned"`
	Expected     int        `json:"expected"`
	Complete     bool       `json:"complete"`
	Shipments    []ItemView `json:"shipments"`
}

// ItemView is one shipment with progress.
type ItemView struct {
	ID             int64  `json:"id"`
	TrackingNumber string `json:"trackingNumber"`
	ReceiverName   string `json:"receiverName,omitempty"`
	Scanned        int    `json:"scanned"`
	Expected       int    `json:"expected"`
	Complete       bool   `json:"complete"`
}

// ApproveFailure records a shipment whose status update failed.
type ApproveFailure struct {
	ShipmentID int64  `json:"shipmentId"`
	Error      string `json:"error"`
}

// ApproveResult reports a partial-commit approval.
type ApproveResult struct {
	Approved    int              `json:"approved"`
	ApprovedIDs []int64          `json:"approvedIds"`
	Skipped     int              `json:"skipped"`
	Failed      []ApproveFailure `json:"failed"`
}

// Service runs depot unloading sessions.
type Service struct {
	store     Store
	manifests ManifestReader
	shipments StatusUpdater
	audit     shared.Auditor
	logger    *slog.Logger
	scans     ScanCounter
}

// NewService constructs a Service.
func NewService(store Store, reader ManifestReader, updater StatusUpdater, audit shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, manifests: reader, shipments: updater, audit: audit, logger: logger}
}

// WithScanCounter reports scan outcomes to c.
func (s *Service) WithScanCounter(c ScanCounter) *Service {
	s.scans = c
	return s
}

// session resolves the state key of the calling admin.
func session(ctx context.Context) (string, error) {
	p := shared.PrincipalFromContext(ctx)
	if p == nil {
		return "", shared.ErrUnauthorized
	}
	if p.SessionID != "" {
		return p.SessionID, nil
	}
	return fmt.Sprintf("user:%d", p.UserID), nil
}

func (s *Service) load(ctx context.Context) (string, *Tracker, error) {
	key, err := session(ctx)
	if err != nil {
		return "", nil, err
	}
	state, err := s.store.Load(ctx, key)
	if err != nil {
		return "", nil, err
	}
	return key, NewTracker(state), nil
}

// Select starts counting against manifest id, discarding previous counts.
func (s *Service) Select(ctx context.Context, manifestID int64) (*Board, error) {
	key, tracker, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	detail, err := s.manifests.Get(ctx, manifestID)
	if err != nil {
		return nil, err
	}
	tracker.Select(manifestID)
	if err := s.store.Save(ctx, key, tracker.State()); err != nil {
		return nil, err
	}
	return board(tracker, detail), nil
}

// Scan records one scanned code.
func (s *Service) Scan(ctx context.Context, code string) (ScanResult, error) {
	key, tracker, err := s.load(ctx)
	if err != nil {
		return ScanResult{}, err
	}
	var list []shipments.Shipment
	if id := tracker.State().ManifestID; id != nil {
		detail, err := s.manifests.Get(ctx, *id)
		if err != nil {
			return ScanResult{}, err
		}
		list = detail.Shipments
	}
	result := tracker.Scan(code, list)
	if s.scans != nil {
		s.scans.ScanRecorded(string(result.Outcome))
	}
	if result.Outcome == Accepted {
		if err := s.store.Save(ctx, key, tracker.State()); err != nil {
			return ScanResult{}, err
		}
	}
	return result, nil
}

// Board returns the grouped progress of the selected manifest.
func (s *Service) Board(ctx context.Context) (*Board, error) {
	_, tracker, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	id := tracker.State().ManifestID
	if id == nil {
		return &Board{Groups: []GroupView{}}, nil
	}
	detail, err := s.manifests.Get(ctx, *id)
	if err != nil {
		return nil, err
	}
	return board(tracker, detail), nil
}

// Approve moves every shipment whose scanned count equals its quantity to
// DEPOT_RECEIVED, one update at a time. Failures are collected and do not
// stop the rest. Counts are reset afterwards whatever the outcome.
func (s *Service) Approve(ctx context.Context) (ApproveResult, error) {
	key, tracker, err := s.load(ctx)
	if err != nil {
		return ApproveResult{}, err
	}
	id := tracker.State().ManifestID
	if id == nil {
		return ApproveResult{}, shared.Validationf("select a manifest first")
	}
	detail, err := s.manifests.Get(ctx, *id)
	if err != nil {
		return ApproveResult{}, err
	}

	result := ApproveResult{ApprovedIDs: []int64{}, Failed: []ApproveFailure{}}
	ready := tracker.Ready(detail.Shipments)
	for _, sh := range detail.Shipments {
		if n := tracker.Count(sh.ID); n > 0 && n != sh.Quantity {
			result.Skipped++
		}
	}
	for _, sh := range ready {
		if _, err := s.shipments.UpdateStatus(ctx, sh.ID, status.DepotReceived); err != nil {
			s.logger.Warn("depot approval failed", slog.Int64("shipment_id", sh.ID), slog.Any("error", err))
			result.Failed = append(result.Failed, ApproveFailure{ShipmentID: sh.ID, Error: err.Error()})
			continue
		}
		result.Approved++
		result.ApprovedIDs = append(result.ApprovedIDs, sh.ID)
	}

	tracker.Reset()
	if err := s.store.Save(ctx, key, tracker.State()); err != nil {
		return result, err
	}
	if s.audit != nil && result.Approved > 0 {
		log := shared.EntityLog(ctx, shared.AuditDepotApprove, "manifest", *id, map[string]any{
			"approved": result.ApprovedIDs,
			"failed":   len(result.Failed),
		})
		if err := s.audit.Record(ctx, log); err != nil {
			s.logger.Warn("audit record failed", slog.String("entity", log.Entity), slog.Any("error", err))
		}
	}
	s.logger.Info("depot approval finished",
		slog.Int64("manifest_id", *id),
		slog.Int("approved", result.Approved),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// Clear forgets the session entirely.
func (s *Service) Clear(ctx context.Context) error {
	key, err := session(ctx)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, key)
}

func board(t *Tracker, detail *manifests.Detail) *Board {
	id := detail.ID
	b := &Board{ManifestID: &id, ManifestName: detail.Name, Groups: []GroupView{}, Complete: len(detail.Shipments) > 0}
	last := t.State().LastScanned
	for _, g := range Groups(detail.Shipments) {
		view := GroupView{Key: g.Key, CustomerName: g.CustomerName, CustomerCode: g.CustomerCode, Complete: t.GroupComplete(g)}
		for _, sh := range g.Shipments {
			item := ItemView{
				ID:             sh.ID,
				TrackingNumber: sh.TrackingNumber,
				ReceiverName:   sh.ReceiverName,
				Scanned:        t.Count(sh.ID),
				Expected:       sh.Quantity,
				Complete:       t.ShipmentComplete(sh),
			}
			view.Scanned += item.Scanned
			view.Expected += item.Expected
			view.Shipments = append(view.Shipments, item)
			if last != nil && *last == sh.ID {
				lastItem := item
				b.LastScanned = &lastItem
			}
		}
		b.Scanned += view.Scanned
		b.Expected += view.Expected
		b.Complete = b.Complete && view.Complete
		b.Groups = append(b.Groups, view)
	}
	return b
}
