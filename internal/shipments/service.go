package shipments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mftcargo/tracker/internal/customers"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/status"
)

// CustomerDirectory is the part of the customer service intake and edits need.
type CustomerDirectory interface {
	Upsert(ctx context.Context, in customers.UpsertInput) (*customers.Customer, error)
	Update(ctx context.Context, id int64, patch customers.Patch) (*customers.Customer, error)
	GetByCode(ctx context.Context, code string) (*customers.Customer, error)
}

// EventCounter is told how many history rows an operation appended.
type EventCounter interface {
	EventsAppended(source string, n int)
}

// ChangeListener is told after shipment writes commit.
type ChangeListener interface {
	ShipmentsChanged(ctx context.Context)
}

// Service orchestrates the shipment lifecycle.
type Service struct {
	repo      Repository
	directory CustomerDirectory
	policy    status.Policy
	audit     shared.Auditor
	logger    *slog.Logger
	events    EventCounter
	listener  ChangeListener

	generate TrackingGenerator
	now      func() time.Time
}

// NewService constructs a Service. A nil policy is permissive.
func NewService(repo Repository, directory CustomerDirectory, policy status.Policy, audit shared.Auditor, logger *slog.Logger) *Service {
	if policy == nil {
		policy = status.Permissive{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		directory: directory,
		policy:    policy,
		audit:     audit,
		logger:    logger,
		generate:  RandomTrackingNumber,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithTrackingGenerator replaces the random tracking number source.
func (s *Service) WithTrackingGenerator(gen TrackingGenerator) *Service {
	s.generate = gen
	return s
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithEventCounter reports appended events to c.
func (s *Service) WithEventCounter(c EventCounter) *Service {
	s.events = c
	return s
}

// WithChangeListener notifies l after every committed write.
func (s *Service) WithChangeListener(l ChangeListener) *Service {
	s.listener = l
	return s
}

// Create registers a shipment at the Turkish central depot.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Detail, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := shared.Validate(in); err != nil {
		return nil, err
	}

	now := s.now()
	shipment := Shipment{
		SenderName:      shared.UpperTR(in.SenderName),
		SenderPhone:     strings.TrimSpace(in.SenderPhone),
		SenderAddress:   shared.UpperTR(in.SenderAddress),
		SupplierName:    shared.UpperTR(in.SupplierName),
		ReceiverName:    shared.UpperTR(in.ReceiverName),
		ReceiverAddress: shared.UpperTR(in.ReceiverAddress),
		ReceiverCompany: shared.UpperTR(in.ReceiverCompany),
		ReceiverPhone:   strings.TrimSpace(in.ReceiverPhone),
		Country:         shared.UpperTR(in.Country),
		Dimensions:      strings.TrimSpace(in.Dimensions),
		Weight:          in.Weight,
		Volume:          in.Volume,
		Quantity:        in.Quantity,
		PaymentMethod:   shared.UpperTR(in.PaymentMethod),
		TruckNumber:     shared.UpperTR(in.TruckNumber),
		ShippingWeek:    strings.TrimSpace(in.ShippingWeek),
		CurrentStatus:   status.CentralDepotTR,
		ManifestID:      in.ManifestID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if boxes := measured(in.Boxes); len(boxes) > 0 {
		qty, weight, volume := Totals(boxes)
		shipment.Dimensions = EncodeDimensions(boxes)
		shipment.Quantity = qty
		shipment.Weight = &weight
		shipment.Volume = &volume
	}
	if shipment.Quantity < 1 {
		shipment.Quantity = 1
	}

	if code := strings.TrimSpace(in.CustomerCode); code != "" {
		customer, err := s.directory.Upsert(ctx, customers.UpsertInput{
			CustomerCode: code,
			Name:         shipment.ReceiverName,
			PhoneNumber:  optional(in.PhoneNumber),
			Country:      optional(shipment.Country),
			Address:      optional(shipment.ReceiverAddress),
		})
		if err != nil {
			return nil, fmt.Errorf("resolve customer: %w", err)
		}
		shipment.CustomerID = &customer.ID
	}

	for {
		trackingNumber, err := uniqueTrackingNumber(ctx, s.generate, s.repo.TrackingNumberExists)
		if err != nil {
			return nil, err
		}
		shipment.TrackingNumber = trackingNumber
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.Create(ctx, shipment)
			if err != nil {
				return err
			}
			shipment.ID = id
			return tx.AppendEvents(ctx, []Event{{
				ShipmentID:  id,
				Status:      status.CentralDepotTR,
				Description: EntryDescription,
				Location:    EntryLocation,
				Timestamp:   now,
			}})
		})
		if errors.Is(err, ErrDuplicateTracking) {
			s.logger.Warn("tracking number raced, regenerating", slog.String("tracking_number", trackingNumber))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create shipment: %w", err)
		}
		break
	}
	s.countEvents("intake", 1)
	s.changed(ctx)
	s.logger.Info("shipment created", slog.Int64("id", shipment.ID), slog.String("tracking_number", shipment.TrackingNumber))
	return s.detail(ctx, shipment.ID)
}

// Update applies patch to shipment id. A status change appends exactly one
// event; a phone number is propagated to the linked customer.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (*Detail, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := shared.Validate(patch); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := patch.updates()
	var event *Event
	if patch.CurrentStatus != nil {
		next, err := status.Parse(*patch.CurrentStatus)
		if err != nil {
			return nil, err
		}
		if next != current.CurrentStatus {
			if err := s.policy.Check(current.CurrentStatus, next); err != nil {
				return nil, err
			}
			updates["current_status"] = string(next)
			e := StatusEvent(id, next, s.now())
			event = &e
		}
	}

	if len(updates) > 0 {
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := tx.Update(ctx, id, updates); err != nil {
				return err
			}
			if event == nil {
				return nil
			}
			return tx.AppendEvents(ctx, []Event{*event})
		})
		if err != nil {
			return nil, fmt.Errorf("update shipment: %w", err)
		}
		if event != nil {
			s.countEvents("status_change", 1)
		}
		s.changed(ctx)
	}

	if patch.PhoneNumber != nil && current.CustomerID != nil {
		phone := strings.TrimSpace(*patch.PhoneNumber)
		if _, err := s.directory.Update(ctx, *current.CustomerID, customers.Patch{PhoneNumber: &phone}); err != nil {
			return nil, fmt.Errorf("propagate customer phone: %w", err)
		}
	}
	return s.detail(ctx, id)
}

// UpdateStatus moves one shipment to code. It is the single-shipment path
// used by depot approval.
func (s *Service) UpdateStatus(ctx context.Context, id int64, code status.Code) (*Detail, error) {
	raw := string(code)
	return s.Update(ctx, id, Patch{CurrentStatus: &raw})
}

// Delete removes the history of a shipment and then the shipment itself.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := shared.Authorize(ctx); err != nil {
		return err
	}
	var removed int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.DeleteEvents(ctx, id)
		if err != nil {
			return err
		}
		removed = n
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete shipment: %w", err)
	}
	s.record(ctx, shared.EntityLog(ctx, shared.AuditDelete, "shipment", id, map[string]any{"events": removed}))
	s.changed(ctx)
	return nil
}

// Get returns the admin detail view of one shipment.
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	return s.detail(ctx, id)
}

// List returns one page of shipments matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Shipment, shared.Pagination, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, shared.Pagination{}, err
	}
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("list shipments: %w", err)
	}
	return list, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Track is the public lookup by tracking number. The customer is not part
// of the public view.
func (s *Service) Track(ctx context.Context, trackingNumber string) (*Detail, error) {
	normalized := NormalizeTrackingNumber(trackingNumber)
	if normalized == "" {
		return nil, shared.Validationf("tracking number required")
	}
	shipment, err := s.repo.GetByTrackingNumber(ctx, normalized)
	if err != nil {
		return nil, err
	}
	shipment.Customer = nil
	events, err := s.repo.Events(ctx, []int64{shipment.ID})
	if err != nil {
		return nil, err
	}
	return &Detail{Shipment: *shipment, Events: nonNil(events[shipment.ID])}, nil
}

// TrackByCustomer is the public lookup by customer code and phone number.
// The phone number must match the stored one exactly.
func (s *Service) TrackByCustomer(ctx context.Context, code, phone string) ([]Detail, error) {
	if strings.TrimSpace(code) == "" || phone == "" {
		return nil, shared.Validationf("customer code and phone number required")
	}
	customer, err := s.directory.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if customer.PhoneNumber == nil || *customer.PhoneNumber != phone {
		return nil, customers.ErrPhoneMismatch
	}
	list, err := s.repo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(list))
	for _, sh := range list {
		ids = append(ids, sh.ID)
	}
	events, err := s.repo.Events(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Detail, 0, len(list))
	for _, sh := range list {
		sh.Customer = nil
		out = append(out, Detail{Shipment: sh, Events: nonNil(events[sh.ID])})
	}
	return out, nil
}

func (s *Service) detail(ctx context.Context, id int64) (*Detail, error) {
	shipment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.Events(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return &Detail{Shipment: *shipment, Events: nonNil(events[id])}, nil
}

func (s *Service) countEvents(source string, n int) {
	if s.events != nil && n > 0 {
		s.events.EventsAppended(source, n)
	}
}

func (s *Service) changed(ctx context.Context) {
	if s.listener != nil {
		s.listener.ShipmentsChanged(ctx)
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

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func nonNil(events []Event) []Event {
	if events == nil {
		return []Event{}
	}
	return events
}
