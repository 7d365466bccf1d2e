package finance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mftcargo/tracker/internal/shared"
)

// Service books income and expense entries.
type Service struct {
	repo   Repository
	audit  shared.Auditor
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source used for default dates.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create books a transaction. Category and description are upper-cased and
// the date defaults to now.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Transaction, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := shared.Validate(in); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, shared.Validationf("amount must be positive")
	}
	t := Transaction{
		Type:        Type(in.Type),
		Category:    shared.UpperTR(in.Category),
		Amount:      in.Amount.Round(2),
		Currency:    Currency(in.Currency),
		Description: shared.UpperTR(in.Description),
		Date:        s.now(),
		ManifestID:  in.ManifestID,
		ShipmentID:  in.ShipmentID,
	}
	if in.Date != nil {
		t.Date = in.Date.UTC()
	}
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	s.logger.Info("transaction booked",
		slog.Int64("transaction_id", created.ID),
		slog.String("type", string(created.Type)),
		slog.String("amount", created.Amount.StringFixed(2)),
		slog.String("currency", string(created.Currency)),
	)
	return created, nil
}

// List returns transactions matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter Filter) ([]Transaction, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if list == nil {
		list = []Transaction{}
	}
	return list, nil
}

// Delete removes a transaction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := shared.Authorize(ctx); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if s.audit != nil {
		log := shared.EntityLog(ctx, shared.AuditDelete, "transaction", id, nil)
		if err := s.audit.Record(ctx, log); err != nil {
			s.logger.Warn("audit record failed", slog.String("entity", log.Entity), slog.Any("error", err))
		}
	}
	return nil
}

// Stats returns income, expense and balance per currency.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (Stats, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	sums, err := s.repo.Sums(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	return Aggregate(sums), nil
}

func checkRange(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return shared.Validationf("endDate before startDate")
	}
	return nil
}
