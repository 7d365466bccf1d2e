package customers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mftcargo/tracker/internal/shared"
)

const maxCodeAttempts = 3

// Service wraps customer directory rules.
type Service struct {
	repo      Repository
	audit     shared.Auditor
	logger    *slog.Logger
	codeStart int
}

// NewService constructs a Service. codeStart <= 0 uses DefaultCodeStart.
func NewService(repo Repository, audit shared.Auditor, logger *slog.Logger, codeStart int) *Service {
	if codeStart <= 0 {
		codeStart = DefaultCodeStart
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, codeStart: codeStart}
}

// NextCode previews the code the next auto-allocated customer would get.
func (s *Service) NextCode(ctx context.Context) (string, error) {
	if err := shared.Authorize(ctx); err != nil {
		return "", err
	}
	return s.allocateCode(ctx)
}

func (s *Service) allocateCode(ctx context.Context) (string, error) {
	codes, err := s.repo.Codes(ctx)
	if err != nil {
		return "", fmt.Errorf("allocate customer code: %w", err)
	}
	return NextCode(codes, s.codeStart), nil
}

// Create registers a customer. Without a code one is allocated; a collision
// on an allocated code (two admins racing) re-allocates.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Customer, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := shared.Validate(in); err != nil {
		return nil, err
	}
	c := Customer{
		CustomerCode: NormalizeCode(in.CustomerCode),
		Name:         strings.TrimSpace(in.Name),
		PhoneNumber:  in.PhoneNumber,
		Address:      in.Address,
		City:         in.City,
		Country:      in.Country,
	}
	if c.CustomerCode != "" {
		created, err := s.repo.Create(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		return created, nil
	}

	for attempt := 1; ; attempt++ {
		code, err := s.allocateCode(ctx)
		if err != nil {
			return nil, err
		}
		c.CustomerCode = code
		created, err := s.repo.Create(ctx, c)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrDuplicateCode) || attempt >= maxCodeAttempts {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		s.logger.Warn("customer code taken, reallocating", slog.String("code", code), slog.Int("attempt", attempt))
	}
}

// Update changes the provided fields.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (*Customer, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	if err := shared.Validate(patch); err != nil {
		return nil, err
	}
	updates := patch.updates()
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}
	updated, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return updated, nil
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// GetByCode looks up a customer by code. Public lookups use it, so it does
// not require authorization.
func (s *Service) GetByCode(ctx context.Context, code string) (*Customer, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, shared.Validationf("customer code required")
	}
	return s.repo.GetByCode(ctx, normalized)
}

// Upsert creates or refreshes the customer identified by in.CustomerCode.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*Customer, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	in.CustomerCode = NormalizeCode(in.CustomerCode)
	if in.CustomerCode == "" {
		return nil, shared.Validationf("customer code required")
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = "İsimsiz Müşteri"
	}
	c, err := s.repo.Upsert(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("upsert customer: %w", err)
	}
	return c, nil
}

// Search matches q against name or code using Turkish case folding. An empty
// query returns every customer, newest first.
func (s *Service) Search(ctx context.Context, q string) ([]Customer, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("search customers: %w", err)
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return all, nil
	}
	needle := shared.LowerTR(q)
	out := make([]Customer, 0, len(all))
	for _, c := range all {
		if strings.Contains(shared.LowerTR(c.Name), needle) || strings.Contains(shared.LowerTR(c.CustomerCode), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Delete removes a customer that owns no shipments.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := shared.Authorize(ctx); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountShipments(ctx, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if n > 0 {
		return ErrHasShipments
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	s.record(ctx, shared.EntityLog(ctx, shared.AuditDelete, "customer", id, nil))
	return nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("entity", log.Entity), slog.Any("error", err))
	}
}
