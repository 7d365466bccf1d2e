package status

import (
	"fmt"
	"strings"

	"github.com/mftcargo/tracker/internal/shared"
)

// Policy decides whether a shipment may move from one status to another.
type Policy interface {
	Check(from, to Code) error
}

// Permissive accepts any move between vocabulary codes.
type Permissive struct{}

// Check implements Policy.
func (Permissive) Check(from, to Code) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrValidation, to)
	}
	return nil
}

// ForwardOnly rejects moves that go back along the route.
type ForwardOnly struct{}

// Check implements Policy.
func (ForwardOnly) Check(from, to Code) error {
	if err := (Permissive{}).Check(from, to); err != nil {
		return err
	}
	if from.IsValid() && to.Rank() < from.Rank() {
		return fmt.Errorf("%w: cannot move from %s back to %s", shared.ErrValidation, from, to)
	}
	return nil
}

// PolicyByName maps a configuration value to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "permissive":
		return Permissive{}, nil
	case "forward":
		return ForwardOnly{}, nil
	}
	return nil, fmt.Errorf("status: unknown policy %q", name)
}
