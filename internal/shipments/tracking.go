package shipments

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
)

// TrackingPrefix starts every generated tracking number.
const TrackingPrefix = "TR-"

// TrackingGenerator yields candidate tracking numbers.
type TrackingGenerator func() string

// RandomTrackingNumber returns "TR-" followed by 8 digits in [10000000, 99999999].
func RandomTrackingNumber() string {
	return fmt.Sprintf("%s%d", TrackingPrefix, 10000000+rand.IntN(90000000))
}

// NormalizeTrackingNumber upper-cases and trims user input.
func NormalizeTrackingNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// uniqueTrackingNumber draws candidates until one is unused. The loop has no
// attempt cap; it stops only on a store error or context cancellation.
func uniqueTrackingNumber(ctx context.Context, gen TrackingGenerator, exists func(context.Context, string) (bool, error)) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := gen()
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check tracking number: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
}
