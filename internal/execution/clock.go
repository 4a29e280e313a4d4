package execution

import (
	"context"
	"time"
)

// Clock abstracts time for the protocol so retry delays and TWAP leg
// scheduling are deterministic under test.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Sleep waits for d, honouring context cancellation.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
