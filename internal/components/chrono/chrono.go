package chrono

import (
	"context"
	"time"

	_ "time/tzdata"
)

// API is the interface that anything depending on the system clock should use,
// including the fixed waits the portal needs while it renders.
type API interface {
	// Now returns the current time in the portal's timezone.
	Now() time.Time
	// Sleep suspends until d elapses or ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type StandardImpl struct {
	location *time.Location
}

// NewStandardImpl creates a clock in America/Lima, where the portal lives.
func NewStandardImpl() (StandardImpl, error) {
	location, err := time.LoadLocation("America/Lima")
	if err != nil {
		return StandardImpl{}, err
	}
	return StandardImpl{location: location}, nil
}

func (s StandardImpl) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardImpl) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
