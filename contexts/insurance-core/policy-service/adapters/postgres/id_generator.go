package postgresadapter

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UUIDGenerator creates UUIDv4 identifiers for policies and events.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// SystemClock implements ports.Clock using wall-clock UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
