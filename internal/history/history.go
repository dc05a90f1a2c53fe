// Package history defines the execution-history record the CLI driver
// appends on every run when a backend store is configured. It has no
// opinion on where records end up; sqlitestore and dynamostore provide
// two interchangeable implementations of Store.
package history

import (
	"context"
	"time"
)

// Record is one executed run of the CLI driver.
type Record struct {
	ID           string
	Source       string
	Output       string
	Failed       bool
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

// Store persists Records. Implementations must be safe to Close once,
// after the driver is done with them.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Close() error
}
