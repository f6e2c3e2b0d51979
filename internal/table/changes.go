package table

import (
	"context"

	"github.com/rzpsarthak13/transferdesk/internal/core"
	"github.com/rzpsarthak13/transferdesk/internal/schema"
)

// ChangeInvalidator drops cached read models made stale by a ride change.
// It is the drainer's handler.
type ChangeInvalidator struct {
	rides *RideTable
}

// NewChangeInvalidator creates an invalidator for rides.
func NewChangeInvalidator(rides *RideTable) *ChangeInvalidator {
	return &ChangeInvalidator{rides: rides}
}

// HandleChange invalidates the driver options unless the change is an
// update that left the driver untouched.
func (c *ChangeInvalidator) HandleChange(ctx context.Context, change *core.RideChange) error {
	if change.Table != schema.RidesTable {
		return nil
	}
	if change.Operation == core.OperationUpdate && !touches(change.Fields, "DRIVER") {
		return nil
	}
	return c.rides.InvalidateOptions(ctx)
}

func touches(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
