package gateway

import (
	"context"
	"errors"

	"github.com/chainguard-dev/clog"
)

// destructor removes one provisioned resource.
type destructor func(ctx context.Context) error

// stack accumulates destructors for resources created so far, so a failed
// provisioning run can unwind exactly what exists.
type stack struct {
	destructors []destructor
}

// Push adds a destructor, to be run in the reverse order it was added.
func (s *stack) Push(d destructor) {
	s.destructors = append(s.destructors, d)
}

// Destroy runs the accumulated destructors in reverse order. A failed step
// never stops the rest; every failure is logged where it happened and all
// of them come back joined.
func (s *stack) Destroy(ctx context.Context) error {
	log := clog.FromContext(ctx)
	var errs error
	for i := len(s.destructors) - 1; i >= 0; i-- {
		if err := s.destructors[i](ctx); err != nil {
			log.Warn("unwind step failed", "step", i, "error", err)
			errs = errors.Join(errs, err)
		}
	}
	return errs
}
