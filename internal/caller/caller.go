// Package caller carries the identity the authentication layer attaches to
// every engine operation.
package caller

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	ierr "github.com/smallbiznis/contractdesk/internal/errors"
)

var (
	ErrMissingBerater = ierr.Sentinel("missing_berater", ierr.ErrPermissionDenied)
	ErrMissingActor   = ierr.Sentinel("missing_actor", ierr.ErrPermissionDenied)
)

// Caller identifies the advisor scope and the acting user of an operation.
type Caller struct {
	BeraterID snowflake.ID
	ActorID   snowflake.ID
}

func (c Caller) Validate() error {
	if c.BeraterID == 0 {
		return ErrMissingBerater
	}
	if c.ActorID == 0 {
		return ErrMissingActor
	}
	return nil
}

type contextKey struct{}

// WithCaller stores the caller in the context for log enrichment.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the caller from context, if set.
func FromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

// ParseID parses a snowflake id, rejecting zero and blank values.
func ParseID(value string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
