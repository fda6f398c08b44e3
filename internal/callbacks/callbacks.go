// Package callbacks exposes the tracing service's invocation handlers as a
// component output, so workflow graphs can connect them to components that
// accept a callback collection via a handle.
//
// The package is deliberately a pass-through: the handler collection is
// owned by the tracing service, and [BuildCallbacks] merely forwards it in
// order, with no filtering and no error path.
package callbacks

import (
	"context"

	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/schema"
)

// Handler observes the lifecycle of a single connector invocation.
// Implementations must be safe for concurrent use; a handler may be driven
// by many invocations at once.
type Handler interface {
	// OnInvokeStart is called before the external call is made. The
	// returned context is passed to the invocation and to OnInvokeEnd,
	// letting handlers thread span or timing state through.
	OnInvokeStart(ctx context.Context, connectorID string, in connector.Inputs) context.Context

	// OnInvokeEnd is called after the envelope is produced, for both
	// success and failure envelopes.
	OnInvokeEnd(ctx context.Context, connectorID string, d *schema.Data)
}

// Service is the collaborator that owns the current handler collection,
// typically the tracing service.
type Service interface {
	// CurrentHandlers returns the active handlers in invocation order.
	CurrentHandlers() []Handler
}

// BuildCallbacks returns the service's current handlers. The slice is
// forwarded as-is; ordering is the service's responsibility.
func BuildCallbacks(svc Service) []Handler {
	return svc.CurrentHandlers()
}
