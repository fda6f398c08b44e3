package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomworks/loom/internal/callbacks"
	"github.com/loomworks/loom/pkg/connector"
	"github.com/loomworks/loom/pkg/schema"
)

// TracingService owns the active invocation handlers and implements
// [callbacks.Service]. By default it carries a single [InvokeHandler]
// backed by the given metrics; additional handlers can be appended before
// the service is handed out.
type TracingService struct {
	mu       sync.RWMutex
	handlers []callbacks.Handler
}

// NewTracingService returns a service whose handler list starts with an
// [InvokeHandler] recording to m.
func NewTracingService(m *Metrics) *TracingService {
	return &TracingService{
		handlers: []callbacks.Handler{NewInvokeHandler(m)},
	}
}

// Append adds h to the end of the handler collection.
func (s *TracingService) Append(h callbacks.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// CurrentHandlers implements [callbacks.Service]. The returned slice is a
// copy; callers may not mutate the service's collection through it.
func (s *TracingService) CurrentHandlers() []callbacks.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]callbacks.Handler, len(s.handlers))
	copy(out, s.handlers)
	return out
}

// invokeStateKey carries per-invocation span state through the context
// between OnInvokeStart and OnInvokeEnd.
type invokeStateKey struct{}

type invokeState struct {
	span  trace.Span
	start time.Time
}

// InvokeHandler is a [callbacks.Handler] that wraps every connector
// invocation in an OTel span and records the invocation metrics.
type InvokeHandler struct {
	metrics *Metrics
}

// NewInvokeHandler returns a handler recording to m. When m is nil the
// package-level [DefaultMetrics] is used.
func NewInvokeHandler(m *Metrics) *InvokeHandler {
	if m == nil {
		m = DefaultMetrics()
	}
	return &InvokeHandler{metrics: m}
}

// OnInvokeStart implements [callbacks.Handler].
func (h *InvokeHandler) OnInvokeStart(ctx context.Context, connectorID string, _ connector.Inputs) context.Context {
	ctx, span := StartSpan(ctx, "connector.invoke",
		trace.WithAttributes(attribute.String("connector", connectorID)),
	)
	h.metrics.ActiveInvocations.Add(ctx, 1)
	return context.WithValue(ctx, invokeStateKey{}, &invokeState{
		span:  span,
		start: time.Now(),
	})
}

// OnInvokeEnd implements [callbacks.Handler].
func (h *InvokeHandler) OnInvokeEnd(ctx context.Context, connectorID string, d *schema.Data) {
	h.metrics.ActiveInvocations.Add(ctx, -1)

	st, _ := ctx.Value(invokeStateKey{}).(*invokeState)
	if st == nil {
		// OnInvokeEnd without a matching OnInvokeStart: record the count
		// only, there is no span or start time to close out.
		h.metrics.RecordInvocation(ctx, connectorID, 0, d.IsError())
		return
	}

	h.metrics.RecordInvocation(ctx, connectorID, time.Since(st.start).Seconds(), d.IsError())

	if d.IsError() {
		st.span.SetStatus(codes.Error, d.Text)
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
	st.span.End()
}
