// Package requestid threads a per-request correlation id through context.
// Ids arriving from upstream proxies are honored so one request keeps one id
// across services; anything missing or oversized gets a fresh uuid.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// maxLen caps accepted inbound ids. Anything longer is replaced rather than
// truncated, so logs never carry a mangled half-id.
const maxLen = 128

// WithRequestID returns a context carrying the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request id from context, or generates a new one.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// Ensure returns a context carrying a usable request id: the inbound id when
// acceptable, a fresh uuid otherwise.
func Ensure(ctx context.Context, inbound string) (context.Context, string) {
	id := inbound
	if id == "" || len(id) > maxLen {
		id = uuid.New().String()
	}
	return WithRequestID(ctx, id), id
}

// New generates a new request id and returns the enriched context and id.
func New(ctx context.Context) (context.Context, string) {
	return Ensure(ctx, "")
}
