package httprpc

import (
	"context"
	"net/http"
)

type contextKey struct {
	name string
}

var (
	inboundKey = &contextKey{"inbound_request"}
	methodKey  = &contextKey{"method"}
)

// WithInboundRequest returns a context carrying r as the ambient inbound
// request. Calls made with the context can forward data from it, such as the
// Authorization header.
func WithInboundRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, inboundKey, r)
}

// InboundRequest returns the inbound request stored in ctx, or nil.
func InboundRequest(ctx context.Context) *http.Request {
	if r, ok := ctx.Value(inboundKey).(*http.Request); ok {
		return r
	}
	return nil
}

// InboundMiddleware stores each request in its own context so that calls made
// while serving it see it as the inbound request.
func InboundMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithInboundRequest(r.Context(), r)))
	})
}

// MethodFromContext returns the method of the outgoing call. It is set on the
// context of every request handed to a Doer.
func MethodFromContext(ctx context.Context) (*MethodDescriptor, bool) {
	m, ok := ctx.Value(methodKey).(*MethodDescriptor)
	return m, ok
}

func withMethod(ctx context.Context, m *MethodDescriptor) context.Context {
	return context.WithValue(ctx, methodKey, m)
}
