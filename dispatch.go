package httprpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strings"
	"time"
)

// CallContext is the state of one call as it moves through the hooks. It is
// created per call and never shared between calls.
type CallContext struct {
	ctx       context.Context
	inv       Invocation
	inbound   *http.Request
	transport *Transport
	start     time.Time

	// Request is the request under construction. Hooks may edit it in
	// BeforeRequest.
	Request *PendingRequest
	// Response is set once a response arrives. Its body is buffered and may
	// be read by hooks and callers alike.
	Response *http.Response
}

// Context returns the call's context.
func (c *CallContext) Context() context.Context { return c.ctx }

// SetContext replaces the call's context. The new context must derive from
// the current one.
func (c *CallContext) SetContext(ctx context.Context) { c.ctx = ctx }

// Method returns the called method.
func (c *CallContext) Method() *MethodDescriptor { return c.inv.Method }

// Args returns the call's arguments in declaration order.
func (c *CallContext) Args() []any { return append([]any(nil), c.inv.Args...) }

// Arg returns the argument of the parameter with the given declared name.
func (c *CallContext) Arg(name string) (any, bool) { return c.inv.Arg(name) }

// Inbound returns the ambient inbound request, or nil.
func (c *CallContext) Inbound() *http.Request { return c.inbound }

// Transport returns the endpoint's transport.
func (c *CallContext) Transport() *Transport { return c.transport }

// Start returns the time the call started.
func (c *CallContext) Start() time.Time { return c.start }

// Endpoint dispatches calls for one service.
type Endpoint struct {
	desc      *ServiceDescriptor
	transport *Transport
	hooks     []Hook
	logger    *slog.Logger
}

// newEndpoint builds an endpoint and runs the ConfigureTransport stage of
// every hook.
func newEndpoint(desc *ServiceDescriptor, client Doer, hooks []Hook, logger *slog.Logger) (*Endpoint, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{Client: client}
	for _, h := range hooks {
		if err := h.ConfigureTransport(t); err != nil {
			return nil, asError(err, KindTransport, "configure transport for "+desc.id, nil)
		}
	}
	if t.Client == nil {
		return nil, Errorf(KindConfiguration, "%s: transport has no client", desc.id)
	}
	return &Endpoint{
		desc:      desc,
		transport: t,
		hooks:     hooks,
		logger:    logger.With(slog.String("service", desc.name)),
	}, nil
}

// Descriptor returns the service the endpoint dispatches for.
func (e *Endpoint) Descriptor() *ServiceDescriptor { return e.desc }

// Transport returns a copy of the configured transport.
func (e *Endpoint) Transport() Transport { return *e.transport.clone() }

// Invoke dispatches cmd and decodes the payload into out, which must be a
// pointer to the method's result type or nil.
func (e *Endpoint) Invoke(ctx context.Context, cmd Command, out any) (*http.Response, error) {
	m, ok := e.desc.Method(cmd.Method)
	if !ok {
		return nil, Errorf(KindUsage, "service %s has no method %q", e.desc.name, cmd.Method)
	}
	inv, err := m.bind(ctx, cmd.Args)
	if err != nil {
		return nil, err
	}
	v, resp, err := e.dispatch(inv)
	if err != nil {
		return resp, err
	}
	if out == nil || v == nil {
		return resp, nil
	}
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return resp, Errorf(KindUsage, "%s: out must be a non-nil pointer, got %T", m.FullName(), out)
	}
	src := reflect.ValueOf(v)
	if !src.Type().AssignableTo(dst.Elem().Type()) {
		return resp, Errorf(KindUsage, "%s returns %s, cannot store into %s", m.FullName(), src.Type(), dst.Elem().Type())
	}
	dst.Elem().Set(src)
	return resp, nil
}

// dispatch runs one call through the pipeline and returns the decoded payload.
// The payload is nil for methods without a result type.
func (e *Endpoint) dispatch(inv Invocation) (any, *http.Response, error) {
	m := inv.Method
	ctx := inv.Context()
	c := &CallContext{
		ctx:       ctx,
		inv:       inv,
		inbound:   InboundRequest(ctx),
		transport: e.transport,
		start:     time.Now(),
		Request:   newPendingRequest(m),
	}

	for _, h := range e.hooks {
		if err := h.BeforeRequest(c); err != nil {
			return e.fail(c, asError(err, KindTransport, "before-request hook failed", nil))
		}
	}

	req, err := c.Request.build(withMethod(c.ctx, m), e.transport.BaseURL)
	if err != nil {
		return e.fail(c, wrapError(KindTransport, err, "build request"))
	}
	e.logger.DebugContext(c.ctx, "sending request",
		slog.String("method", m.name),
		slog.String("verb", req.Method),
		slog.String("url", req.URL.String()),
	)

	resp, err := e.transport.Client.Do(req)
	if err != nil {
		return e.fail(c, wrapError(KindTransport, err, "%s %s", req.Method, req.URL.Redacted()))
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return e.fail(c, &Error{Kind: KindTransport, Message: "read response body", Response: resp, Err: err})
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	c.Response = resp

	for _, h := range e.hooks {
		if err := h.AfterResponse(c); err != nil {
			return e.fail(c, asError(err, KindResponseProcessing, "after-response hook failed", resp))
		}
	}
	// Hooks may have consumed the body.
	resp.Body = io.NopCloser(bytes.NewReader(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return e.fail(c, &Error{
			Kind:     KindErrorResponse,
			Message:  "server responded " + resp.Status,
			Response: resp,
			Body:     data,
		})
	}

	v, err := decodePayload(m, resp, data)
	if err != nil {
		return e.fail(c, &Error{Kind: KindDataParse, Message: "decode " + m.FullName() + " response", Response: resp, Body: data, Err: err})
	}
	e.logger.DebugContext(c.ctx, "call completed",
		slog.String("method", m.name),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(c.start)),
	)
	return v, resp, nil
}

func (e *Endpoint) fail(c *CallContext, err *Error) (any, *http.Response, error) {
	for _, h := range e.hooks {
		if o, ok := h.(ErrorObserver); ok {
			o.OnError(c, err)
		}
	}
	e.logger.DebugContext(c.ctx, "call failed",
		slog.String("method", c.inv.Method.name),
		slog.String("kind", string(err.Kind)),
		slog.Duration("duration", time.Since(c.start)),
		slog.Any("error", err),
	)
	return nil, err.Response, err
}

// decodePayload converts a successful response into a value of m's result
// type. Empty bodies and 204 yield the zero value. JSON content is decoded;
// any other content is opaque text, assignable only to string or []byte. A
// missing content type is text for those payloads and JSON otherwise.
func decodePayload(m *MethodDescriptor, resp *http.Response, data []byte) (any, error) {
	if m.result == nil {
		return nil, nil
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return reflect.Zero(m.result).Interface(), nil
	}
	ct := resp.Header.Get("Content-Type")
	if isJSON(ct) || (ct == "" && !isTextPayload(m.result)) {
		ptr := reflect.New(m.result)
		if err := json.Unmarshal(data, ptr.Interface()); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}
	switch {
	case m.result.Kind() == reflect.String:
		return reflect.ValueOf(string(data)).Convert(m.result).Interface(), nil
	case m.result.Kind() == reflect.Slice && m.result.Elem().Kind() == reflect.Uint8:
		return reflect.ValueOf(data).Convert(m.result).Interface(), nil
	}
	return nil, &json.UnmarshalTypeError{Value: "text", Type: m.result}
}

// isJSON reports whether a Content-Type carries JSON.
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// isTextPayload reports whether t receives opaque text: string or []byte.
func isTextPayload(t reflect.Type) bool {
	return t.Kind() == reflect.String || (t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8)
}
