package httprpc

import (
	"net/url"
)

// Hook is a pluggable stage of the call pipeline.
//
// ConfigureTransport runs once when an endpoint is built. BeforeRequest runs
// for every call, in order, before the request is sent; AfterResponse runs
// for every call, in the same order, once a response arrives and before its
// status is checked.
//
// Embed BaseHook to implement only the stages you need:
//
//	type userAgent struct{ httprpc.BaseHook }
//
//	func (userAgent) BeforeRequest(c *httprpc.CallContext) error {
//	    c.Request.Header.Set("User-Agent", "billing/1.0")
//	    return nil
//	}
//
// Errors that are already *Error keep their kind. Other errors become
// KindTransport from ConfigureTransport and BeforeRequest, and
// KindResponseProcessing from AfterResponse.
type Hook interface {
	ConfigureTransport(t *Transport) error
	BeforeRequest(c *CallContext) error
	AfterResponse(c *CallContext) error
}

// ErrorObserver is implemented by hooks that need to know when a call fails,
// e.g. to release state they attached in BeforeRequest.
type ErrorObserver interface {
	OnError(c *CallContext, err error)
}

// BaseHook implements every Hook stage as a no-op.
type BaseHook struct{}

func (BaseHook) ConfigureTransport(*Transport) error { return nil }
func (BaseHook) BeforeRequest(*CallContext) error    { return nil }
func (BaseHook) AfterResponse(*CallContext) error    { return nil }

// HookFuncs adapts plain functions into a Hook. Nil fields are skipped.
type HookFuncs struct {
	Configure func(t *Transport) error
	Before    func(c *CallContext) error
	After     func(c *CallContext) error
	Error     func(c *CallContext, err error)
}

func (h HookFuncs) ConfigureTransport(t *Transport) error {
	if h.Configure == nil {
		return nil
	}
	return h.Configure(t)
}

func (h HookFuncs) BeforeRequest(c *CallContext) error {
	if h.Before == nil {
		return nil
	}
	return h.Before(c)
}

func (h HookFuncs) AfterResponse(c *CallContext) error {
	if h.After == nil {
		return nil
	}
	return h.After(c)
}

func (h HookFuncs) OnError(c *CallContext, err error) {
	if h.Error != nil {
		h.Error(c, err)
	}
}

// baseAddressHook points the endpoint at a base URL.
type baseAddressHook struct {
	BaseHook
	base *url.URL
}

func (h baseAddressHook) ConfigureTransport(t *Transport) error {
	u := *h.base
	t.BaseURL = &u
	return nil
}

// forwardAuthHook copies the Authorization header of the inbound request,
// replacing any value already set.
type forwardAuthHook struct {
	BaseHook
}

func (forwardAuthHook) BeforeRequest(c *CallContext) error {
	in := c.Inbound()
	if in == nil {
		return nil
	}
	if auth := in.Header.Get("Authorization"); auth != "" {
		c.Request.Header.Set("Authorization", auth)
	}
	return nil
}

// bindingHook writes the call's arguments into the request. It always runs
// last.
type bindingHook struct {
	BaseHook
}

func (bindingHook) BeforeRequest(c *CallContext) error {
	return resolve(c.inv, c.Request)
}

// chainHooks returns the hooks of one endpoint in execution order.
func chainHooks(base *url.URL, forwardAuth bool, builder, group []Hook) []Hook {
	hooks := make([]Hook, 0, len(builder)+len(group)+3)
	if base != nil {
		hooks = append(hooks, baseAddressHook{base: base})
	}
	if forwardAuth {
		hooks = append(hooks, forwardAuthHook{})
	}
	hooks = append(hooks, builder...)
	hooks = append(hooks, group...)
	return append(hooks, bindingHook{})
}
