package httprpc

import (
	"net/http"
	"reflect"
)

// Result is the outcome of a successful call made through a Client.
type Result[T any] struct {
	// Response is the HTTP response. Its body has been buffered and can be
	// read again.
	Response *http.Response
	// Data is the decoded payload, or the zero value for methods that return
	// no content.
	Data T
}

// Client calls a service either through its proxy or by capturing a call
// and returning the full Result.
type Client[S any] struct {
	endpoint *Endpoint
	standIn  *S
	proxy    *S
}

func newClient[S any](e *Endpoint) *Client[S] {
	return &Client[S]{
		endpoint: e,
		standIn:  newStandIn(e.desc).Interface().(*S),
		proxy:    newProxy(e).Interface().(*S),
	}
}

// Proxy returns the service proxy. Calling its methods sends requests.
func (c *Client[S]) Proxy() *S { return c.proxy }

// Endpoint returns the underlying endpoint.
func (c *Client[S]) Endpoint() *Endpoint { return c.endpoint }

// Exec captures the single call fn makes on the service and dispatches it,
// discarding any payload.
//
//	res, err := client.Exec(func(s *Store) { s.Delete(ctx, id) })
func (c *Client[S]) Exec(fn func(*S)) (*Result[Void], error) {
	return Call[Void](c, fn)
}

// Call captures the single call fn makes on the service, dispatches it and
// returns its payload as T. T must be the method's payload type, or Void to
// discard it. Asynchronous methods are awaited.
//
//	res, err := httprpc.Call[int](client, func(c *Calculator) { c.Add(ctx, 1, 2) })
func Call[T, S any](c *Client[S], fn func(*S)) (*Result[T], error) {
	inv, err := capture(c.standIn, fn)
	if err != nil {
		return nil, err
	}
	m := inv.Method
	want := reflect.TypeFor[T]()
	if want != voidType && want != m.result {
		return nil, Errorf(KindUsage, "%s returns %v, not %s", m.FullName(), m.result, want)
	}
	v, resp, err := c.endpoint.dispatch(inv)
	if err != nil {
		return nil, err
	}
	res := &Result[T]{Response: resp}
	if want != voidType && v != nil {
		res.Data = v.(T)
	}
	return res, nil
}
