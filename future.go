package httprpc

import (
	"context"
	"net/http"
	"reflect"
	"sync"
)

// Void is the payload type of asynchronous methods that return no content.
type Void struct{}

var voidType = reflect.TypeFor[Void]()

// Future is the pending result of an asynchronous call. It completes exactly
// once; Get and Await may be called any number of times from any goroutine.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	resp *http.Response
	err  error
}

// Async runs fn on a new goroutine and returns a Future for its result.
func Async[T any](fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := fn()
		f.complete(v, nil, err)
	}()
	return f
}

// Resolved returns a completed Future holding v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil, nil)
	return f
}

// Failed returns a completed Future holding err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, nil, err)
	return f
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, resp *http.Response, err error) {
	f.once.Do(func() {
		f.val, f.resp, f.err = v, resp, err
		close(f.done)
	})
}

// Done returns a channel that is closed when the call completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the call completes and returns its result.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// Await is like Get but gives up when ctx is done. Giving up does not cancel
// the call; cancel the context passed to the method for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Response returns the HTTP response of a completed call, or nil if the call
// is still pending or failed before a response arrived.
func (f *Future[T]) Response() *http.Response {
	select {
	case <-f.done:
		return f.resp
	default:
		return nil
	}
}

// future is implemented by every *Future[T] so that reflective proxies can
// create and complete futures of any payload type.
type future interface {
	payloadType() reflect.Type
	init()
	resolve(v any, resp *http.Response, err error)
}

func (f *Future[T]) payloadType() reflect.Type {
	t := reflect.TypeFor[T]()
	if t == voidType {
		return nil
	}
	return t
}

func (f *Future[T]) init() {
	f.done = make(chan struct{})
}

func (f *Future[T]) resolve(v any, resp *http.Response, err error) {
	var val T
	if tv, ok := v.(T); ok {
		val = tv
	}
	f.complete(val, resp, err)
}

var futureIface = reflect.TypeFor[future]()

func isFutureType(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Implements(futureIface)
}

func futurePayload(t reflect.Type) reflect.Type {
	return reflect.New(t.Elem()).Interface().(future).payloadType()
}

// newFutureOf allocates a pending *Future[T] for the future type t.
func newFutureOf(t reflect.Type) (reflect.Value, future) {
	v := reflect.New(t.Elem())
	f := v.Interface().(future)
	f.init()
	return v, f
}
