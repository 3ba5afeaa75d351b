package httprpc

import (
	"context"
	"fmt"
	"reflect"
)

// captureSignal is raised by stand-in methods to unwind the capture callback
// once the call has been recorded.
type captureSignal struct {
	inv Invocation
}

// newStandIn returns a *S whose method fields record the call and unwind.
// Stand-ins hold no state, so one can be shared by every capture.
func newStandIn(desc *ServiceDescriptor) reflect.Value {
	return newServiceValue(desc, func(m *MethodDescriptor, ft reflect.Type) reflect.Value {
		return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
			panic(&captureSignal{inv: invocationFromValues(m, in)})
		})
	})
}

// newServiceValue allocates a *S and fills every method field with the
// function returned by impl.
func newServiceValue(desc *ServiceDescriptor, impl func(m *MethodDescriptor, ft reflect.Type) reflect.Value) reflect.Value {
	ptr := reflect.New(desc.typ)
	sv := ptr.Elem()
	for _, m := range desc.methods {
		f := sv.FieldByName(m.name)
		f.Set(impl(m, f.Type()))
	}
	return ptr
}

// invocationFromValues converts the reflective arguments of a method field
// call into an Invocation. in[0] is the context.
func invocationFromValues(m *MethodDescriptor, in []reflect.Value) Invocation {
	var ctx context.Context
	if !in[0].IsNil() {
		ctx = in[0].Interface().(context.Context)
	}
	args := make([]any, len(in)-1)
	for i, v := range in[1:] {
		args[i] = v.Interface()
	}
	return Invocation{Method: m, Args: args, ctx: ctx}
}

// capture runs fn against the stand-in and returns the single call it makes.
func capture[S any](standIn *S, fn func(*S)) (inv Invocation, err error) {
	if fn == nil {
		return Invocation{}, NewError(KindUsage, "nil capture callback")
	}
	defer func() {
		switch r := recover().(type) {
		case nil:
		case *captureSignal:
			inv, err = r.inv, nil
		case error:
			inv, err = Invocation{}, wrapError(KindUsage, r, "capture callback panicked")
		default:
			inv, err = Invocation{}, wrapError(KindUsage, fmt.Errorf("%v", r), "capture callback panicked")
		}
	}()
	fn(standIn)
	return Invocation{}, NewError(KindUsage, "no method was called")
}
