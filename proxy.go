package httprpc

import (
	"reflect"
)

// newProxy returns a *S whose method fields dispatch through e. Synchronous
// methods block until the call completes; asynchronous methods return a
// pending *Future right away.
func newProxy(e *Endpoint) reflect.Value {
	return newServiceValue(e.desc, func(m *MethodDescriptor, ft reflect.Type) reflect.Value {
		return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
			inv := invocationFromValues(m, in)
			if m.async {
				fv, f := newFutureOf(ft.Out(0))
				go func() {
					v, resp, err := e.dispatch(inv)
					f.resolve(v, resp, err)
				}()
				return []reflect.Value{fv}
			}
			v, _, err := e.dispatch(inv)
			return syncResults(ft, v, err)
		})
	})
}

// syncResults builds the return values of a synchronous method: error, or
// (T, error).
func syncResults(ft reflect.Type, v any, err error) []reflect.Value {
	errV := reflect.New(errorType).Elem()
	if err != nil {
		errV.Set(reflect.ValueOf(err))
	}
	if ft.NumOut() == 1 {
		return []reflect.Value{errV}
	}
	out := reflect.New(ft.Out(0)).Elem()
	if v != nil {
		out.Set(reflect.ValueOf(v))
	}
	return []reflect.Value{out, errV}
}
