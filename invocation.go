package httprpc

import (
	"context"
	"reflect"
)

// Invocation is one captured method call: the method, its arguments in
// declaration order and the context the call was made with.
type Invocation struct {
	Method *MethodDescriptor
	Args   []any
	ctx    context.Context
}

// Context returns the context the method was called with.
func (inv Invocation) Context() context.Context {
	if inv.ctx == nil {
		return context.Background()
	}
	return inv.ctx
}

// Arg returns the value of the parameter with the given declared name.
func (inv Invocation) Arg(name string) (any, bool) {
	p, ok := inv.Method.Param(name)
	if !ok || p.index >= len(inv.Args) {
		return nil, false
	}
	return inv.Args[p.index], true
}

// Arg is one argument of a Command. An empty Name assigns by position.
type Arg struct {
	Name  string
	Value any
}

// Named returns an argument bound to the parameter with the given name.
func Named(name string, value any) Arg {
	return Arg{Name: name, Value: value}
}

// Command is an explicit description of a call, used by generated clients.
type Command struct {
	Method string
	Args   []Arg
}

// NewCommand returns a command for method with the given arguments.
func NewCommand(method string, args ...Arg) Command {
	return Command{Method: method, Args: args}
}

// bind correlates the arguments of cmd with the parameters of m.
// Named arguments match by declared name and unnamed ones by position.
// Omitted parameters take their default, or the zero value when the type is
// nillable.
func (m *MethodDescriptor) bind(ctx context.Context, args []Arg) (Invocation, error) {
	if len(args) > len(m.params) {
		return Invocation{}, Errorf(KindUsage, "%s takes %d arguments, got %d", m.FullName(), len(m.params), len(args))
	}
	values := make([]any, len(m.params))
	set := make([]bool, len(m.params))

	for i, a := range args {
		p := m.params[i]
		if a.Name != "" {
			var ok bool
			if p, ok = m.byName[a.Name]; !ok {
				return Invocation{}, Errorf(KindUsage, "%s has no parameter %q", m.FullName(), a.Name)
			}
		}
		if set[p.index] {
			return Invocation{}, Errorf(KindUsage, "%s: parameter %q assigned twice", m.FullName(), p.name)
		}
		v, err := p.assign(a.Value)
		if err != nil {
			return Invocation{}, err
		}
		values[p.index], set[p.index] = v, true
	}

	for i, p := range m.params {
		if set[i] {
			continue
		}
		switch {
		case p.hasDef:
			values[i] = p.def.Interface()
		case nillable(p.typ):
			values[i] = reflect.Zero(p.typ).Interface()
		default:
			return Invocation{}, Errorf(KindUsage, "%s: missing argument %q", m.FullName(), p.name)
		}
	}
	return Invocation{Method: m, Args: values, ctx: ctx}, nil
}

// assign checks that v can be passed as p and returns it as p's type.
func (p *ParameterDescriptor) assign(v any) (any, error) {
	if v == nil {
		if !nillable(p.typ) {
			return nil, Errorf(KindUsage, "%s: nil is not a valid %s for %q", p.method.FullName(), p.typ, p.name)
		}
		return reflect.Zero(p.typ).Interface(), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(p.typ):
		if p.typ.Kind() == reflect.Interface {
			return v, nil
		}
		return rv.Convert(p.typ).Interface(), nil
	case rv.Kind() == p.typ.Kind() && IsSimpleType(p.typ) && rv.Type().ConvertibleTo(p.typ):
		return rv.Convert(p.typ).Interface(), nil
	case p.typ.Kind() == reflect.Pointer && rv.Type().AssignableTo(p.typ.Elem()):
		ptr := reflect.New(p.typ.Elem())
		ptr.Elem().Set(rv)
		return ptr.Interface(), nil
	}
	return nil, Errorf(KindUsage, "%s: cannot use %s as %s for %q", p.method.FullName(), rv.Type(), p.typ, p.name)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}
