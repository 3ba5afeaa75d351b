package httprpc

import (
	"context"
	"reflect"
	"strings"
)

// Service marks a struct as a service contract. Embed it and put the route
// prefix in its "route" tag:
//
//	type Calculator struct {
//	    httprpc.Service `route:"/api/v1"`
//	    Add func(ctx context.Context, a, b int) (int, error) `get:"add/{a}/{b}" params:"a,b"`
//	}
//
// Every exported func field is an RPC method. It carries exactly one verb tag
// (get, post, put, patch, delete, head or options) whose value is the method
// template, and a "params" tag naming the parameters after the context:
//
//	params:"name [source[=wire]] [default=value], ..."
//
// The first parameter must be a context.Context. Methods return error,
// (T, error) or *Future[T].
type Service struct{}

var verbTags = [...]string{"get", "post", "put", "patch", "delete", "head", "options"}

var (
	serviceType = reflect.TypeFor[Service]()
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Describe derives the ServiceSpec of a service struct type. t may be the
// struct type or a pointer to it.
func Describe(t reflect.Type) (ServiceSpec, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return ServiceSpec{}, Errorf(KindConfiguration, "service type %v is not a struct", t)
	}
	if t.Name() == "" {
		return ServiceSpec{}, Errorf(KindConfiguration, "service type %v must be a named type", t)
	}

	spec := ServiceSpec{
		ID:   t.PkgPath() + "." + t.Name(),
		Name: t.Name(),
		Type: t,
	}

	marked := false
	for i := range t.NumField() {
		f := t.Field(i)
		if route, ok := f.Tag.Lookup("route"); ok {
			spec.Routes = append(spec.Routes, route)
		}
		if f.Anonymous && f.Type == serviceType {
			marked = true
			continue
		}
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			if len(lookupVerbs(f)) > 0 {
				return ServiceSpec{}, Errorf(KindConfiguration, "%s.%s has a verb tag but is not an exported func field", t.Name(), f.Name)
			}
			continue
		}
		m, err := describeMethod(t, f)
		if err != nil {
			return ServiceSpec{}, err
		}
		spec.Methods = append(spec.Methods, m)
	}
	if !marked {
		return ServiceSpec{}, Errorf(KindConfiguration, "%s does not embed httprpc.Service", t.Name())
	}
	return spec, nil
}

func lookupVerbs(f reflect.StructField) []VerbSpec {
	var verbs []VerbSpec
	for _, tag := range verbTags {
		if tmpl, ok := f.Tag.Lookup(tag); ok {
			verbs = append(verbs, VerbSpec{Verb: strings.ToUpper(tag), Template: tmpl})
		}
	}
	return verbs
}

func describeMethod(svc reflect.Type, f reflect.StructField) (MethodSpec, error) {
	ft := f.Type
	where := svc.Name() + "." + f.Name
	m := MethodSpec{Name: f.Name, Verbs: lookupVerbs(f)}

	if ft.IsVariadic() {
		return m, Errorf(KindConfiguration, "%s: variadic methods are not supported", where)
	}
	if ft.NumIn() == 0 || ft.In(0) != contextType {
		return m, Errorf(KindConfiguration, "%s: first parameter must be context.Context", where)
	}

	switch {
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
	case ft.NumOut() == 2 && ft.Out(1) == errorType:
		m.Result = ft.Out(0)
	case ft.NumOut() == 1 && isFutureType(ft.Out(0)):
		m.Async = true
		m.Result = futurePayload(ft.Out(0))
	default:
		return m, Errorf(KindConfiguration, "%s: must return error, (T, error) or *httprpc.Future[T]", where)
	}

	items := splitParams(f.Tag.Get("params"))
	if len(items) != ft.NumIn()-1 {
		return m, Errorf(KindConfiguration, "%s: params tag names %d parameters, func declares %d", where, len(items), ft.NumIn()-1)
	}
	for i, item := range items {
		p, err := parseParamItem(item)
		if err != nil {
			return m, wrapError(KindConfiguration, err, "%s: params tag", where)
		}
		p.Type = ft.In(i + 1)
		m.Params = append(m.Params, p)
	}
	return m, nil
}

func splitParams(tag string) []string {
	if strings.TrimSpace(tag) == "" {
		return nil
	}
	items := strings.Split(tag, ",")
	for i := range items {
		items[i] = strings.TrimSpace(items[i])
	}
	return items
}

// parseParamItem parses "name [source[=wire]] [default=value]".
func parseParamItem(item string) (ParamSpec, error) {
	fields := strings.Fields(item)
	if len(fields) == 0 {
		return ParamSpec{}, NewError(KindConfiguration, "empty parameter item")
	}
	p := ParamSpec{Name: fields[0]}
	for _, field := range fields[1:] {
		key, value, hasValue := strings.Cut(field, "=")
		if key == "default" {
			if p.HasDefault {
				return p, Errorf(KindConfiguration, "parameter %q declares two defaults", p.Name)
			}
			p.Default, p.HasDefault = value, true
			continue
		}
		if p.Source != SourceInfer {
			return p, Errorf(KindConfiguration, "parameter %q declares two binding sources", p.Name)
		}
		src, err := ParseBindingSource(key)
		if err != nil {
			return p, wrapError(KindConfiguration, err, "parameter %q", p.Name)
		}
		p.Source = src
		if hasValue {
			p.WireName = value
		}
	}
	return p, nil
}
