package httprpc

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServiceSpec is the declarative input to BuildService. Describe derives one
// from a service struct; generated code writes one out literally.
//
// Routes and Verbs are slices so that duplicated annotations can be reported
// rather than silently ignored.
type ServiceSpec struct {
	// ID is the stable identifier of the service, conventionally
	// "<import path>.<type name>".
	ID string
	// Name is the short service name. Defaults to the last element of ID.
	Name    string
	Routes  []string
	Methods []MethodSpec
	// Type is the service struct type, if the ServiceSpec was derived by reflection.
	Type reflect.Type
}

// MethodSpec declares one RPC method.
type MethodSpec struct {
	Name   string
	Verbs  []VerbSpec
	Params []ParamSpec
	// Result is the payload type, or nil when the method returns no content.
	Result reflect.Type
	// Async marks methods that return a *Future.
	Async bool
}

// VerbSpec is one HTTP-method annotation with its method-level template.
type VerbSpec struct {
	Verb     string
	Template string
}

// ParamSpec declares one method parameter.
type ParamSpec struct {
	Name string
	Type reflect.Type
	// Source is the explicit binding annotation, or SourceInfer.
	Source BindingSource
	// WireName overrides the name used on the wire.
	WireName string
	// Default is the textual default value, used when a command omits the
	// argument. Only simple types may declare one.
	Default    string
	HasDefault bool
}

// ServiceDescriptor is the immutable metadata of one service contract.
// It is built once and shared by every call to the service.
type ServiceDescriptor struct {
	id      string
	name    string
	route   string
	typ     reflect.Type
	methods []*MethodDescriptor
	byName  map[string]*MethodDescriptor
}

// ID returns the stable identifier of the service.
func (s *ServiceDescriptor) ID() string { return s.id }

// Name returns the short service name.
func (s *ServiceDescriptor) Name() string { return s.name }

// Route returns the route prefix annotation.
func (s *ServiceDescriptor) Route() string { return s.route }

// Type returns the service struct type, or nil for generated services.
func (s *ServiceDescriptor) Type() reflect.Type { return s.typ }

// Methods returns the methods in declaration order.
func (s *ServiceDescriptor) Methods() []*MethodDescriptor {
	return append([]*MethodDescriptor(nil), s.methods...)
}

// Method returns the method with the given name.
func (s *ServiceDescriptor) Method(name string) (*MethodDescriptor, bool) {
	m, ok := s.byName[name]
	return m, ok
}

func (s *ServiceDescriptor) String() string { return s.id }

// Equal reports whether two descriptors carry the same templates, verbs and
// binding decisions.
func (s *ServiceDescriptor) Equal(o *ServiceDescriptor) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	if s.id != o.id || s.name != o.name || s.route != o.route || len(s.methods) != len(o.methods) {
		return false
	}
	for i, m := range s.methods {
		if !m.equal(o.methods[i]) {
			return false
		}
	}
	return true
}

// MethodDescriptor is the immutable metadata of one RPC method.
type MethodDescriptor struct {
	service  *ServiceDescriptor
	name     string
	index    int
	verb     string
	template string
	result   reflect.Type
	async    bool
	params   []*ParameterDescriptor
	byName   map[string]*ParameterDescriptor
}

// Service returns the owning service.
func (m *MethodDescriptor) Service() *ServiceDescriptor { return m.service }

// Name returns the method name.
func (m *MethodDescriptor) Name() string { return m.name }

// FullName returns "Service.Method".
func (m *MethodDescriptor) FullName() string { return m.service.name + "." + m.name }

// Index returns the declaration position of the method.
func (m *MethodDescriptor) Index() int { return m.index }

// Verb returns the upper-case HTTP method.
func (m *MethodDescriptor) Verb() string { return m.verb }

// Template returns the full route template, prefix included.
func (m *MethodDescriptor) Template() string { return m.template }

// Result returns the payload type, or nil when the method has none.
func (m *MethodDescriptor) Result() reflect.Type { return m.result }

// IsAsync reports whether the method returns a *Future.
func (m *MethodDescriptor) IsAsync() bool { return m.async }

// Params returns the parameters in declaration order.
func (m *MethodDescriptor) Params() []*ParameterDescriptor {
	return append([]*ParameterDescriptor(nil), m.params...)
}

// Param returns the parameter with the given declared name.
func (m *MethodDescriptor) Param(name string) (*ParameterDescriptor, bool) {
	p, ok := m.byName[name]
	return p, ok
}

func (m *MethodDescriptor) String() string {
	return m.verb + " " + m.template
}

func (m *MethodDescriptor) equal(o *MethodDescriptor) bool {
	if m.name != o.name || m.verb != o.verb || m.template != o.template ||
		m.result != o.result || m.async != o.async || len(m.params) != len(o.params) {
		return false
	}
	for i, p := range m.params {
		q := o.params[i]
		if p.name != q.name || p.wire != q.wire || p.typ != q.typ || p.source != q.source || p.hasDef != q.hasDef {
			return false
		}
		if p.hasDef && !reflect.DeepEqual(p.def.Interface(), q.def.Interface()) {
			return false
		}
	}
	return true
}

// ParameterDescriptor is the immutable metadata of one parameter, including
// its binding decision.
type ParameterDescriptor struct {
	method *MethodDescriptor
	name   string
	index  int
	wire   string
	typ    reflect.Type
	elem   reflect.Type
	source BindingSource
	def    reflect.Value
	hasDef bool
}

// Method returns the owning method.
func (p *ParameterDescriptor) Method() *MethodDescriptor { return p.method }

// Name returns the declared parameter name.
func (p *ParameterDescriptor) Name() string { return p.name }

// Index returns the declaration position of the parameter.
func (p *ParameterDescriptor) Index() int { return p.index }

// WireName returns the explicit override name, or the declared name.
func (p *ParameterDescriptor) WireName() string { return p.wire }

// Type returns the declared type.
func (p *ParameterDescriptor) Type() reflect.Type { return p.typ }

// ElementType returns the element type of a sequence parameter, or nil.
func (p *ParameterDescriptor) ElementType() reflect.Type { return p.elem }

// Source returns the binding source.
func (p *ParameterDescriptor) Source() BindingSource { return p.source }

// Default returns the declared default value.
func (p *ParameterDescriptor) Default() (any, bool) {
	if !p.hasDef {
		return nil, false
	}
	return p.def.Interface(), true
}

// BuildService validates spec and builds its descriptor.
func BuildService(spec ServiceSpec) (*ServiceDescriptor, error) {
	if spec.ID == "" {
		return nil, NewError(KindConfiguration, "service spec has no ID")
	}
	name := spec.Name
	if name == "" {
		name = spec.ID[strings.LastIndex(spec.ID, ".")+1:]
	}
	if len(spec.Routes) != 1 {
		return nil, Errorf(KindConfiguration, "service %s must have exactly one route annotation, found %d", spec.ID, len(spec.Routes))
	}

	svc := &ServiceDescriptor{
		id:      spec.ID,
		name:    name,
		route:   spec.Routes[0],
		typ:     spec.Type,
		methods: make([]*MethodDescriptor, 0, len(spec.Methods)),
		byName:  make(map[string]*MethodDescriptor, len(spec.Methods)),
	}

	for i, ms := range spec.Methods {
		m, err := buildMethod(svc, i, ms)
		if err != nil {
			return nil, err
		}
		if _, dup := svc.byName[m.name]; dup {
			return nil, Errorf(KindConfiguration, "%s: duplicate method %s", spec.ID, m.name)
		}
		svc.methods = append(svc.methods, m)
		svc.byName[m.name] = m
	}
	return svc, nil
}

func buildMethod(svc *ServiceDescriptor, index int, ms MethodSpec) (*MethodDescriptor, error) {
	if ms.Name == "" {
		return nil, Errorf(KindConfiguration, "%s: method %d has no name", svc.id, index)
	}
	if len(ms.Verbs) != 1 {
		return nil, Errorf(KindConfiguration, "%s.%s must have exactly one HTTP method annotation, found %d", svc.name, ms.Name, len(ms.Verbs))
	}
	verb := strings.ToUpper(strings.TrimSpace(ms.Verbs[0].Verb))
	if verb == "" {
		return nil, Errorf(KindConfiguration, "%s.%s: empty HTTP method", svc.name, ms.Name)
	}

	m := &MethodDescriptor{
		service:  svc,
		name:     ms.Name,
		index:    index,
		verb:     verb,
		template: composeTemplate(svc.route, ms.Verbs[0].Template),
		result:   ms.Result,
		async:    ms.Async,
		params:   make([]*ParameterDescriptor, 0, len(ms.Params)),
		byName:   make(map[string]*ParameterDescriptor, len(ms.Params)),
	}

	var body *ParameterDescriptor
	for i, ps := range ms.Params {
		p, err := buildParam(m, i, ps)
		if err != nil {
			return nil, err
		}
		if _, dup := m.byName[p.name]; dup {
			return nil, Errorf(KindConfiguration, "%s: duplicate parameter %q", m.FullName(), p.name)
		}
		if p.source == SourceBody {
			if body != nil {
				return nil, Errorf(KindConfiguration, "%s: parameters %q and %q both bind to the body", m.FullName(), body.name, p.name)
			}
			body = p
		}
		m.params = append(m.params, p)
		m.byName[p.name] = p
	}
	for _, name := range placeholders(m.template) {
		if !m.fillsRoute(name) {
			return nil, Errorf(KindConfiguration, "%s: route placeholder {%s} has no route parameter", m.FullName(), name)
		}
	}
	return m, nil
}

func (m *MethodDescriptor) fillsRoute(name string) bool {
	for _, p := range m.params {
		if p.source == SourceRoute && p.wire == name {
			return true
		}
	}
	return false
}

// placeholders returns the {name} segments of a route template in order.
func placeholders(tmpl string) []string {
	var names []string
	for {
		i := strings.IndexByte(tmpl, '{')
		if i < 0 {
			return names
		}
		j := strings.IndexByte(tmpl[i:], '}')
		if j < 0 {
			return names
		}
		names = append(names, tmpl[i+1:i+j])
		tmpl = tmpl[i+j+1:]
	}
}

func buildParam(m *MethodDescriptor, index int, ps ParamSpec) (*ParameterDescriptor, error) {
	if ps.Name == "" {
		return nil, Errorf(KindConfiguration, "%s: parameter %d has no name", m.FullName(), index)
	}
	if ps.Type == nil {
		return nil, Errorf(KindConfiguration, "%s: parameter %q has no type", m.FullName(), ps.Name)
	}
	p := &ParameterDescriptor{
		method: m,
		name:   ps.Name,
		index:  index,
		wire:   ps.WireName,
		typ:    ps.Type,
		elem:   elementType(ps.Type),
		source: Classify(ps, m.template, m.verb),
	}
	if p.wire == "" {
		p.wire = p.name
	}
	if ps.HasDefault {
		def, err := parseDefault(ps.Default, ps.Type)
		if err != nil {
			return nil, wrapError(KindConfiguration, err, "%s: default of parameter %q", m.FullName(), ps.Name)
		}
		p.def, p.hasDef = def, true
	}
	return p, nil
}

// composeTemplate joins the service prefix with a method template. A method
// template starting with "/" replaces the prefix.
func composeTemplate(prefix, tmpl string) string {
	tmpl = strings.TrimRight(tmpl, "/")
	if strings.HasPrefix(tmpl, "/") {
		return tmpl
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "/" + tmpl
	}
	return "/" + prefix + "/" + tmpl
}

// parseDefault converts a textual default into a value of type t.
// "null" is the default of a pointer that defaults to nil.
func parseDefault(s string, t reflect.Type) (reflect.Value, error) {
	if !IsSimpleType(t) {
		return reflect.Value{}, fmt.Errorf("default values require a simple type, got %s", t)
	}
	if t.Kind() == reflect.Pointer {
		if s == "null" {
			return reflect.Zero(t), nil
		}
		elem, err := parseDefault(s, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	switch t {
	case timeType:
		v, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v), nil
	case durationType:
		v, err := time.ParseDuration(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v), nil
	case uuidType:
		v, err := uuid.Parse(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(v), nil
	case urlType:
		v, err := url.Parse(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(*v), nil
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetFloat(f)
	}
	return v, nil
}
