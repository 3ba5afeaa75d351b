package httprpc

import (
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ServiceRef names a service to add to a Group.
type ServiceRef struct {
	typ reflect.Type
	id  string
}

// ServiceOf refers to the service struct S.
func ServiceOf[S any]() ServiceRef {
	return ServiceRef{typ: reflect.TypeFor[S]()}
}

// ServiceID refers to a registered service by its stable ID.
func ServiceID(id string) ServiceRef {
	return ServiceRef{id: id}
}

func (r ServiceRef) String() string {
	if r.typ != nil {
		return r.typ.String()
	}
	return r.id
}

// Group is a set of services sharing a base address and hooks.
type Group struct {
	// BaseAddress is the absolute URL requests are sent to. Route templates
	// are appended to it.
	BaseAddress string `validate:"omitempty,url"`
	// ForwardAuthorization copies the Authorization header of the inbound
	// request onto outgoing requests. Defaults to true.
	ForwardAuthorization bool

	services []ServiceRef
	packages []string
	hooks    []Hook
}

// AddServices adds services to the group.
func (g *Group) AddServices(refs ...ServiceRef) *Group {
	g.services = append(g.services, refs...)
	return g
}

// AddPackage adds every service registered for the package with the given
// import path.
func (g *Group) AddPackage(importPath string) *Group {
	g.packages = append(g.packages, importPath)
	return g
}

// UseHooks adds hooks that run for this group's services only, after the
// builder-wide hooks.
func (g *Group) UseHooks(hooks ...Hook) *Group {
	g.hooks = append(g.hooks, hooks...)
	return g
}

// Builder configures a Factory.
type Builder struct {
	client   Doer
	logger   *slog.Logger
	registry *Registry
	hooks    []Hook
	groups   []*Group
}

// NewBuilder returns a builder that sends requests with http.DefaultClient
// and resolves services in DefaultRegistry.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithHTTPClient sets the client used to send requests.
func (b *Builder) WithHTTPClient(client Doer) *Builder {
	b.client = client
	return b
}

// WithLogger sets a custom logger.
// If not set, slog.Default() will be used.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRegistry sets the registry services are resolved in.
func (b *Builder) WithRegistry(r *Registry) *Builder {
	b.registry = r
	return b
}

// UseHooks adds hooks that run for every service.
//
// Hook execution order:
//  1. Base address (when the group sets one)
//  2. Authorization forwarding (when enabled)
//  3. Builder hooks (added via Builder.UseHooks)
//  4. Group hooks (added via Group.UseHooks)
//  5. Argument binding
//
// Within each level, hooks execute in the order they were added.
func (b *Builder) UseHooks(hooks ...Hook) *Builder {
	b.hooks = append(b.hooks, hooks...)
	return b
}

// AddGroup adds a group of services configured by fn.
func (b *Builder) AddGroup(fn func(g *Group)) *Builder {
	g := &Group{ForwardAuthorization: true}
	fn(g)
	b.groups = append(b.groups, g)
	return b
}

// Build validates the configuration and creates the endpoints.
func (b *Builder) Build() (*Factory, error) {
	reg := b.registry
	if reg == nil {
		reg = DefaultRegistry
	}
	f := &Factory{
		registry:  reg,
		endpoints: make(map[string]*Endpoint),
	}

	owner := make(map[string]int)
	for i, g := range b.groups {
		if err := validate.Struct(g); err != nil {
			return nil, FromValidation(KindConfiguration, err).WithDetail("group", i)
		}
		var base *url.URL
		if g.BaseAddress != "" {
			u, err := url.Parse(g.BaseAddress)
			if err != nil || !u.IsAbs() {
				return nil, Errorf(KindConfiguration, "group %d: base address %q is not an absolute URL", i, g.BaseAddress)
			}
			base = u
		}

		descs, err := g.resolve(reg)
		if err != nil {
			return nil, wrapError(KindConfiguration, err, "group %d", i)
		}
		hooks := chainHooks(base, g.ForwardAuthorization, b.hooks, g.hooks)
		for _, d := range descs {
			if prev, dup := owner[d.ID()]; dup {
				if prev == i {
					continue
				}
				return nil, Errorf(KindConfiguration, "service %s is in groups %d and %d", d.ID(), prev, i)
			}
			owner[d.ID()] = i
			e, err := newEndpoint(d, b.client, hooks, b.logger)
			if err != nil {
				return nil, err
			}
			f.endpoints[d.ID()] = e
		}
	}
	return f, nil
}

func (g *Group) resolve(reg *Registry) ([]*ServiceDescriptor, error) {
	var out []*ServiceDescriptor
	for _, ref := range g.services {
		if ref.typ != nil {
			d, err := reg.Describe(ref.typ)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
			continue
		}
		d, ok := reg.Lookup(ref.id)
		if !ok {
			return nil, fmt.Errorf("service %q is not registered", ref.id)
		}
		out = append(out, d)
	}
	for _, path := range g.packages {
		descs := reg.Package(path)
		if len(descs) == 0 {
			return nil, fmt.Errorf("no services registered for package %q", path)
		}
		out = append(out, descs...)
	}
	return out, nil
}

// Factory hands out proxies and clients for the configured services.
// It is safe for concurrent use.
type Factory struct {
	registry  *Registry
	endpoints map[string]*Endpoint
	clients   sync.Map // reflect.Type -> *Client[S]
}

// Endpoint returns the endpoint of the service with the given ID.
func (f *Factory) Endpoint(id string) (*Endpoint, error) {
	e, ok := f.endpoints[id]
	if !ok {
		return nil, Errorf(KindConfiguration, "service %s is not configured", id)
	}
	return e, nil
}

// Services returns the IDs of the configured services, sorted.
func (f *Factory) Services() []string {
	ids := make([]string, 0, len(f.endpoints))
	for id := range f.endpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClientFor returns the client of service struct S.
func ClientFor[S any](f *Factory) (*Client[S], error) {
	t := reflect.TypeFor[S]()
	if c, ok := f.clients.Load(t); ok {
		return c.(*Client[S]), nil
	}
	desc, err := f.registry.Describe(t)
	if err != nil {
		return nil, err
	}
	e, err := f.Endpoint(desc.ID())
	if err != nil {
		return nil, err
	}
	c, _ := f.clients.LoadOrStore(t, newClient[S](e))
	return c.(*Client[S]), nil
}

// Get returns the proxy of service struct S.
func Get[S any](f *Factory) (*S, error) {
	c, err := ClientFor[S](f)
	if err != nil {
		return nil, err
	}
	return c.Proxy(), nil
}
