package httprpc

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry holds service descriptors. Generated code registers its specs in
// DefaultRegistry from init functions; service structs are described on first
// use and cached.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*ServiceDescriptor
	order []string

	types sync.Map // reflect.Type -> *ServiceDescriptor
	group singleflight.Group
}

// DefaultRegistry is the registry used by generated code and by builders that
// do not set one with WithRegistry.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*ServiceDescriptor),
	}
}

// Register builds spec and stores it under its ID.
func (r *Registry) Register(spec ServiceSpec) error {
	desc, err := BuildService(spec)
	if err != nil {
		return err
	}
	_, err = r.store(desc)
	return err
}

// MustRegister registers spec in DefaultRegistry and panics on error.
func MustRegister(spec ServiceSpec) {
	if err := DefaultRegistry.Register(spec); err != nil {
		panic(err)
	}
}

// store registers desc and returns the canonical descriptor for its ID, which
// is the one stored first when an equal contract is registered again.
func (r *Registry) store(desc *ServiceDescriptor) (*ServiceDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byID[desc.ID()]; ok {
		if prev.Equal(desc) {
			return prev, nil
		}
		return nil, Errorf(KindConfiguration, "service %s is already registered with a different contract", desc.ID())
	}
	r.byID[desc.ID()] = desc
	r.order = append(r.order, desc.ID())
	return desc, nil
}

// Describe returns the descriptor of a service struct type, building it on
// first use. Concurrent first calls for the same type build it once; every
// caller observes the same fully built descriptor.
func (r *Registry) Describe(t reflect.Type) (*ServiceDescriptor, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if d, ok := r.types.Load(t); ok {
		return d.(*ServiceDescriptor), nil
	}
	v, err, _ := r.group.Do(fmt.Sprintf("%v@%p", t, t), func() (any, error) {
		if d, ok := r.types.Load(t); ok {
			return d, nil
		}
		spec, err := Describe(t)
		if err != nil {
			return nil, err
		}
		desc, err := BuildService(spec)
		if err != nil {
			return nil, err
		}
		canon, err := r.store(desc)
		if err != nil {
			return nil, err
		}
		r.types.Store(t, canon)
		return canon, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ServiceDescriptor), nil
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (*ServiceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Package returns the services registered for the package with the given
// import path, in registration order.
func (r *Registry) Package(path string) []*ServiceDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ServiceDescriptor
	for _, id := range r.order {
		if servicePackage(id) == path {
			out = append(out, r.byID[id])
		}
	}
	return out
}

// IDs returns the registered service IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// servicePackage returns the import path part of a service ID.
func servicePackage(id string) string {
	i := strings.LastIndex(id, ".")
	if i < 0 || strings.Contains(id[i+1:], "/") {
		return ""
	}
	return id[:i]
}
