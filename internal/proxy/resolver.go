package proxy

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNoProvider means no registered provider supports the host version.
	ErrNoProvider = errors.New("proxy: no provider for host version")
	// ErrAmbiguousProvider means more than one provider claims the host version.
	ErrAmbiguousProvider = errors.New("proxy: ambiguous providers for host version")
	// ErrNotCapability is returned when the requested type is not an interface.
	ErrNotCapability = errors.New("proxy: capability must be an interface type")
	// ErrProviderMismatch means a provider's instance does not implement its capability.
	ErrProviderMismatch = errors.New("proxy: provider does not implement capability")
)

// Provider is one version-gated implementation of a capability.
type Provider struct {
	Capability reflect.Type
	Name       string
	Applies    Predicate
	New        func(host Host) any
}

// CapabilityOf returns the reflect.Type for the interface T.
func CapabilityOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Binding is a resolved capability.
type Binding struct {
	Capability string
	Provider   string
	Instance   any
}

// Resolver picks, per capability, the single provider whose predicate
// matches the host version, and caches the instance for the process lifetime.
// Safe for concurrent use.
type Resolver struct {
	version   Version
	host      Host
	providers []Provider
	log       *zap.Logger

	mu    sync.Mutex
	cache map[reflect.Type]binding
}

type binding struct {
	provider string
	instance any
}

// NewResolver creates a resolver over providers for the given host version.
func NewResolver(version Version, host Host, providers []Provider, log *zap.Logger) *Resolver {
	return &Resolver{
		version:   version,
		host:      host,
		providers: providers,
		log:       log,
		cache:     make(map[reflect.Type]binding),
	}
}

// Version returns the host version the resolver was built for.
func (r *Resolver) Version() Version {
	return r.version
}

// Resolve returns the implementation of capability T for the host version.
// Repeated calls return the same instance.
func Resolve[T any](r *Resolver) (T, error) {
	var zero T
	inst, err := r.resolve(CapabilityOf[T]())
	if err != nil {
		return zero, err
	}
	impl, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("%s: %w", CapabilityOf[T](), ErrProviderMismatch)
	}
	return impl, nil
}

// MustResolve is Resolve for capabilities already checked by Preflight.
func MustResolve[T any](r *Resolver) T {
	impl, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return impl
}

// Preflight resolves every capability up front and joins the failures.
func (r *Resolver) Preflight(capabilities ...reflect.Type) error {
	var errs []error
	for _, c := range capabilities {
		if _, err := r.resolve(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bindings lists the resolved capabilities sorted by capability name.
func (r *Resolver) Bindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Binding, 0, len(r.cache))
	for t, b := range r.cache {
		out = append(out, Binding{Capability: t.String(), Provider: b.provider, Instance: b.instance})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Capability < out[j].Capability })
	return out
}

func (r *Resolver) resolve(capability reflect.Type) (any, error) {
	if capability == nil || capability.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%v: %w", capability, ErrNotCapability)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.cache[capability]; ok {
		return b.instance, nil
	}

	var matched []Provider
	for _, p := range r.providers {
		if p.Capability == capability && p.Applies(r.version) {
			matched = append(matched, p)
		}
	}
	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("%s on %s: %w", capability, r.version, ErrNoProvider)
	case 1:
	default:
		names := make([]string, len(matched))
		for i, p := range matched {
			names[i] = p.Name
		}
		return nil, fmt.Errorf("%s on %s (%v): %w", capability, r.version, names, ErrAmbiguousProvider)
	}

	p := matched[0]
	inst := p.New(r.host)
	if inst == nil || !reflect.TypeOf(inst).Implements(capability) {
		return nil, fmt.Errorf("%s by %s: %w", capability, p.Name, ErrProviderMismatch)
	}
	r.cache[capability] = binding{provider: p.Name, instance: inst}
	r.log.Info("capability bound",
		zap.String("capability", capability.String()),
		zap.String("provider", p.Name),
		zap.String("host_version", r.version.String()))
	return inst, nil
}
