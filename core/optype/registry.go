package optype

import (
	"reflect"
	"sort"
	"sync"

	"go.dedis.ch/concord"
	"golang.org/x/xerrors"
)

// Registry maps the names of the operation types to their implementation. It
// is read-mostly: lookups share a read lock and never wait for each other.
type Registry struct {
	sync.RWMutex

	types    map[string]OperationType
	capacity int
}

// RegistryOption is the type of option to create a registry.
type RegistryOption func(*Registry)

// WithCapacity sets the maximum number of operation types. Zero means no
// limit.
func WithCapacity(n int) RegistryOption {
	return func(r *Registry) {
		r.capacity = n
	}
}

// NewRegistry returns a new empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		types: make(map[string]OperationType),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Add registers the operation type. It fails if the operation type is
// incomplete, if its name is already taken or if the registry is full. An
// existing entry is never replaced.
func (r *Registry) Add(t OperationType) error {
	if isNil(t) {
		return xerrors.Errorf("operation type is nil: %w", concord.BadOperationType)
	}

	name := t.GetName()
	if name == "" {
		return xerrors.Errorf("name is empty: %w", concord.BadOperationType)
	}

	checker, ok := t.(Checker)
	if ok {
		err := checker.Check()
		if err != nil {
			return xerrors.Errorf("operation type '%s' is incomplete: %w", name, err)
		}
	}

	r.Lock()
	defer r.Unlock()

	_, found := r.types[name]
	if found {
		return xerrors.Errorf("operation type '%s' exists: %w", name, concord.DuplicateOperationType)
	}

	if r.capacity > 0 && len(r.types) >= r.capacity {
		return xerrors.Errorf("registry is full (%d): %w", r.capacity, concord.OutOfMemory)
	}

	r.types[name] = t

	concord.Logger.Debug().Str("optype", name).Msg("operation type registered")

	return nil
}

// Get returns the operation type with the given name.
func (r *Registry) Get(name string) (OperationType, error) {
	r.RLock()
	t, found := r.types[name]
	r.RUnlock()

	if !found {
		return nil, xerrors.Errorf("operation type '%s' not found: %w", name, concord.BadOperationType)
	}

	return t, nil
}

// Len returns the number of operation types.
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()

	return len(r.types)
}

// Names returns the sorted list of names of the operation types.
func (r *Registry) Names() []string {
	r.RLock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	r.RUnlock()

	sort.Strings(names)

	return names
}

// isNil returns true if the operation type is nil, including a nil pointer
// behind the interface.
func isNil(t OperationType) bool {
	if t == nil {
		return true
	}

	v := reflect.ValueOf(t)

	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
