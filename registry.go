package ndep

import (
	"sort"
)

// ProviderRegistry maps keys to the producers that provide them.
// It is not safe for concurrent mutation.
type ProviderRegistry struct {
	producers map[Key]*Producer
	order     []Key
}

// NewProviderRegistry creates an empty registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		producers: make(map[Key]*Producer),
	}
}

// Register adds a producer.  If there is already a producer for the
// same key, it is replaced.
func (r *ProviderRegistry) Register(p *Producer) {
	k := p.Produces()
	if _, ok := r.producers[k]; !ok {
		r.order = append(r.order, k)
	} else {
		debugf("override provider for %s with %s", k, p.Name())
	}
	r.producers[k] = p
}

// Lookup finds the producer for a key.  Qualified keys are
// looked up by their base key.
func (r *ProviderRegistry) Lookup(k Key) (*Producer, bool) {
	p, ok := r.producers[k.Base()]
	return p, ok
}

// Remove forgets the producer for a key
func (r *ProviderRegistry) Remove(k Key) {
	k = k.Base()
	if _, ok := r.producers[k]; !ok {
		return
	}
	delete(r.producers, k)
	for i, o := range r.order {
		if o == k {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
}

// Keys returns the registered keys in the order they were
// first registered.
func (r *ProviderRegistry) Keys() []Key {
	return append([]Key(nil), r.order...)
}

// Len is the number of registered producers
func (r *ProviderRegistry) Len() int {
	return len(r.producers)
}

// Clone makes an independent copy of the registry.
func (r *ProviderRegistry) Clone() *ProviderRegistry {
	c := &ProviderRegistry{
		producers: make(map[Key]*Producer, len(r.producers)),
		order:     append([]Key(nil), r.order...),
	}
	for k, p := range r.producers {
		c.producers[k] = p
	}
	return c
}

// StateRegistry records the names of values that callers supply
// when they call an injected function and the keys those values
// stand in for.
type StateRegistry struct {
	byName map[string]Key
	byKey  map[Key]string
}

// NewStateRegistry creates an empty registry
func NewStateRegistry() *StateRegistry {
	return &StateRegistry{
		byName: make(map[string]Key),
		byKey:  make(map[Key]string),
	}
}

// Declare merges required state into the registry.  Redeclaring a
// name replaces its key.  Two names cannot supply the same key.
// On error, the registry is unchanged.
func (r *StateRegistry) Declare(required map[string]Key) error {
	byName := make(map[string]Key, len(r.byName)+len(required))
	for n, k := range r.byName {
		byName[n] = k
	}
	for n, k := range required {
		byName[n] = k.Base()
	}
	byKey, err := reverseState(byName)
	if err != nil {
		return err
	}
	r.byName = byName
	r.byKey = byKey
	return nil
}

// Set replaces all required state
func (r *StateRegistry) Set(required map[string]Key) error {
	byName := make(map[string]Key, len(required))
	for n, k := range required {
		byName[n] = k.Base()
	}
	byKey, err := reverseState(byName)
	if err != nil {
		return err
	}
	r.byName = byName
	r.byKey = byKey
	return nil
}

func reverseState(byName map[string]Key) (map[Key]string, error) {
	byKey := make(map[Key]string, len(byName))
	for _, n := range sortedNames(byName) {
		k := byName[n]
		if other, ok := byKey[k]; ok {
			return nil, &DuplicateStateKeyError{Key: k, Names: []string{other, n}}
		}
		byKey[k] = n
	}
	return byKey, nil
}

// Lookup returns the key supplied by a state name
func (r *StateRegistry) Lookup(name string) (Key, bool) {
	k, ok := r.byName[name]
	return k, ok
}

// IsRequiredKey returns the state name that supplies a key, if any.
func (r *StateRegistry) IsRequiredKey(k Key) (string, bool) {
	n, ok := r.byKey[k.Base()]
	return n, ok
}

// Names returns the declared state names, sorted
func (r *StateRegistry) Names() []string {
	return sortedNames(r.byName)
}

// Clone makes an independent copy of the registry.
func (r *StateRegistry) Clone() *StateRegistry {
	c := NewStateRegistry()
	for n, k := range r.byName {
		c.byName[n] = k
		c.byKey[k] = n
	}
	return c
}

func sortedNames(m map[string]Key) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
