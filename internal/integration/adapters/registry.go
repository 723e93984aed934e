package adapters

import (
	"sort"
	"strings"

	"github.com/smallbiznis/gstbill/internal/integration/domain"
)

// Registry indexes adapters by category and provider key.
type Registry struct {
	adapters map[domain.Category]map[string]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[domain.Category]map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		registry.Register(adapter)
	}
	return registry
}

func (r *Registry) Register(adapter domain.Adapter) {
	if adapter == nil {
		return
	}
	key := NormalizeKey(adapter.Key())
	if key == "" {
		return
	}
	byKey, ok := r.adapters[adapter.Category()]
	if !ok {
		byKey = map[string]domain.Adapter{}
		r.adapters[adapter.Category()] = byKey
	}
	byKey[key] = adapter
}

func (r *Registry) Lookup(category domain.Category, key string) (domain.Adapter, bool) {
	if r == nil {
		return nil, false
	}
	adapter, ok := r.adapters[category][NormalizeKey(key)]
	return adapter, ok
}

// Keys returns the provider keys of a category in sorted order.
func (r *Registry) Keys(category domain.Category) []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.adapters[category]))
	for key := range r.adapters[category] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeKey lower-cases and trims a provider key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
