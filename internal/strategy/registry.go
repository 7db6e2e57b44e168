package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named spread and amount policies for selection by config.
type Registry struct {
	mu      sync.RWMutex
	spreads map[string]SpreadStrategy
	amounts map[string]AmountStrategy
}

// NewRegistry returns an empty registry. Call the Register methods to add
// policies.
func NewRegistry() *Registry {
	return &Registry{
		spreads: make(map[string]SpreadStrategy),
		amounts: make(map[string]AmountStrategy),
	}
}

// RegisterSpread adds a spread policy under its own name.
func (r *Registry) RegisterSpread(s SpreadStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spreads[s.Name()] = s
}

// RegisterAmount adds an amount policy under its own name.
func (r *Registry) RegisterAmount(a AmountStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.amounts[a.Name()] = a
}

// Spread returns the spread policy by name, or an error if not found.
func (r *Registry) Spread(name string) (SpreadStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spreads[name]
	if !ok {
		return nil, fmt.Errorf("spread strategy %q not found", name)
	}
	return s, nil
}

// Amount returns the amount policy by name, or an error if not found.
func (r *Registry) Amount(name string) (AmountStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.amounts[name]
	if !ok {
		return nil, fmt.Errorf("amount strategy %q not found", name)
	}
	return a, nil
}

// List returns the registered policy names, sorted, for diagnostics.
func (r *Registry) List() (spreads, amounts []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for n := range r.spreads {
		spreads = append(spreads, n)
	}
	for n := range r.amounts {
		amounts = append(amounts, n)
	}
	sort.Strings(spreads)
	sort.Strings(amounts)
	return spreads, amounts
}
