package broker

import (
	"sort"
	"strings"

	"github.com/go-training/integration-broker/pkg/core"
)

// Registry maps provider names to their brokers.
type Registry struct {
	brokers map[string]*Broker
}

// NewRegistry registers each broker under its provider name.
func NewRegistry(brokers ...*Broker) *Registry {
	r := &Registry{brokers: make(map[string]*Broker, len(brokers))}
	for _, b := range brokers {
		r.brokers[b.Name()] = b
	}
	return r
}

// Get returns the broker for name, or an InvalidRequest error.
func (r *Registry) Get(name string) (*Broker, error) {
	b, ok := r.brokers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, core.NewError(core.KindInvalidRequest, "unknown provider "+name)
	}
	return b, nil
}

// Names lists the registered providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.brokers))
	for name := range r.brokers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
