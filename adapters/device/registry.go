package device

import (
	"fmt"
	"sync"

	"github.com/satriahrh/medicinal/domain"
)

// Registry tracks which audio devices are currently claimed. A device can be
// owned by one live session at a time.
type Registry struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{claimed: make(map[string]struct{})}
}

// Claim takes exclusive ownership of name. It never blocks: if the device is
// already claimed it returns domain.ErrDeviceUnavailable. The returned release
// func is safe to call more than once.
func (r *Registry) Claim(name string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claimed[name]; ok {
		return nil, fmt.Errorf("%w: %s is already in use", domain.ErrDeviceUnavailable, name)
	}
	r.claimed[name] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.claimed, name)
			r.mu.Unlock()
		})
	}, nil
}

// InUse reports whether name is claimed.
func (r *Registry) InUse(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.claimed[name]
	return ok
}
