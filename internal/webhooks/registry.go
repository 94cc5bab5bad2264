package webhooks

import (
	"sync"

	"hookd/pkg/errors"
)

// Factory builds a receiver for a given identifier. Receivers are
// registered as factories so one implementation can serve several ids.
type Factory func(id string) Receiver

// Registry maps receiver identifiers to receiver instances. It is
// populated at bootstrap; runtime mutation is only expected from tests.
type Registry struct {
	mu        sync.RWMutex
	receivers map[string]Receiver
}

func NewRegistry() *Registry {
	return &Registry{receivers: make(map[string]Receiver)}
}

// Register binds id to a receiver built by factory. Identifiers are
// unique; registering a taken id fails. An id freed by Unregister can
// be reused.
func (r *Registry) Register(id string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.receivers[id]; exists {
		return errors.ErrDuplicateReceiver.WithDetail("receiver_id", id)
	}
	r.receivers[id] = factory(id)
	return nil
}

func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.receivers[id]; !exists {
		return errors.ErrUnknownReceiver.WithDetail("receiver_id", id)
	}
	delete(r.receivers, id)
	return nil
}

func (r *Registry) Get(id string) (Receiver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recv, exists := r.receivers[id]
	if !exists {
		return nil, errors.ErrReceiverNotFound.WithDetail("receiver_id", id)
	}
	return recv, nil
}

// Load registers a batch of factories, stopping at the first failure.
func (r *Registry) Load(factories map[string]Factory) error {
	for id, factory := range factories {
		if err := r.Register(id, factory); err != nil {
			return err
		}
	}
	return nil
}
