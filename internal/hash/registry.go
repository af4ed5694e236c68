package hash

import "sync"

// Registry hands out one ChunkedHasher per file uuid, created lazily.
// Each hasher carries its own lock, so concurrent chunk jobs of the same
// file serialize only against each other.
type Registry struct {
	mu      sync.Mutex
	hashers map[string]*ChunkedHasher
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{hashers: make(map[string]*ChunkedHasher)}
}

// For returns the ChunkedHasher for fileUUID, creating it on first use.
func (r *Registry) For(fileUUID string) *ChunkedHasher {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hashers[fileUUID]
	if !ok {
		h = New()
		r.hashers[fileUUID] = h
	}
	return h
}

// Drop releases the hasher for fileUUID once the file has finalized.
func (r *Registry) Drop(fileUUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hashers, fileUUID)
}
