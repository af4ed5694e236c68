// Package store defines the opaque object-store capability — put(uuid,
// bytes) and get(uuid) -> bytes — and the layered stack built on top of
// it (metering, encrypt, cache). Backends are variants of the same
// capability with no shared base state.
package store

import "context"

// Store is the narrow put/get capability every layer and backend
// implements.
type Store interface {
	Put(ctx context.Context, uuid string, data []byte) error
	Get(ctx context.Context, uuid string) ([]byte, error)
}
