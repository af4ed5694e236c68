// Package hash implements ChunkedHasher: a streaming SHA-256 accumulator
// over a file's clear bytes that tolerates out-of-order chunk arrival and
// produces the same digest for any feed order covering every chunk.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	hashpkg "hash"
	"sync"
)

// ErrNotReady is returned by Finalize when chunks are still missing.
var ErrNotReady = errors.New("hash: not ready")

// ChunkedHasher computes SHA-256 over the concatenation of chunk payloads
// in index order, regardless of the order Update is called in.
type ChunkedHasher struct {
	mu        sync.Mutex
	h         hashpkg.Hash
	nextBlock uint64
	pending   map[uint64][]byte
}

// New returns a fresh ChunkedHasher.
func New() *ChunkedHasher {
	return &ChunkedHasher{
		h:       sha256.New(),
		pending: make(map[uint64][]byte),
	}
}

// Update feeds the clear bytes of chunk idx into the accumulator. Chunks
// arriving ahead of nextBlock are stashed; once the expected index is fed,
// every contiguous stashed chunk that follows is drained too.
func (c *ChunkedHasher) Update(payload []byte, idx uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx > c.nextBlock {
		buf := make([]byte, len(payload))
		copy(buf, payload)
		c.pending[idx] = buf
		return
	}

	c.h.Write(payload)
	c.nextBlock++

	for {
		next, ok := c.pending[c.nextBlock]
		if !ok {
			break
		}
		c.h.Write(next)
		delete(c.pending, c.nextBlock)
		c.nextBlock++
	}
}

// Finalize returns the hex SHA-256 digest if at least one chunk was fed
// and none is still pending, and resets the accumulator for reuse;
// otherwise ErrNotReady. The fed-nothing guard makes a lost finalize race
// benign: the second caller sees a reset accumulator and backs off.
func (c *ChunkedHasher) Finalize() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nextBlock == 0 || len(c.pending) != 0 {
		return "", ErrNotReady
	}

	digest := hex.EncodeToString(c.h.Sum(nil))
	c.h = sha256.New()
	c.nextBlock = 0
	return digest, nil
}
