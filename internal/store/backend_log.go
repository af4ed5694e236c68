package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/sirupsen/logrus"
)

// LogStore backs the store.type: log config key: an in-memory map that
// logs every put/get, useful for dry-run crawls and tests of the pipeline
// without a real backend.
type LogStore struct {
	log  *logrus.Entry
	mu   sync.Mutex
	objs map[string][]byte
}

// NewLogStore returns a LogStore.
func NewLogStore(log *logrus.Logger) *LogStore {
	return &LogStore{
		log:  logrus.NewEntry(log).WithField("component", "store.log"),
		objs: make(map[string][]byte),
	}
}

// Put logs and stores data in memory.
func (s *LogStore) Put(_ context.Context, uuid string, data []byte) error {
	s.log.WithFields(logrus.Fields{"uuid": uuid, "bytes": len(data)}).Debug("put")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objs[uuid] = append([]byte(nil), data...)
	return nil
}

// Get logs and returns the in-memory object.
func (s *LogStore) Get(_ context.Context, uuid string) ([]byte, error) {
	s.log.WithField("uuid", uuid).Debug("get")
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objs[uuid]
	if !ok {
		return nil, fmt.Errorf("%w: object %s not found", ferrors.ErrStore, uuid)
	}
	return data, nil
}
