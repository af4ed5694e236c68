package store

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// fsCache is the filesystem-backed cache: one file per uuid under a cache
// directory. Cache write failures are logged and never fatal.
type fsCache struct {
	dir string
	log *logrus.Entry
}

// NewFSCache returns a cache backend rooted at dir.
func NewFSCache(dir string, log *logrus.Logger) (cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fsCache{dir: dir, log: logrus.NewEntry(log).WithField("component", "store.cache.fs")}, nil
}

func (c *fsCache) path(uuid string) string {
	return filepath.Join(c.dir, uuid)
}

func (c *fsCache) load(uuid string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(uuid))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *fsCache) store(uuid string, data []byte) {
	tmp, err := os.CreateTemp(c.dir, uuid+".tmp-*")
	if err != nil {
		c.log.WithError(err).WithField("uuid", uuid).Warn("cache write failed")
		return
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		c.log.WithError(err).WithField("uuid", uuid).Warn("cache write failed")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		c.log.WithError(err).WithField("uuid", uuid).Warn("cache write failed")
		return
	}
	if err := os.Rename(tmpPath, c.path(uuid)); err != nil {
		os.Remove(tmpPath)
		c.log.WithError(err).WithField("uuid", uuid).Warn("cache write failed")
	}
}
