package metrics

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestCollector_CloseDrains(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	c := NewCollector("push", log)
	c.ChunksTotal(3)
	c.FilesTotal(1)
	c.BytesTotal(300)

	c.ChunkProcessed()
	c.BytesTransferred(100)
	c.ChunkProcessed()
	c.BytesTransferred(100)
	c.ChunkProcessed()
	c.BytesTransferred(100)
	c.FileProcessed()

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return: tick goroutine appears stuck")
	}
}

func TestCollector_CloseIsIdempotent(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	c := NewCollector("pull", log)
	c.Close()
	c.Close() // must not panic or block a second time
}
