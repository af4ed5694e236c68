package metrics

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PointFrequency is the tick interval the Collector reports on.
const PointFrequency = time.Second

// pointKind discriminates the messages a Collector accepts on its channel.
type pointKind int

const (
	pointChunksTotal pointKind = iota
	pointFilesTotal
	pointBytesTotal
	pointChunkProcessed
	pointFileProcessed
	pointBytesTransferred
	pointEnd
)

type point struct {
	kind pointKind
	n    int64
}

// Collector is the single background task that aggregates throughput and
// ETA for a push or pull run. It owns its counters exclusively: every
// update arrives as a message on points, so the tick goroutine never
// touches shared mutable state.
type Collector struct {
	points chan point
	done   chan struct{}
	once   sync.Once
	log    *logrus.Entry
}

// NewCollector starts the background tick goroutine and returns a handle
// to it. direction labels the log lines ("push" or "pull").
func NewCollector(direction string, log *logrus.Logger) *Collector {
	c := &Collector{
		points: make(chan point, 256),
		done:   make(chan struct{}),
		log:    logrus.NewEntry(log).WithField("component", "metrics.collector"),
	}
	go c.run(direction)
	return c
}

// ChunksTotal records the total number of chunks this run will process.
func (c *Collector) ChunksTotal(n int64) { c.points <- point{kind: pointChunksTotal, n: n} }

// FilesTotal records the total number of files this run will process.
func (c *Collector) FilesTotal(n int64) { c.points <- point{kind: pointFilesTotal, n: n} }

// BytesTotal records the total clear bytes this run will transfer.
func (c *Collector) BytesTotal(n int64) { c.points <- point{kind: pointBytesTotal, n: n} }

// ChunkProcessed marks one chunk complete.
func (c *Collector) ChunkProcessed() { c.points <- point{kind: pointChunkProcessed, n: 1} }

// FileProcessed marks one file complete.
func (c *Collector) FileProcessed() { c.points <- point{kind: pointFileProcessed, n: 1} }

// BytesTransferred adds n clear bytes to the running total.
func (c *Collector) BytesTransferred(n int64) {
	c.points <- point{kind: pointBytesTransferred, n: n}
}

// Close sends End and blocks until the tick goroutine has exited.
func (c *Collector) Close() {
	c.once.Do(func() {
		c.points <- point{kind: pointEnd}
		<-c.done
	})
}

func (c *Collector) run(direction string) {
	defer close(c.done)

	var (
		chunksTotal, filesTotal, bytesTotal       int64
		chunksDone, filesDone, bytesDone          int64
		windowBytes                               int64
		start                                     = time.Now()
	)

	ticker := time.NewTicker(PointFrequency)
	defer ticker.Stop()
	lastTick := start

	logTick := func() {
		now := time.Now()
		elapsed := now.Sub(lastTick).Seconds()
		lastTick = now

		rate := float64(0)
		if elapsed > 0 {
			rate = float64(windowBytes) / elapsed
		}
		windowBytes = 0

		avgRate := float64(0)
		if total := now.Sub(start).Seconds(); total > 0 {
			avgRate = float64(bytesDone) / total
		}

		percent := float64(0)
		if bytesTotal > 0 {
			percent = float64(bytesDone) / float64(bytesTotal) * 100
		}

		var eta time.Duration
		if avgRate > 0 && bytesTotal > bytesDone {
			eta = time.Duration(float64(bytesTotal-bytesDone)/avgRate) * time.Second
		}

		c.log.WithFields(logrus.Fields{
			"direction":    direction,
			"percent":      percent,
			"eta":          eta,
			"chunks_done":  chunksDone,
			"chunks_total": chunksTotal,
			"files_done":   filesDone,
			"files_total":  filesTotal,
			"rate_bps":     rate,
			"avg_rate_bps": avgRate,
		}).Info("progress")
	}

	for {
		select {
		case p := <-c.points:
			switch p.kind {
			case pointChunksTotal:
				chunksTotal = p.n
			case pointFilesTotal:
				filesTotal = p.n
			case pointBytesTotal:
				bytesTotal = p.n
			case pointChunkProcessed:
				chunksDone++
			case pointFileProcessed:
				filesDone++
			case pointBytesTransferred:
				bytesDone += p.n
				windowBytes += p.n
			case pointEnd:
				logTick()
				return
			}
		case <-ticker.C:
			logTick()
		}
	}
}
