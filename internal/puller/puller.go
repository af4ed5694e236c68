// Package puller reconstructs a single file from its stored chunks (or,
// for an aggregated file, from its enclosing archive) into a destination
// path. A single writer goroutine owns the destination file handle;
// per-chunk jobs run in parallel on the caller's pool and hand finished
// bytes to the writer over a bounded channel, so chunk arrival order never
// needs to match write order.
package puller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kenneth/fs2cloud/internal/aggregate"
	"github.com/kenneth/fs2cloud/internal/audit"
	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/kenneth/fs2cloud/internal/envelope"
	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/kenneth/fs2cloud/internal/store"
	"github.com/kenneth/fs2cloud/internal/tracing"
	"github.com/kenneth/fs2cloud/internal/workerpool"
	"github.com/sirupsen/logrus"
)

// writerMsg is one instruction to the writer goroutine: a slice to place
// at offset, or the done signal once every job has finished.
type writerMsg struct {
	offset  int64
	payload []byte
	done    bool
}

// Puller restores files from the catalog and store stack into a local
// destination tree.
type Puller struct {
	cat *catalog.Catalog
	st  store.Store
	m   *metrics.Metrics
	aud audit.Logger
	log *logrus.Entry
}

// New constructs a Puller. aud may be nil.
func New(cat *catalog.Catalog, st store.Store, m *metrics.Metrics, aud audit.Logger, log *logrus.Logger) *Puller {
	return &Puller{cat: cat, st: st, m: m, aud: aud, log: logrus.NewEntry(log).WithField("component", "puller")}
}

// Pull restores the file at logical path src into the local path dst,
// using pool to parallelize per-chunk fetch+decrypt. It returns a single
// top-level error; when it returns one after the destination was created,
// the destination file is truncated to zero length. A chunk job that fails
// to fetch or decode its chunk only logs the failure: Pull still returns
// nil and that chunk's range of the sparse destination stays unwritten.
func (p *Puller) Pull(ctx context.Context, pool *workerpool.Pool, src, dst string) error {
	f, found, err := p.cat.Files.FindByPath(src)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: file not found: %s", ferrors.ErrPlan, src)
	}
	if f.Mode == catalog.ModeAggregate {
		return fmt.Errorf("%w: cannot pull an aggregate archive directly: %s", ferrors.ErrFS, src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("%w: create destination directories: %v", ferrors.ErrSourceIO, err)
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create destination %s: %v", ferrors.ErrSourceIO, dst, err)
	}
	if err := out.Truncate(int64(f.Size)); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("%w: size destination %s: %v", ferrors.ErrSourceIO, dst, err)
	}

	writer := make(chan writerMsg, pool.Workers())
	writerDone := make(chan error, 1)
	go p.runWriter(out, writer, writerDone)

	var jobErr error
	switch f.Mode {
	case catalog.ModeChunked:
		jobErr = p.submitChunked(ctx, pool, f, writer)
	case catalog.ModeAggregated:
		jobErr = p.submitAggregated(ctx, f, writer)
	default:
		jobErr = fmt.Errorf("%w: unsupported mode %s", ferrors.ErrFS, f.Mode)
	}

	// The pool's drain callback tells the writer no more chunks are
	// coming; Close blocks until every fetch job has handed off.
	pool.WithCallback(func() {
		writer <- writerMsg{done: true}
	})
	pool.Close()
	writeErr := <-writerDone
	out.Close()

	err = jobErr
	if err == nil {
		err = writeErr
	}
	if p.aud != nil {
		p.aud.FileRestored(f.Path, f.UUID, int64(f.Size), err)
	}
	if err != nil {
		// Truncate rather than delete so a retried pull starts clean
		// without racing a concurrent open of the same path.
		os.Truncate(dst, 0)
		return err
	}
	return nil
}

func (p *Puller) runWriter(out *os.File, msgs <-chan writerMsg, done chan<- error) {
	for msg := range msgs {
		if msg.done {
			done <- nil
			return
		}
		if _, err := out.WriteAt(msg.payload, msg.offset); err != nil {
			done <- fmt.Errorf("%w: write destination at %d: %v", ferrors.ErrSourceIO, msg.offset, err)
			// Drain remaining messages so producers never block forever
			// on a channel nobody is reading.
			for range msgs {
			}
			return
		}
	}
	done <- nil
}

func (p *Puller) submitChunked(ctx context.Context, pool *workerpool.Pool, f catalog.File, writer chan<- writerMsg) error {
	chunks, err := p.cat.Chunks.FindByFileUUID(f.UUID)
	if err != nil {
		return err
	}
	for _, ch := range chunks {
		ch := ch
		pool.Execute(func() {
			p.fetchChunkJob(ctx, ch, writer)
		})
	}
	return nil
}

func (p *Puller) fetchChunkJob(ctx context.Context, ch catalog.Chunk, writer chan<- writerMsg) {
	ctx, span := tracing.StartChunkSpan(ctx, "puller.fetch_chunk", ch.FileUUID, ch.Idx)
	defer span.End()

	log := p.log.WithField("chunk", ch.UUID)

	raw, err := p.st.Get(ctx, ch.UUID)
	if err != nil {
		if p.aud != nil {
			p.aud.ChunkPulled("", ch.FileUUID, ch.UUID, ch.Idx, 0, err)
		}
		log.WithError(err).Error("store get")
		return
	}
	clear, err := envelope.Decode(raw)
	if err != nil {
		if p.aud != nil {
			p.aud.ChunkPulled("", ch.FileUUID, ch.UUID, ch.Idx, 0, err)
		}
		log.WithError(err).Error("decode envelope")
		return
	}

	if p.aud != nil {
		p.aud.ChunkPulled("", ch.FileUUID, ch.UUID, ch.Idx, int64(len(clear.Payload)), nil)
	}
	if p.m != nil {
		p.m.RecordChunkProcessed("pull", int64(len(clear.Payload)))
	}
	writer <- writerMsg{offset: int64(clear.Metadata.Offset), payload: clear.Payload}
}

func (p *Puller) submitAggregated(ctx context.Context, f catalog.File, writer chan<- writerMsg) error {
	aggPath, found, err := p.cat.Aggregates.FindByFilePath(f.Path)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: no aggregate link for %s", ferrors.ErrFS, f.Path)
	}
	aggFile, found, err := p.cat.Files.FindByPath(aggPath)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: aggregate file %s not found", ferrors.ErrFS, aggPath)
	}
	aggChunk, found, err := p.cat.Chunks.FindByFileUUIDAndIndex(aggFile.UUID, 0)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: aggregate chunk missing for %s", ferrors.ErrFS, aggPath)
	}

	raw, err := p.st.Get(ctx, aggChunk.UUID)
	if err != nil {
		return err
	}
	clear, err := envelope.Decode(raw)
	if err != nil {
		return err
	}

	body, err := aggregate.ReadMember(clear.Payload, f.Path)
	if err != nil {
		return err
	}
	writer <- writerMsg{offset: 0, payload: body}
	return nil
}
