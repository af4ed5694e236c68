// Package pusher drives the push pipeline: pass 1 uploads chunked files
// chunk by chunk, pass 2 serializes each aggregate file's members into one
// tar archive and uploads it as a single chunk. Every chunk is processed
// as an independent pool job; finalize updates the catalog and, on the
// last sibling, the file's own row.
package pusher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kenneth/fs2cloud/internal/aggregate"
	"github.com/kenneth/fs2cloud/internal/audit"
	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/kenneth/fs2cloud/internal/envelope"
	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/kenneth/fs2cloud/internal/hash"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/kenneth/fs2cloud/internal/store"
	"github.com/kenneth/fs2cloud/internal/tracing"
	"github.com/kenneth/fs2cloud/internal/workerpool"
	"github.com/sirupsen/logrus"
)

// Pusher owns the catalog, the root filesystem tree, the store stack and
// the per-file hash registry for one push run.
type Pusher struct {
	cat       *catalog.Catalog
	root      string
	st        store.Store
	hashes    *hash.Registry
	pool      *workerpool.Pool
	collector *metrics.Collector
	m         *metrics.Metrics
	aud       audit.Logger
	log       *logrus.Entry
}

// New constructs a Pusher. pool and collector are owned by the caller and
// closed by the caller once Run returns. aud may be nil.
func New(cat *catalog.Catalog, root string, st store.Store, pool *workerpool.Pool, collector *metrics.Collector, m *metrics.Metrics, aud audit.Logger, log *logrus.Logger) *Pusher {
	return &Pusher{
		cat:       cat,
		root:      root,
		st:        st,
		hashes:    hash.NewRegistry(),
		pool:      pool,
		collector: collector,
		m:         m,
		aud:       aud,
		log:       logrus.NewEntry(log).WithField("component", "pusher"),
	}
}

// Run executes Pass 1 (Chunked files) then Pass 2 (Aggregate files),
// submitting every chunk as an independent pool job. It returns once every
// job is submitted; the jobs finish when the caller closes the pool.
func (p *Pusher) Run(ctx context.Context) error {
	if err := p.primeCollector(); err != nil {
		return err
	}

	if err := p.runChunked(ctx); err != nil {
		return err
	}
	if err := p.runAggregate(ctx); err != nil {
		return err
	}
	return nil
}

func (p *Pusher) primeCollector() error {
	if p.collector == nil {
		return nil
	}
	chunksPending, err := p.cat.Chunks.CountByStatus(catalog.StatusPending)
	if err != nil {
		return err
	}
	filesPending, err := p.cat.Files.CountByStatus(catalog.StatusPending)
	if err != nil {
		return err
	}
	bytesPending, err := p.cat.Files.CountBytesByStatus(catalog.StatusPending)
	if err != nil {
		return err
	}
	p.collector.ChunksTotal(chunksPending)
	p.collector.FilesTotal(filesPending)
	p.collector.BytesTotal(bytesPending)
	return nil
}

// runChunked is Pass 1: every Pending/Chunked file, every Pending chunk of
// that file read from the source tree and submitted as a job.
func (p *Pusher) runChunked(ctx context.Context) error {
	files, err := p.cat.Files.FindByStatusAndMode(catalog.StatusPending, catalog.ModeChunked)
	if err != nil {
		return err
	}

	for _, f := range files {
		chunks, err := p.cat.Chunks.FindByFileUUIDAndStatus(f.UUID, catalog.StatusPending)
		if err != nil {
			return err
		}
		srcPath := filepath.Join(p.root, filepath.FromSlash(f.Path))

		if err := p.primeHasher(f, srcPath); err != nil {
			p.log.WithError(err).WithField("file", f.Path).Error("resume: prime hasher")
			continue
		}
		if len(chunks) == 0 {
			// Every chunk finished in a previous run but the file row did
			// not; close it out now.
			if err := p.completeFile(f); err != nil {
				p.log.WithError(err).WithField("file", f.Path).Error("resume: complete file")
			}
			continue
		}

		for _, ch := range chunks {
			f, ch := f, ch
			p.pool.Execute(func() {
				p.pushChunkedJob(ctx, f, ch, srcPath)
			})
		}
	}
	return nil
}

// primeHasher re-reads the clear bytes of chunks already Done (from an
// earlier, interrupted run) into the file's ChunkedHasher so the whole-file
// digest still covers every chunk.
func (p *Pusher) primeHasher(f catalog.File, srcPath string) error {
	done, err := p.cat.Chunks.FindByFileUUIDAndStatus(f.UUID, catalog.StatusDone)
	if err != nil {
		return err
	}
	if len(done) == 0 {
		return nil
	}
	hasher := p.hashes.For(f.UUID)
	for _, ch := range done {
		clear, err := readSlice(srcPath, int64(ch.Offset), int64(ch.PayloadSize))
		if err != nil {
			return err
		}
		hasher.Update(clear, ch.Idx)
	}
	return nil
}

// completeFile finalizes the hasher and marks a file Done outside the
// per-chunk path; it runs only when no chunk is left Pending.
func (p *Pusher) completeFile(f catalog.File) error {
	hasher := p.hashes.For(f.UUID)
	fileSHA, err := hasher.Finalize()
	if err != nil {
		return err
	}
	p.hashes.Drop(f.UUID)

	if err := p.cat.Files.MarkDone(f.UUID, fileSHA); err != nil {
		return err
	}
	if p.aud != nil {
		p.aud.FileDone(f.Path, f.UUID, fileSHA)
	}
	if p.collector != nil {
		p.collector.FileProcessed()
	}
	return nil
}

func (p *Pusher) pushChunkedJob(ctx context.Context, f catalog.File, ch catalog.Chunk, srcPath string) {
	ctx, span := tracing.StartChunkSpan(ctx, "pusher.push_chunk", f.UUID, ch.Idx)
	defer span.End()

	log := p.log.WithFields(logrus.Fields{"file": f.Path, "idx": ch.Idx})

	clear, err := p.processChunk(ctx, f, ch, srcPath)
	if p.aud != nil {
		p.aud.ChunkPushed(f.Path, f.UUID, ch.UUID, ch.Idx, int64(len(clear)), err)
	}
	if err != nil {
		log.WithError(err).Error("push chunk")
		return
	}

	if p.m != nil {
		p.m.RecordChunkProcessed("push", int64(len(clear)))
	}
	if p.collector != nil {
		p.collector.ChunkProcessed()
		p.collector.BytesTransferred(int64(len(clear)))
	}
}

// processChunk reads, envelopes, uploads and finalizes one chunk, returning
// the clear payload for metrics.
func (p *Pusher) processChunk(ctx context.Context, f catalog.File, ch catalog.Chunk, srcPath string) ([]byte, error) {
	clear, err := readSlice(srcPath, int64(ch.Offset), int64(ch.PayloadSize))
	if err != nil {
		return nil, err
	}

	env := envelope.ClearChunk{
		Metadata: envelope.Metadata{File: f.UUID, Idx: ch.Idx, Total: f.Chunks, Offset: ch.Offset},
		Payload:  clear,
	}
	encoded, err := envelope.Encode(env)
	if err != nil {
		return clear, err
	}

	if err := p.st.Put(ctx, ch.UUID, encoded); err != nil {
		return clear, err
	}

	if err := p.finalize(f, ch, clear); err != nil {
		return clear, err
	}
	return clear, nil
}

// finalize marks the chunk Done and feeds the file's ChunkedHasher. When
// every sibling chunk is Done it finalizes the hasher and marks the file
// Done too.
func (p *Pusher) finalize(f catalog.File, ch catalog.Chunk, clear []byte) error {
	sum := sha256.Sum256(clear)
	clearSHA := hex.EncodeToString(sum[:])

	if err := p.cat.Chunks.MarkDone(ch.UUID, clearSHA, uint64(len(clear))); err != nil {
		return err
	}

	hasher := p.hashes.For(f.UUID)
	hasher.Update(clear, ch.Idx)

	siblings, err := p.cat.Chunks.FindSiblingsByUUID(ch.UUID)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		if sib.Status != catalog.StatusDone {
			return nil
		}
	}

	if err := p.completeFile(f); err != nil {
		if errors.Is(err, hash.ErrNotReady) {
			// Another chunk of this file is still in flight; a later
			// finalize call (its sibling's) will complete the file.
			return nil
		}
		return err
	}
	return nil
}

// runAggregate is Pass 2: every Pending/Aggregate file is serialized to a
// tar archive of its members and uploaded as its single chunk.
func (p *Pusher) runAggregate(ctx context.Context) error {
	files, err := p.cat.Files.FindByStatusAndMode(catalog.StatusPending, catalog.ModeAggregate)
	if err != nil {
		return err
	}

	for _, f := range files {
		f := f
		p.pool.Execute(func() {
			p.pushAggregateJob(ctx, f)
		})
	}
	return nil
}

func (p *Pusher) pushAggregateJob(ctx context.Context, f catalog.File) {
	ctx, span := tracing.StartChunkSpan(ctx, "pusher.push_aggregate", f.UUID, 0)
	defer span.End()

	log := p.log.WithField("aggregate", f.Path)

	archiveLen, err := p.processAggregate(ctx, f)
	if p.aud != nil {
		p.aud.ChunkPushed(f.Path, f.UUID, "", 0, archiveLen, err)
	}
	if err != nil {
		log.WithError(err).Error("push aggregate")
		return
	}

	if p.m != nil {
		p.m.RecordChunkProcessed("push", archiveLen)
	}
	if p.collector != nil {
		p.collector.ChunkProcessed()
		p.collector.FileProcessed()
		p.collector.BytesTransferred(archiveLen)
	}
}

// processAggregate serializes the aggregate's members to a tar archive,
// records its length on the chunk and file rows, uploads it, and marks
// both rows Done.
func (p *Pusher) processAggregate(ctx context.Context, f catalog.File) (int64, error) {
	members, err := p.cat.Aggregates.FindByAggregatePath(f.Path)
	if err != nil {
		return 0, err
	}

	archive, err := aggregate.Build(p.root, members)
	if err != nil {
		return 0, err
	}
	archiveLen := int64(len(archive))

	ch, found, err := p.cat.Chunks.FindByFileUUIDAndIndex(f.UUID, 0)
	if err != nil {
		return archiveLen, err
	}
	if !found {
		return archiveLen, fmt.Errorf("%w: aggregate %s has no chunk row", ferrors.ErrPlan, f.Path)
	}
	ch.PayloadSize = uint64(len(archive))
	if err := p.cat.Chunks.Update(ch); err != nil {
		return archiveLen, err
	}
	if err := p.cat.Files.SetSize(f.UUID, uint64(len(archive))); err != nil {
		return archiveLen, err
	}

	env := envelope.ClearChunk{
		Metadata: envelope.Metadata{File: f.UUID, Idx: 0, Total: 1, Offset: 0},
		Payload:  archive,
	}
	encoded, err := envelope.Encode(env)
	if err != nil {
		return archiveLen, err
	}
	if err := p.st.Put(ctx, ch.UUID, encoded); err != nil {
		return archiveLen, err
	}

	sum := sha256.Sum256(archive)
	digest := hex.EncodeToString(sum[:])
	if err := p.cat.Chunks.MarkDone(ch.UUID, digest, uint64(len(encoded))); err != nil {
		return archiveLen, err
	}
	if err := p.cat.Files.MarkDone(f.UUID, digest); err != nil {
		return archiveLen, err
	}
	if p.aud != nil {
		p.aud.FileDone(f.Path, f.UUID, digest)
	}
	return archiveLen, nil
}

func readSlice(path string, offset, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ferrors.ErrSourceIO, path, err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		return nil, fmt.Errorf("%w: seek %s: %v", ferrors.ErrSourceIO, path, err)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ferrors.ErrSourceIO, path, err)
	}
	return buf, nil
}
