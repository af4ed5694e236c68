// Package planner implements the crawl pass: a depth-first walk of the
// backup root that classifies every regular file as chunked or aggregated
// and populates the catalog's files, chunks, aggregates and inodes
// tables.
package planner

import (
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/ryanuber/go-glob"
	"github.com/sirupsen/logrus"
)

// Config controls how the Planner classifies and groups files.
type Config struct {
	ChunkSize        int64
	AggregateMinSize int64
	AggregateSize    int64
	Ignore           []string
}

// Planner walks a local tree and records it into the catalog.
type Planner struct {
	cat *catalog.Catalog
	cfg Config
	log *logrus.Entry

	// aggGroup tracks the currently open aggregate archive across the
	// walk: its synthetic File uuid/path and the clear bytes assigned to
	// it so far. A new group opens when none is open or the next member
	// would exceed cfg.AggregateSize.
	aggGroup     string
	aggGroupSize int64
}

// New returns a Planner bound to cat.
func New(cat *catalog.Catalog, cfg Config, log *logrus.Logger) *Planner {
	return &Planner{cat: cat, cfg: cfg, log: logrus.NewEntry(log).WithField("component", "planner")}
}

// Crawl walks root depth-first, creating or reusing File/Chunk/Aggregate/
// Inode rows for every regular file not matched by an ignore glob.
// Unreadable entries, symlinks, and other non-regular files are logged and
// skipped; an error under one subtree never halts the rest of the walk.
func (p *Planner) Crawl(root string) error {
	root = filepath.Clean(root)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.log.WithError(err).WithField("path", path).Warn("skip unreadable entry")
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			p.log.WithError(relErr).WithField("path", path).Warn("skip entry outside root")
			return nil
		}
		rel = filepath.ToSlash(rel)

		if p.matchesIgnore(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			p.log.WithError(infoErr).WithField("path", rel).Warn("skip entry: stat failed")
			return nil
		}
		if !info.Mode().IsRegular() {
			p.log.WithField("path", rel).Debug("skip non-regular entry")
			return nil
		}

		if err := p.planFile(rel, info.Size()); err != nil {
			p.log.WithError(err).WithField("path", rel).Error("skip file: plan failed")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: crawl %s: %v", ferrors.ErrPlan, root, err)
	}
	return nil
}

func (p *Planner) matchesIgnore(rel string) bool {
	for _, pattern := range p.cfg.Ignore {
		if glob.Glob(pattern, rel) {
			return true
		}
	}
	return false
}

func (p *Planner) planFile(rel string, size int64) error {
	f, found, err := p.cat.Files.FindByPath(rel)
	if err != nil {
		return err
	}

	if !found {
		f, err = p.createFile(rel, size)
		if err != nil {
			return err
		}
	}

	switch f.Mode {
	case catalog.ModeChunked:
		return p.fillChunks(f)
	case catalog.ModeAggregated:
		return p.assignAggregate(f)
	default:
		return fmt.Errorf("%w: file %s has unexpected mode %s", ferrors.ErrPlan, rel, f.Mode)
	}
}

func (p *Planner) createFile(rel string, size int64) (catalog.File, error) {
	mode := catalog.ModeChunked
	if size < p.cfg.AggregateMinSize {
		mode = catalog.ModeAggregated
	}

	chunks := uint64(0)
	if mode == catalog.ModeChunked {
		chunks = uint64(math.Ceil(float64(size) / float64(p.cfg.ChunkSize)))
		if chunks == 0 {
			chunks = 1
		}
	}

	f := catalog.File{
		UUID:   uuid.New().String(),
		Path:   rel,
		SHA256: "",
		Size:   uint64(size),
		Chunks: chunks,
		Mode:   mode,
		Status: catalog.StatusPending,
	}
	if err := p.cat.Files.Insert(f); err != nil {
		return catalog.File{}, err
	}
	if err := p.insertInodeChain(rel, f.UUID); err != nil {
		return catalog.File{}, err
	}
	return f, nil
}

// insertInodeChain walks rel's directory components under the root inode
// (id 0), creating directory inodes lazily, then inserts the leaf file
// inode carrying fileUUID.
func (p *Planner) insertInodeChain(rel, fileUUID string) error {
	dir, name := filepath.Split(rel)
	dir = strings.Trim(dir, "/")

	parentID := uint64(0)
	if dir != "" {
		for _, comp := range strings.Split(dir, "/") {
			ino, err := p.cat.Inodes.GetOrCreateChild(parentID, comp)
			if err != nil {
				return err
			}
			parentID = ino.ID
		}
	}

	_, err := p.cat.Inodes.InsertInode(name, parentID, fileUUID)
	return err
}

func (p *Planner) fillChunks(f catalog.File) error {
	for idx := uint64(0); idx < f.Chunks; idx++ {
		_, found, err := p.cat.Chunks.FindByFileUUIDAndIndex(f.UUID, idx)
		if err != nil {
			return err
		}
		if found {
			continue
		}

		offset := idx * uint64(p.cfg.ChunkSize)
		payloadSize := uint64(p.cfg.ChunkSize)
		if remaining := f.Size - offset; remaining < payloadSize {
			payloadSize = remaining
		}

		ch := catalog.Chunk{
			UUID:        uuid.New().String(),
			FileUUID:    f.UUID,
			Idx:         idx,
			SHA256:      "",
			Offset:      offset,
			Size:        0,
			PayloadSize: payloadSize,
			Status:      catalog.StatusPending,
		}
		if err := p.cat.Chunks.Insert(ch); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) assignAggregate(f catalog.File) error {
	if _, found, err := p.cat.Aggregates.FindByFilePath(f.Path); err != nil {
		return err
	} else if found {
		return nil
	}

	if p.aggGroup == "" || p.aggGroupSize+int64(f.Size) > p.cfg.AggregateSize {
		aggUUID := uuid.New().String()
		aggPath := aggUUID + ".tar"

		agg := catalog.File{
			UUID:   aggUUID,
			Path:   aggPath,
			SHA256: "",
			Size:   0,
			Chunks: 1,
			Mode:   catalog.ModeAggregate,
			Status: catalog.StatusPending,
		}
		if err := p.cat.Files.Insert(agg); err != nil {
			return err
		}
		if err := p.insertInodeChain(aggPath, aggUUID); err != nil {
			return err
		}
		ch := catalog.Chunk{
			UUID:        uuid.New().String(),
			FileUUID:    aggUUID,
			Idx:         0,
			SHA256:      "",
			Offset:      0,
			Size:        0,
			PayloadSize: 0,
			Status:      catalog.StatusPending,
		}
		if err := p.cat.Chunks.Insert(ch); err != nil {
			return err
		}

		p.aggGroup = aggPath
		p.aggGroupSize = 0
	}

	if err := p.cat.Aggregates.Insert(p.aggGroup, f.Path); err != nil {
		return err
	}
	p.aggGroupSize += int64(f.Size)
	return nil
}
