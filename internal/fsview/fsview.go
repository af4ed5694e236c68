// Package fsview exposes the catalog as a read-only FUSE filesystem:
// lookup, attributes, directory listing and offset/size reads, dispatching
// on a file's mode (chunked, aggregate, aggregated). Built on
// hanwen/go-fuse/v2's node API.
package fsview

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/kenneth/fs2cloud/internal/aggregate"
	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/kenneth/fs2cloud/internal/envelope"
	"github.com/kenneth/fs2cloud/internal/store"
	"github.com/sirupsen/logrus"
)

// View holds the shared state every Node reaches back into: the catalog
// and the encrypt+cache StoreStack reads flow through.
type View struct {
	cat *catalog.Catalog
	st  store.Store
	log *logrus.Entry
}

// New returns a View backed by cat and st.
func New(cat *catalog.Catalog, st store.Store, log *logrus.Logger) *View {
	return &View{cat: cat, st: st, log: logrus.NewEntry(log).WithField("component", "fsview")}
}

// Mount starts serving the view at mountpoint and blocks until unmounted.
func (v *View) Mount(mountpoint string) error {
	root := &Node{view: v, ino: catalog.Inode{ID: 0}}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName:     "fs2cloud",
			Name:       "fs2cloud",
			AllowOther: false,
		},
	})
	if err != nil {
		return err
	}
	server.Wait()
	return nil
}

// Node is one inode in the mounted tree, backed by a catalog.Inode.
type Node struct {
	fs.Inode
	view *View
	ino  catalog.Inode
}

var (
	_ fs.NodeLookuper  = (*Node)(nil)
	_ fs.NodeGetattrer = (*Node)(nil)
	_ fs.NodeReaddirer = (*Node)(nil)
	_ fs.NodeOpener    = (*Node)(nil)
	_ fs.NodeReader    = (*Node)(nil)
)

// Lookup finds the child inode by name, ENOENT if absent.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	child, found, err := n.view.cat.Inodes.FindInodeByNameAndParentID(name, n.ino.ID)
	if err != nil || !found {
		return nil, syscall.ENOENT
	}

	mode := uint32(fuse.S_IFDIR | 0o755)
	if !child.IsDir() {
		file, found, err := n.view.cat.Files.FindByUUID(child.FileUUID)
		if err != nil || !found {
			return nil, syscall.ENOENT
		}
		mode = fuse.S_IFREG | 0o444
		out.Size = file.Size
	}
	out.Ino = child.ID + 1

	childNode := &Node{view: n.view, ino: child}
	stable := fs.StableAttr{Mode: mode, Ino: child.ID + 1}
	return n.NewInode(ctx, childNode, stable), 0
}

// Getattr reports attributes: regular files carry size from the File row
// at mode 0o444, directories are 0o755 with nlink 2.
func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if n.ino.IsDir() {
		out.Mode = fuse.S_IFDIR | 0o755
		out.Nlink = 2
		return 0
	}

	file, found, err := n.view.cat.Files.FindByUUID(n.ino.FileUUID)
	if err != nil || !found {
		return syscall.ENOENT
	}
	out.Mode = fuse.S_IFREG | 0o444
	out.Size = file.Size
	out.Nlink = 1
	return 0
}

// Readdir enumerates the children of this inode.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	children, err := n.view.cat.Inodes.FindInodesWithParent(n.ino.ID)
	if err != nil {
		return nil, syscall.EIO
	}

	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		mode := uint32(fuse.S_IFDIR)
		if !c.IsDir() {
			mode = fuse.S_IFREG
		}
		entries = append(entries, fuse.DirEntry{Mode: mode, Name: c.Name, Ino: c.ID + 1})
	}
	return fs.NewListDirStream(entries), 0
}

// Open allows a regular file to be opened for reading; no file handle
// state is needed since Read re-resolves the catalog row each call.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if n.ino.IsDir() {
		return nil, 0, syscall.EISDIR
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

// Read serves an offset/size read, dispatching on the resolved file's
// mode.
func (n *Node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	file, found, err := n.view.cat.Files.FindByUUID(n.ino.FileUUID)
	if err != nil || !found {
		return nil, syscall.ENOENT
	}

	switch file.Mode {
	case catalog.ModeAggregate:
		// Aggregate archives are internal: never directly readable.
		return nil, syscall.ENOENT
	case catalog.ModeChunked:
		data, errno := n.readChunked(ctx, file, off, int64(len(dest)))
		if errno != 0 {
			return nil, errno
		}
		return fuse.ReadResultData(data), 0
	case catalog.ModeAggregated:
		data, errno := n.readAggregated(ctx, file, off, int64(len(dest)))
		if errno != 0 {
			return nil, errno
		}
		return fuse.ReadResultData(data), 0
	default:
		return nil, syscall.ENOENT
	}
}

func (n *Node) readChunked(ctx context.Context, file catalog.File, offset, size int64) ([]byte, syscall.Errno) {
	chunks, err := n.view.cat.Chunks.FindByFileUUID(file.UUID)
	if err != nil {
		return nil, syscall.EIO
	}

	var out []byte
	remaining := offset
	for _, ch := range chunks {
		if remaining > 0 && remaining >= int64(ch.PayloadSize) {
			remaining -= int64(ch.PayloadSize)
			continue
		}

		raw, err := n.view.st.Get(ctx, ch.UUID)
		if err != nil {
			n.view.log.WithError(err).WithField("chunk", ch.UUID).Error("fetch chunk")
			return nil, syscall.EIO
		}
		clear, err := envelope.Decode(raw)
		if err != nil {
			n.view.log.WithError(err).WithField("chunk", ch.UUID).Error("decode envelope")
			return nil, syscall.EIO
		}

		payload := clear.Payload
		if remaining > 0 {
			if remaining >= int64(len(payload)) {
				remaining -= int64(len(payload))
				continue
			}
			payload = payload[remaining:]
			remaining = 0
		}
		out = append(out, payload...)
		if int64(len(out)) >= size {
			break
		}
	}

	if int64(len(out)) > size {
		out = out[:size]
	}
	return out, 0
}

func (n *Node) readAggregated(ctx context.Context, file catalog.File, offset, size int64) ([]byte, syscall.Errno) {
	aggPath, found, err := n.view.cat.Aggregates.FindByFilePath(file.Path)
	if err != nil || !found {
		return nil, syscall.ENOENT
	}
	aggFile, found, err := n.view.cat.Files.FindByPath(aggPath)
	if err != nil || !found {
		return nil, syscall.ENOENT
	}
	aggChunk, found, err := n.view.cat.Chunks.FindByFileUUIDAndIndex(aggFile.UUID, 0)
	if err != nil || !found {
		return nil, syscall.ENOENT
	}

	raw, err := n.view.st.Get(ctx, aggChunk.UUID)
	if err != nil {
		n.view.log.WithError(err).WithField("aggregate", aggPath).Error("fetch aggregate chunk")
		return nil, syscall.ENOENT
	}
	clear, err := envelope.Decode(raw)
	if err != nil {
		n.view.log.WithError(err).WithField("aggregate", aggPath).Error("decode envelope")
		return nil, syscall.ENOENT
	}

	data, err := aggregate.ReadMemberRange(clear.Payload, file.Path, offset, size)
	if err != nil {
		// Malformed archive on read maps to ENOENT; it must never abort
		// the mount.
		n.view.log.WithError(err).WithField("aggregate", aggPath).Error("read aggregate member")
		return nil, syscall.ENOENT
	}
	return data, 0
}
