package catalog

// FileMode is a closed sum of how a File's bytes are stored.
type FileMode string

const (
	// ModeChunked splits the file into fixed-size clear chunks.
	ModeChunked FileMode = "chunked"
	// ModeAggregate marks a synthetic tar archive bundling many small files.
	ModeAggregate FileMode = "aggregate"
	// ModeAggregated marks a member file embedded in an Aggregate.
	ModeAggregated FileMode = "aggregated"
)

// Status is a closed sum over a File or Chunk's completion state.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// File is the catalog's record of one logical file, chunked or aggregated.
type File struct {
	UUID   string
	Path   string
	SHA256 string
	Size   uint64
	Chunks uint64
	Mode   FileMode
	Status Status
}

// Chunk is one fixed-size (or, for Aggregate files, whole-archive) slice of
// a File's clear bytes, stored as a single encrypted object.
type Chunk struct {
	UUID        string
	FileUUID    string
	Idx         uint64
	SHA256      string
	Offset      uint64
	Size        uint64 // cipher bytes, set at mark_done
	PayloadSize uint64 // clear bytes
	Status      Status
}

// Aggregate links a member file's path to the path of the Aggregate File
// that bundles it.
type Aggregate struct {
	AggregatePath string
	FilePath      string
}

// Inode is a node in the inode tree the FUSE bridge walks. Directories are
// inferred: an inode is a directory iff FileUUID is empty. ID 0 is root;
// the FUSE-visible number is ID+1.
type Inode struct {
	ID       uint64
	ParentID uint64
	FileUUID string // empty for directories
	Name     string // empty only for root
}

// IsDir reports whether the inode represents a directory.
func (i Inode) IsDir() bool {
	return i.FileUUID == ""
}
