// Package aggregate builds and reads the POSIX tar archives that bundle
// small (Aggregated) files into one Aggregate File. Entry names are the
// members' relative backup-root paths.
package aggregate

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// Build reads every member path (relative to root) in order and returns a
// tar archive containing them under their relative paths.
func Build(root string, members []string) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, rel := range members {
		full := filepath.Join(root, filepath.FromSlash(rel))
		data, err := os.ReadFile(full)
		if err != nil {
			tw.Close()
			return nil, fmt.Errorf("%w: read aggregate member %s: %v", ferrors.ErrSourceIO, rel, err)
		}
		hdr := &tar.Header{
			Name: rel,
			Mode: 0o644,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tw.Close()
			return nil, fmt.Errorf("%w: write tar header %s: %v", ferrors.ErrPlan, rel, err)
		}
		if _, err := tw.Write(data); err != nil {
			tw.Close()
			return nil, fmt.Errorf("%w: write tar body %s: %v", ferrors.ErrPlan, rel, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("%w: close tar writer: %v", ferrors.ErrPlan, err)
	}
	return buf.Bytes(), nil
}

// ReadMember locates name inside archive and returns its full body.
func ReadMember(archive []byte, name string) ([]byte, error) {
	tr := tar.NewReader(bytes.NewReader(archive))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: member %s not found in aggregate", ferrors.ErrFS, name)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read aggregate archive: %v", ferrors.ErrFS, err)
		}
		if hdr.Name != name {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("%w: read aggregate member %s: %v", ferrors.ErrFS, name, err)
		}
		return data, nil
	}
}

// ReadMemberRange locates name inside archive and returns up to size bytes
// starting at offset within that member's body.
func ReadMemberRange(archive []byte, name string, offset, size int64) ([]byte, error) {
	data, err := ReadMember(archive, name)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + size
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}
