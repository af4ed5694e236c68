// Package ferrors defines the error-kind sentinels shared across the backup
// pipeline. Call sites wrap these with fmt.Errorf("...: %w", err) to attach
// context; no custom error types are introduced.
package ferrors

import "errors"

var (
	// ErrConfig marks a fatal configuration problem (missing/invalid key).
	ErrConfig = errors.New("config error")

	// ErrCatalog marks a catalog I/O or constraint failure.
	ErrCatalog = errors.New("catalog error")

	// ErrSourceIO marks a failure reading a local source file.
	ErrSourceIO = errors.New("source io error")

	// ErrEncrypt marks an encryption failure.
	ErrEncrypt = errors.New("encrypt error")

	// ErrDecrypt marks a decryption failure.
	ErrDecrypt = errors.New("decrypt error")

	// ErrStore marks a put/get failure against the object store.
	ErrStore = errors.New("store error")

	// ErrPlan marks an invalid aggregate membership or duplicate chunk index
	// discovered while planning.
	ErrPlan = errors.New("plan error")

	// ErrProtocol marks an envelope version mismatch.
	ErrProtocol = errors.New("protocol error")

	// ErrFS marks a filesystem-view error (read on an Aggregate file, a
	// missing inode, an unparsable aggregate archive).
	ErrFS = errors.New("fs error")
)
