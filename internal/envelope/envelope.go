// Package envelope implements the self-describing serialization stored
// behind every object in the Store: version, metadata, and payload.
// Encoding is a 4-byte big-endian length prefix over a small JSON header,
// followed by the raw payload bytes.
package envelope

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// CurrentVersion is the only envelope version this build decodes.
const CurrentVersion = 1

// Metadata carries the chunk's position within its file.
type Metadata struct {
	File   string `json:"file"`
	Idx    uint64 `json:"idx"`
	Total  uint64 `json:"total"`
	Offset uint64 `json:"offset"`
}

// ClearChunk is the decoded, clear-text form of one stored object.
type ClearChunk struct {
	Version  uint8    `json:"version"`
	Metadata Metadata `json:"metadata"`
	Payload  []byte   `json:"payload"`
}

// Encode serializes a ClearChunk to bytes: a 4-byte big-endian length
// prefix over the JSON header, followed by the raw payload. Keeping the
// (large) payload out of the JSON document avoids a base64 blow-up.
func Encode(c ClearChunk) ([]byte, error) {
	c.Version = CurrentVersion
	header := struct {
		Version  uint8    `json:"version"`
		Metadata Metadata `json:"metadata"`
	}{c.Version, c.Metadata}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal envelope header: %v", ferrors.ErrProtocol, err)
	}

	out := make([]byte, 4+len(headerBytes)+len(c.Payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(headerBytes)))
	copy(out[4:], headerBytes)
	copy(out[4+len(headerBytes):], c.Payload)
	return out, nil
}

// Decode parses bytes produced by Encode. A version other than
// CurrentVersion is a ProtocolError.
func Decode(data []byte) (ClearChunk, error) {
	if len(data) < 4 {
		return ClearChunk{}, fmt.Errorf("%w: envelope too short", ferrors.ErrProtocol)
	}
	headerLen := binary.BigEndian.Uint32(data[:4])
	if int(headerLen) > len(data)-4 {
		return ClearChunk{}, fmt.Errorf("%w: envelope header length out of range", ferrors.ErrProtocol)
	}

	var header struct {
		Version  uint8    `json:"version"`
		Metadata Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(data[4:4+headerLen], &header); err != nil {
		return ClearChunk{}, fmt.Errorf("%w: unmarshal envelope header: %v", ferrors.ErrProtocol, err)
	}
	if header.Version != CurrentVersion {
		return ClearChunk{}, fmt.Errorf("%w: unsupported envelope version %d", ferrors.ErrProtocol, header.Version)
	}

	payload := data[4+headerLen:]
	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)

	return ClearChunk{
		Version:  header.Version,
		Metadata: header.Metadata,
		Payload:  payloadCopy,
	}, nil
}
