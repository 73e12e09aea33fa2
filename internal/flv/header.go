package flv

import (
	"io"

	"rtflv/internal/errors"
)

// FileHeaderSize is the length of the FLV file header plus the leading
// "previous tag size" field that always follows it (9 + 4 bytes).
const FileHeaderSize = 13

// ReadFileHeader reads and returns the fixed-size FLV file header. It does
// not validate the signature bytes: a worker that reaches this point has
// already confirmed the response's Content-Type, and a corrupt signature
// will simply fail to produce sane tags downstream.
func ReadFileHeader(r io.Reader) ([FileHeaderSize]byte, error) {
	var buf [FileHeaderSize]byte
	n, err := io.ReadFull(r, buf[:])
	if n != FileHeaderSize {
		return buf, errors.NewShortReadError("flv.readFileHeader", FileHeaderSize, n, err)
	}
	return buf, nil
}
