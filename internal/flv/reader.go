package flv

import (
	"io"

	"rtflv/internal/bufpool"
	"rtflv/internal/errors"
)

const (
	tagPrefixSize    = 11
	trailingSizeSize = 4
)

// ReadNextTag reads one framed tag from r: the 11-byte prefix, the body it
// describes, and the 4-byte trailing size that follows every tag. The
// extended-timestamp byte (prefix[7]) supplies the high byte of the 32-bit
// timestamp; its sign bit is masked off before the two halves are combined,
// per the wire format's use of that byte purely as a rollover extension.
func ReadNextTag(r io.Reader) (*Tag, error) {
	var prefix [tagPrefixSize]byte
	n, err := io.ReadFull(r, prefix[:])
	if n != tagPrefixSize {
		return nil, errors.NewShortReadError("flv.readTag.prefix", tagPrefixSize, n, err)
	}

	kind := Kind(prefix[0])
	size := int(prefix[1])<<16 | int(prefix[2])<<8 | int(prefix[3])
	ts24 := uint32(prefix[4])<<16 | uint32(prefix[5])<<8 | uint32(prefix[6])
	ext := prefix[7]
	timestamp := int32((uint32(ext&0x7F) << 24) | ts24)

	body := bufpool.Get(size)
	n, err = io.ReadFull(r, body)
	if n != size {
		return nil, errors.NewShortReadError("flv.readTag.body", size, n, err)
	}

	var trailing [trailingSizeSize]byte
	n, err = io.ReadFull(r, trailing[:])
	if n != trailingSizeSize {
		return nil, errors.NewShortReadError("flv.readTag.trailing", trailingSizeSize, n, err)
	}

	raw := make([]byte, 0, tagPrefixSize+size+trailingSizeSize)
	raw = append(raw, prefix[:]...)
	raw = append(raw, body...)
	raw = append(raw, trailing[:]...)
	bufpool.Put(body)

	return &Tag{Kind: kind, Timestamp: timestamp, Body: raw[tagPrefixSize : tagPrefixSize+size], Raw: raw}, nil
}
