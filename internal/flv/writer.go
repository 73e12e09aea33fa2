package flv

import "io"

// WriteTag writes t.Raw to w, rewriting only the two timestamp fields
// (prefix bytes 4-6 and the extended byte at prefix byte 7) to reflect
// t.Timestamp+additiveOffset. Every other byte, including the trailing size
// and the tag body, is passed through unchanged. additiveOffset may be
// negative mid-computation (internal/worker rebases a part's first tag to
// its declared start) but the written result is always a valid non-negative
// wire timestamp once a part's boundary tags have been filtered.
func WriteTag(w io.Writer, t *Tag, additiveOffset int32) (int, error) {
	newTs := t.Timestamp + additiveOffset
	t.Raw[4] = byte(newTs >> 16)
	t.Raw[5] = byte(newTs >> 8)
	t.Raw[6] = byte(newTs)
	t.Raw[7] = byte(newTs >> 24)
	return w.Write(t.Raw)
}
