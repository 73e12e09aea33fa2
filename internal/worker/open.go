package worker

import (
	"context"
	"io"
	"math"

	"rtflv/internal/errors"
	"rtflv/internal/flv"
)

const wantContentType = "video/x-flv"

// openResult is everything a fresh connection hands back before any media
// tag has been read: the file header, the two leading metadata tags, and
// the timeBase they declare (used by Keyframe-Resume to judge alignment).
type openResult struct {
	stream     io.ReadCloser
	header     [flv.FileHeaderSize]byte
	meta1      *flv.Tag
	meta2      *flv.Tag
	timeBaseMs int64
}

// openStream opens url_fn(seconds), validates its Content-Type, and reads
// past the file header and the two leading metadata tags every connection
// carries. The caller is responsible for closing the returned stream.
func (p *Part) openStream(ctx context.Context, seconds float64) (*openResult, error) {
	url := p.URLFn(seconds)
	rc, mime, err := p.Opener.Open(ctx, url)
	if err != nil {
		return nil, errors.NewTransportOpenError(p.op("open"), err)
	}
	if mime != wantContentType {
		rc.Close()
		return nil, errors.NewWrongMimeError(p.op("open"), mime)
	}

	hdr, err := flv.ReadFileHeader(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}

	meta1, err := flv.ReadNextTag(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	if meta1.Kind != flv.KindMetadata {
		rc.Close()
		return nil, errors.NewMissingMetadataError(p.op("open.meta1"))
	}

	meta2, err := flv.ReadNextTag(rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	if meta2.Kind != flv.KindMetadata {
		rc.Close()
		return nil, errors.NewMissingMetadataError(p.op("open.meta2"))
	}

	timeBaseSec, ok := flv.GetMetadataNumber(meta2.Body, "timeBase")
	if !ok {
		rc.Close()
		return nil, errors.NewMissingTimeBaseKeyError(p.op("open.meta2"))
	}

	return &openResult{
		stream:     rc,
		header:     hdr,
		meta1:      meta1,
		meta2:      meta2,
		timeBaseMs: int64(math.Round(timeBaseSec * 1000)),
	}, nil
}
