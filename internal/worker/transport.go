package worker

import (
	"context"
	"io"
)

// URLFunc maps a seek offset, in seconds, to the URL that resumes the
// logical stream at that point. Supplied by the caller; the core treats it
// as an opaque capability (§6).
type URLFunc func(seconds float64) string

// Opener performs the one transport operation the core depends on: GET a
// URL and hand back a readable body plus its declared MIME type. Supplied
// by internal/transport in production, faked in tests.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, string, error)
}
