// Package transport implements worker.Opener against real HTTP servers: a
// plain GET with MIME validation, optionally throttled by a shared token
// bucket so every part's stream shares one aggregate bandwidth cap.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	rtflverrors "rtflv/internal/errors"
)

// flvMime is the only Content-Type the core accepts (§4.2).
const flvMime = "video/x-flv"

// HTTPOpener is the production worker.Opener: one *http.Client shared by
// every part, a GET per Open call, and a 2xx + Content-Type check before
// handing the body back.
type HTTPOpener struct {
	client  *http.Client
	limiter *rate.Limiter
}

// Option configures an HTTPOpener.
type Option func(*HTTPOpener)

// WithTimeout bounds how long a single GET may take to receive headers.
// The core itself imposes no timeout (§5); this exists because net/http
// needs one to avoid hanging forever on a server that never responds.
func WithTimeout(d time.Duration) Option {
	return func(o *HTTPOpener) {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.ResponseHeaderTimeout = d
		o.client.Transport = tr
	}
}

// WithRateLimit caps aggregate read throughput, in bytes/sec, across every
// stream opened by this HTTPOpener. bytesPerSec <= 0 disables the limiter.
func WithRateLimit(bytesPerSec int) Option {
	return func(o *HTTPOpener) {
		if bytesPerSec <= 0 {
			return
		}
		burst := bytesPerSec
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	}
}

// New builds an HTTPOpener. With no options it never times out and never
// throttles.
func New(opts ...Option) *HTTPOpener {
	o := &HTTPOpener{client: &http.Client{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open implements worker.Opener.
func (o *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, string, error) {
	op := fmt.Sprintf("transport.Open(%s)", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", rtflverrors.NewTransportOpenError(op, err)
	}

	start := time.Now()
	resp, err := o.client.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return nil, "", rtflverrors.NewTimeoutError(op, time.Since(start), err)
		}
		return nil, "", rtflverrors.NewTransportOpenError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", rtflverrors.NewTransportOpenError(
			op,
			fmt.Errorf("server returned status %d", resp.StatusCode),
		)
	}

	mime := resp.Header.Get("Content-Type")
	if mime != flvMime {
		resp.Body.Close()
		return nil, mime, rtflverrors.NewWrongMimeError(op, mime)
	}

	body := resp.Body
	if o.limiter != nil {
		body = &throttledReader{r: body, limiter: o.limiter, ctx: ctx}
	}
	return body, mime, nil
}

// isTimeoutErr distinguishes the context deadline / dial-and-read
// timeouts net/http surfaces from every other transport failure, so
// Open can report a TimeoutError instead of the generic
// TransportOpenError — callers that care (IsRetriable) treat both the
// same, but the distinct type keeps a timed-out GET visible as such in
// logs and metrics rather than folded into "connection refused" noise.
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// throttledReader reads in chunks no larger than the limiter's burst size,
// blocking on limiter.WaitN before each chunk so overall throughput across
// every concurrently-open stream stays under the configured cap.
type throttledReader struct {
	r       io.ReadCloser
	limiter *rate.Limiter
	ctx     context.Context
}

func (t *throttledReader) Read(p []byte) (int, error) {
	burst := t.limiter.Burst()
	if len(p) > burst {
		p = p[:burst]
	}
	n, err := t.r.Read(p)
	if n > 0 {
		if waitErr := t.limiter.WaitN(t.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}

func (t *throttledReader) Close() error { return t.r.Close() }
