package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"testing"
)

// fakeOpener serves canned bodies keyed by the exact URL requested, letting
// a test script a sequence of seek-time responses the way a real server
// would answer different offsets.
type fakeOpener struct {
	bodies map[string][]byte
	mime   map[string]string
	calls  []string
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{bodies: map[string][]byte{}, mime: map[string]string{}}
}

func (f *fakeOpener) set(url string, body []byte) {
	f.bodies[url] = body
}

func (f *fakeOpener) Open(ctx context.Context, url string) (io.ReadCloser, string, error) {
	f.calls = append(f.calls, url)
	mime := f.mime[url]
	if mime == "" {
		mime = "video/x-flv"
	}
	b, ok := f.bodies[url]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), mime, nil
}

func buildTag(kind byte, timestamp int32, body []byte) []byte {
	ts := uint32(timestamp)
	ext := byte(ts >> 24)
	buf := make([]byte, 0, 11+len(body)+4)
	buf = append(buf, kind)
	size := len(body)
	buf = append(buf, byte(size>>16), byte(size>>8), byte(size))
	buf = append(buf, byte(ts>>16), byte(ts>>8), byte(ts))
	buf = append(buf, ext)
	buf = append(buf, 0, 0, 0)
	buf = append(buf, body...)
	trailing := uint32(11 + size)
	buf = append(buf, byte(trailing>>24), byte(trailing>>16), byte(trailing>>8), byte(trailing))
	return buf
}

func amf0Number(key string, v float64) []byte {
	buf := make([]byte, 0, 2+len(key)+9)
	buf = append(buf, byte(len(key)>>8), byte(len(key)))
	buf = append(buf, key...)
	buf = append(buf, 0x00)
	bits := make([]byte, 8)
	binary.BigEndian.PutUint64(bits, math.Float64bits(v))
	return append(buf, bits...)
}

func metadataTag(ts int32, entries ...[]byte) []byte {
	var body []byte
	for _, e := range entries {
		body = append(body, e...)
	}
	return buildTag(0x12, ts, body)
}

func fileHeaderBytes() []byte {
	buf := make([]byte, 13)
	buf[0], buf[1], buf[2] = 'F', 'L', 'V'
	return buf
}

func audioSeqHeader(ts int32) []byte  { return buildTag(0x08, ts, []byte{0xAF, 0x00, 0x12, 0x10}) }
func videoSeqHeader(ts int32) []byte  { return buildTag(0x09, ts, []byte{0x17, 0x00, 0, 0, 0}) }
func videoKeyframe(ts int32) []byte   { return buildTag(0x09, ts, []byte{0x17, 0x01, 0, 0, 1}) }
func audioFrame(ts int32) []byte      { return buildTag(0x08, ts, []byte{0xAF, 0x01, 0xDE, 0xAD}) }
func endSentinel() []byte             { return buildTag(0xFF, 0, nil) }

func joinAll(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// drive runs p.Run in a goroutine and services need_start/need_end/status
// protocol messages with the scripted replies over out/in, returning every
// Message observed in order. out/in must be the same channels p was built
// with.
func drive(t *testing.T, p *Part, out chan Message, in chan Control, startTimeMs, endTimeMs int64) []Message {
	t.Helper()
	var msgs []Message
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()

	for {
		select {
		case m := <-out:
			msgs = append(msgs, m)
			switch m.Kind {
			case MsgNeedStart:
				if m.Need {
					in <- Control{Kind: ControlStartTime, TimeMs: startTimeMs}
				}
			case MsgNeedEnd:
				if m.Need {
					in <- Control{Kind: ControlEndTime, TimeMs: endTimeMs}
				}
			case MsgStatus:
				<-done
				return msgs
			}
		}
	}
}
