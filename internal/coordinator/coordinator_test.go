package coordinator

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"rtflv/internal/worker"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOpener struct {
	bodies map[string][]byte
	calls  []string
}

func newFakeOpener() *fakeOpener { return &fakeOpener{bodies: map[string][]byte{}} }

func (f *fakeOpener) set(url string, body []byte) { f.bodies[url] = body }

func (f *fakeOpener) Open(ctx context.Context, url string) (io.ReadCloser, string, error) {
	f.calls = append(f.calls, url)
	b, ok := f.bodies[url]
	if !ok {
		return nil, "", os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(b)), "video/x-flv", nil
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

func audioSeqHeader(ts int32) []byte { return buildTag(0x08, ts, []byte{0xAF, 0x00, 0x12, 0x10}) }
func videoSeqHeader(ts int32) []byte { return buildTag(0x09, ts, []byte{0x17, 0x00, 0, 0, 0}) }
func videoKeyframe(ts int32) []byte  { return buildTag(0x09, ts, []byte{0x17, 0x01, 0, 0, 1}) }
func audioFrame(ts int32) []byte     { return buildTag(0x08, ts, []byte{0xAF, 0x01, 0xDE, 0xAD}) }
func endSentinel() []byte            { return buildTag(0xFF, 0, nil) }

func joinAll(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestCoordinatorSinglePartHappyPath(t *testing.T) {
	opener := newFakeOpener()
	urlFn := func(seconds float64) string { return fmt.Sprintf("stream?seek=%v", seconds) }

	body := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("duration", 1.0), amf0Number("filesize", 500)),
		metadataTag(0, amf0Number("timeBase", 0.0)),
		audioSeqHeader(0),
		videoSeqHeader(0),
		videoKeyframe(10),
		audioFrame(20),
		endSentinel(),
	)
	opener.set(urlFn(0), body)

	outFile := filepath.Join(t.TempDir(), "out.flv")
	c := New(Config{
		N:       1,
		OutFile: outFile,
		URLFn:   urlFn,
		Opener:  opener,
		Resume:  true,
		Log:     silentLogger(),
	})

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) < 13 || string(data[:3]) != "FLV" {
		t.Fatalf("output missing FLV header")
	}
}

func TestCoordinatorTwoPartHappyPath(t *testing.T) {
	opener := newFakeOpener()
	urlFn := func(seconds float64) string { return fmt.Sprintf("stream?seek=%v", seconds) }

	part0 := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("duration", 60.0)),
		metadataTag(0, amf0Number("timeBase", 0.0)),
		audioSeqHeader(0),
		videoSeqHeader(0),
		videoKeyframe(0),
		audioFrame(5000),
		videoKeyframe(30040),
		endSentinel(),
	)
	opener.set(urlFn(0), part0)

	part1 := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("duration", 60.0)),
		metadataTag(0, amf0Number("timeBase", 30.04)),
		videoKeyframe(0),
		audioFrame(5000),
		endSentinel(),
	)
	// The coordinator interpolates part 1's requested seek to 30.000s
	// (midpoint of [part0.start_time=0, effective_duration=60000ms]); the
	// fake server "aligns" to the nearest keyframe and reports
	// timeBase=30.040 in its response instead, as a real server snapping
	// to the nearest keyframe would.
	opener.set(urlFn(30.0), part1)

	outFile := filepath.Join(t.TempDir(), "out.flv")
	c := New(Config{
		N:       2,
		OutFile: outFile,
		URLFn:   urlFn,
		Opener:  opener,
		Resume:  true,
		Log:     silentLogger(),
	})

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(outFile + ".part1"); !os.IsNotExist(err) {
		t.Fatalf("expected part1 file to be removed after join, stat err = %v", err)
	}

	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) < 13 || string(data[:3]) != "FLV" {
		t.Fatalf("joined output missing FLV header")
	}

	found := false
	for _, call := range opener.calls {
		if call == urlFn(30.0) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected part 1 to open at the coordinator-assigned seek, calls were %v", opener.calls)
	}
}

func TestCoordinatorAbortsOnMissingDuration(t *testing.T) {
	opener := newFakeOpener()
	urlFn := func(seconds float64) string { return fmt.Sprintf("stream?seek=%v", seconds) }

	body := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("filesize", 10)),
		metadataTag(0, amf0Number("timeBase", 0.0)),
	)
	opener.set(urlFn(0), body)

	outFile := filepath.Join(t.TempDir(), "out.flv")
	c := New(Config{
		N:       3,
		OutFile: outFile,
		URLFn:   urlFn,
		Opener:  opener,
		Resume:  true,
		Log:     silentLogger(),
	})

	if err := c.Run(context.Background()); err == nil {
		t.Fatalf("expected Run to return an error when part 0 lacks duration")
	}

	if _, err := os.Stat(outFile + ".part1"); err != nil {
		t.Fatalf("expected part1 file to have been created before abort: %v", err)
	}
}
