package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "part-*.flv")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func urlFnFor(label string) URLFunc {
	return func(seconds float64) string { return fmt.Sprintf("%s?seek=%v", label, seconds) }
}

func TestSinglePartHappyPath(t *testing.T) {
	opener := newFakeOpener()
	urlFn := urlFnFor("stream")

	body := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("duration", 2.0), amf0Number("filesize", 1234)),
		metadataTag(0, amf0Number("timeBase", 0.0)),
		audioSeqHeader(0),
		videoSeqHeader(0),
		videoKeyframe(10),
		audioFrame(20),
		endSentinel(),
	)
	opener.set(urlFn(0), body)

	out := make(chan Message, 32)
	in := make(chan Control)
	file := tempFile(t)

	p := New(0, 1, urlFn, opener, in, out, false, file, silentLogger())
	msgs := drive(t, p, out, in, 0, 2000)

	final := msgs[len(msgs)-1]
	if final.Kind != MsgStatus || final.Status != StatusSuccess {
		t.Fatalf("expected terminal SUCCESS, got %+v", final)
	}

	sawDuration, sawFilesize := false, false
	for _, m := range msgs {
		switch m.Kind {
		case MsgDuration:
			sawDuration = true
			if m.Number != 2.0 {
				t.Fatalf("duration = %v, want 2.0", m.Number)
			}
		case MsgFilesize:
			sawFilesize = true
		}
	}
	if !sawDuration || !sawFilesize {
		t.Fatalf("expected duration and filesize messages, got %+v", msgs)
	}

	data, err := os.ReadFile(file.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) < 13 || string(data[:3]) != "FLV" {
		t.Fatalf("output does not start with FLV header")
	}
	if !bytes.Contains(data, []byte{0xAF, 0x00, 0x12, 0x10}) {
		t.Fatalf("audio sequence header missing from output")
	}
	if bytes.Contains(data, endSentinel()) {
		t.Fatalf("end sentinel must never be written to the output file")
	}
}

func TestPart0MissingDurationFails(t *testing.T) {
	opener := newFakeOpener()
	urlFn := urlFnFor("stream")

	body := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("filesize", 10)),
		metadataTag(0, amf0Number("timeBase", 0.0)),
	)
	opener.set(urlFn(0), body)

	out := make(chan Message, 32)
	in := make(chan Control)
	file := tempFile(t)

	p := New(0, 2, urlFn, opener, in, out, false, file, silentLogger())
	msgs := drive(t, p, out, in, 0, 2000)

	final := msgs[len(msgs)-1]
	if final.Kind != MsgStatus || final.Status != StatusFail {
		t.Fatalf("expected terminal FAIL for missing duration, got %+v", final)
	}
	for _, m := range msgs {
		if m.Kind == MsgDuration {
			t.Fatalf("duration should never be reported when absent")
		}
	}
}

func TestPrematureCloseResumesAtKeyframe(t *testing.T) {
	opener := newFakeOpener()
	urlFn := urlFnFor("stream")

	// First connection: opens at 0 (timeBase=0), the first keyframe rebases
	// to absolute 0ms, a second keyframe rebases to absolute 1000ms, then
	// the body truncates mid-tag (a short read).
	first := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("duration", 5.0)),
		metadataTag(0, amf0Number("timeBase", 0.0)),
		audioSeqHeader(0),
		videoSeqHeader(0),
		videoKeyframe(10),
		videoKeyframe(1010),
	)
	truncated := append(first, buildTag(0x08, 20, []byte{0xAF, 0x01, 0xDE, 0xAD})[:5]...)
	opener.set(urlFn(0), truncated)

	// Keyframe-Resume tries the latest keyframe first (1000ms absolute ->
	// seek=1.0) and the server aligns exactly, so the retry succeeds and
	// runs to completion without ever trying the earlier keyframe.
	second := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("duration", 5.0)),
		metadataTag(0, amf0Number("timeBase", 1.0)),
		videoKeyframe(0),
		audioFrame(10),
		endSentinel(),
	)
	opener.set(urlFn(1.0), second)

	out := make(chan Message, 32)
	in := make(chan Control)
	file := tempFile(t)

	p := New(0, 1, urlFn, opener, in, out, false, file, silentLogger())
	msgs := drive(t, p, out, in, 0, 5000)

	final := msgs[len(msgs)-1]
	if final.Kind != MsgStatus || final.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS after resume, got %+v", final)
	}

	found := false
	for _, call := range opener.calls {
		if call == urlFn(1.0) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a retry at the recorded keyframe, calls were %v", opener.calls)
	}
}

func TestCancellationWhileAwaitingEndTime(t *testing.T) {
	opener := newFakeOpener()
	urlFn := urlFnFor("stream")

	body := joinAll(
		fileHeaderBytes(),
		metadataTag(0, amf0Number("duration", 100.0)),
		metadataTag(0, amf0Number("timeBase", 0.0)),
		audioSeqHeader(0),
		videoSeqHeader(0),
		videoKeyframe(10),
	)
	opener.set(urlFn(0), body)

	out := make(chan Message, 32)
	in := make(chan Control, 1)
	file := tempFile(t)

	p := New(0, 1, urlFn, opener, in, out, false, file, silentLogger())

	// The coordinator observes a fatal failure elsewhere and cancels this
	// part before ever assigning it an end_time.
	in <- Control{Kind: ControlStop}

	var finalStatus Status
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(context.Background())
	}()
	for m := range out {
		if m.Kind == MsgStatus {
			finalStatus = m.Status
			break
		}
	}
	<-done

	if finalStatus != StatusFail {
		t.Fatalf("expected cancellation to terminate with FAIL, got %v", finalStatus)
	}
}
