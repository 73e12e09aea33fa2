// Package worker implements the Part Worker state machine (§4.2): one
// instance per download part, owning an output file and a sequence of
// network connections, emitting a tagged Message stream to the coordinator
// and obeying Control messages in return.
package worker

import (
	"fmt"
	"log/slog"
	"os"

	"rtflv/internal/kindstate"
)

// Part holds everything one worker owns for the lifetime of its run. Fields
// set before the corresponding outbound Message is sent (realOffset,
// startTime) are the only state the coordinator ever
// reads, and it reads them only after observing that message — the message
// is the happens-before edge (§5, §9).
type Part struct {
	Index  int
	N      int
	URLFn  URLFunc
	Opener Opener
	In     <-chan Control
	Out    chan<- Message
	Resume bool
	File   *os.File
	Log    *slog.Logger

	tracker   *kindstate.Tracker
	keyframes map[int64]int64

	startTime       int64
	endTime         int64
	realOffset      int64
	realOffsetKnown bool
}

// New constructs a Part ready to Run. file must already be open for
// read-write (resumed parts) or write (fresh parts); the caller (the
// coordinator) decides which.
func New(index, n int, urlFn URLFunc, opener Opener, in <-chan Control, out chan<- Message, resume bool, file *os.File, log *slog.Logger) *Part {
	return &Part{
		Index:     index,
		N:         n,
		URLFn:     urlFn,
		Opener:    opener,
		In:        in,
		Out:       out,
		Resume:    resume,
		File:      file,
		Log:       log,
		tracker:   kindstate.New(),
		keyframes: make(map[int64]int64),
	}
}

func (p *Part) isFirstPart() bool { return p.Index == 0 }
func (p *Part) isLastPart() bool  { return p.Index == p.N-1 }

// RealOffset returns the part's discovered real_offset and whether it
// is known yet. The coordinator reads this only after observing a
// message from this part (§5: the message is the happens-before
// fence) — never concurrently with the worker's own writes.
func (p *Part) RealOffset() (int64, bool) { return p.realOffset, p.realOffsetKnown }

// StartTime returns the part's assigned or discovered start_time, in
// ms. Valid for the coordinator to read once it has observed this
// part's need_start message (Need=false, meaning start_time is already
// settled, or a later message once the coordinator supplied one).
func (p *Part) StartTime() int64 { return p.startTime }

func (p *Part) op(name string) string {
	return fmt.Sprintf("worker[%d].%s", p.Index, name)
}

func (p *Part) debug(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	p.Log.Debug(text)
	p.Out <- msgDebug(p.Index, text)
}

func (p *Part) info(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	p.Log.Info(text)
	p.Out <- msgInfo(p.Index, text)
}

func (p *Part) fail(err error) {
	p.Log.Warn("part failed", "err", err)
	p.closeQuietly()
	p.Out <- msgStatus(p.Index, StatusFail)
}

func (p *Part) succeed() {
	p.Out <- msgStatus(p.Index, StatusSuccess)
}

// latchRealOffset records real_offset the first time any connection —
// the initial cold open or a Keyframe-Resume candidate — succeeds,
// using the server-declared timeBase as the discovered value. A
// resumed part may already have real_offset from analyze() scanning
// its prior local file; that value wins and is never overwritten.
func (p *Part) latchRealOffset(res *openResult) {
	if p.realOffsetKnown {
		return
	}
	p.realOffset = res.timeBaseMs
	p.realOffsetKnown = true
}

func (p *Part) closeQuietly() {
	if p.File != nil {
		_ = p.File.Close()
	}
}
