// Package coordinator implements the Coordinator (§4.5): the single
// per-download orchestrator that launches Part Workers, discovers
// duration/filesize from part 0, computes and dispatches start/end
// time boundaries, aggregates progress and terminal status, and drives
// the final join.
//
// Modeled on a destination-manager pattern: per-part state, indexed by part,
// touched only by the owning goroutine, workers launched the way a
// relay target's connection is started, and a sequential loop at
// shutdown mirroring the join step here.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/google/uuid"

	"rtflv/internal/errors"
	"rtflv/internal/events"
	"rtflv/internal/logger"
	"rtflv/internal/worker"
)

// Config configures one invocation of Run.
type Config struct {
	N                  int
	OutFile            string
	URLFn              worker.URLFunc
	Opener             worker.Opener
	Resume             bool // corresponds to the CLI's --no-resume inverse
	MaxDurationSeconds float64
	Log                *slog.Logger
	Events             *events.Bus
}

// partState is the coordinator's bookkeeping for one part, touched
// only by the coordinator goroutine.
type partState struct {
	in                chan worker.Control
	reportedNeedStart bool
	needStart         bool
	reportedNeedEnd   bool
	needEnd           bool
	done              bool
	failed            bool
}

// Coordinator drives one download end to end.
type Coordinator struct {
	cfg Config
	log *slog.Logger
}

// New constructs a Coordinator. cfg.Log defaults to the package logger
// if nil.
func New(cfg Config) *Coordinator {
	log := cfg.Log
	if log == nil {
		log = logger.Logger()
	}
	if cfg.Events == nil {
		cfg.Events = events.New()
	}
	return &Coordinator{cfg: cfg, log: log}
}

// Run executes the full download: launch, boundary negotiation, join.
// It returns a non-nil error iff any part failed or the join itself
// failed; ctx cancellation is propagated to every part as a stop
// request.
func (c *Coordinator) Run(ctx context.Context) error {
	downloadID := uuid.New().String()
	log := logger.WithDownload(c.log, downloadID)

	n := c.cfg.N
	states := make([]*partState, n)
	files := make([]*os.File, n)
	parts := make([]*worker.Part, n)
	out := make(chan worker.Message, 64)

	for i := 0; i < n; i++ {
		path := c.partPath(i)
		resumeThis := c.cfg.Resume && fileExists(path)

		flags := os.O_RDWR
		if resumeThis {
			// file must already exist; no O_CREATE, no truncation —
			// analyze() needs the prior content intact.
		} else {
			flags |= os.O_CREATE | os.O_TRUNC
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			c.abortLaunched(states)
			return fmt.Errorf("coordinator: open %s: %w", path, err)
		}
		files[i] = f

		in := make(chan worker.Control)
		states[i] = &partState{in: in}
		parts[i] = worker.New(i, n, c.cfg.URLFn, c.cfg.Opener, in, out, resumeThis, f, logger.WithPart(log, i, resumeThis))
	}

	go parts[0].Run(ctx)

	durationSec, filesizeBytes, ok, err := c.awaitDuration(ctx, out, states, parts, log)
	if !ok {
		log.Warn("aborted before duration was observed", "err", err)
		c.cfg.Events.Emit(events.PartFailed, 0)
		// Part 0 already closed its own file on its own failure path;
		// parts 1..N-1 were opened but never launched.
		for i := 1; i < n; i++ {
			_ = files[i].Close()
		}
		return err
	}
	c.cfg.Events.Emit(events.GotDuration, durationSec)
	if filesizeBytes > 0 {
		c.cfg.Events.Emit(events.GotFilesize, filesizeBytes)
	}

	effectiveDurationSec := durationSec
	if c.cfg.MaxDurationSeconds > 0 && c.cfg.MaxDurationSeconds < effectiveDurationSec {
		effectiveDurationSec = c.cfg.MaxDurationSeconds
	}
	effectiveDurationMs := int64(math.Round(effectiveDurationSec * 1000))

	for i := 1; i < n; i++ {
		go parts[i].Run(ctx)
	}

	runErr := c.dispatchLoop(out, states, parts, effectiveDurationMs, log)

	if runErr != nil {
		return runErr
	}

	return c.join(log)
}

// awaitDuration consumes messages from part 0 only, until duration is
// observed or a terminal status arrives first (a fatal abort per
// §4.5: "any terminal status received before duration is a fatal
// abort").
func (c *Coordinator) awaitDuration(ctx context.Context, out <-chan worker.Message, states []*partState, parts []*worker.Part, log *slog.Logger) (durationSec, filesizeBytes float64, ok bool, err error) {
	for m := range out {
		switch m.Kind {
		case worker.MsgDebug:
			c.emitText(events.Debug, m)
		case worker.MsgInfo:
			c.emitText(events.Info, m)
		case worker.MsgDuration:
			durationSec = m.Number
		case worker.MsgFilesize:
			filesizeBytes = m.Number
		case worker.MsgNeedStart:
			states[m.Part].reportedNeedStart = true
			states[m.Part].needStart = m.Need
		case worker.MsgStatus:
			if m.Status == worker.StatusFail {
				return 0, 0, false, errors.NewStopRequestedError("coordinator.awaitDuration")
			}
		}
		if durationSec > 0 {
			return durationSec, filesizeBytes, true, nil
		}
	}
	return 0, 0, false, fmt.Errorf("coordinator: part 0 closed its output without reporting duration")
}

func (c *Coordinator) emitText(sig events.Signal, m worker.Message) {
	c.cfg.Events.Emit(sig, m.Text, m.Part)
}

func (c *Coordinator) partPath(i int) string {
	if i == 0 {
		return c.cfg.OutFile
	}
	return fmt.Sprintf("%s.part%d", c.cfg.OutFile, i)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// abortLaunched sends a stop control to every part whose input channel
// has been created so far, used when setup itself fails partway
// through (e.g. a later part's file can't be opened).
func (c *Coordinator) abortLaunched(states []*partState) {
	for _, st := range states {
		if st == nil {
			continue
		}
		select {
		case st.in <- worker.Control{Kind: worker.ControlStop}:
		default:
		}
	}
}
