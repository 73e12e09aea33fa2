package worker

import (
	"context"
	"io"

	"rtflv/internal/errors"
	"rtflv/internal/flv"
)

// Run drives the Part state machine (§4.2) from S0 Init to a terminal
// status message on Out. It never returns an error; every failure path
// ends in a StatusFail message, mirroring the "workers never surface
// errors directly" propagation policy of §7.
func (p *Part) Run(ctx context.Context) {
	if p.Resume {
		if err := p.analyze(); err != nil {
			p.fail(err)
			return
		}
	}

	res, alignedAt, resumed, err := p.tryResume(ctx)
	if err != nil {
		p.fail(err)
		return
	}

	freshStart := true
	if resumed {
		p.startTime = alignedAt
		freshStart = false
		// TryResume already knows start_time without asking the
		// coordinator, but every part reports need_start exactly once so
		// the coordinator's "every part has reported" barrier completes.
		p.Out <- msgNeedStart(p.Index, false)
	} else {
		res, err = p.awaitStart(ctx)
		if err != nil {
			p.fail(err)
			return
		}
	}
	p.latchRealOffset(res)

	if err := p.writeHead(res, freshStart); err != nil {
		res.stream.Close()
		p.fail(err)
		return
	}

	if err := p.awaitEnd(); err != nil {
		res.stream.Close()
		p.fail(err)
		return
	}

	for {
		outcome, err := p.streamTags(res)
		if err != nil {
			p.fail(err)
			return
		}

		switch outcome {
		case streamDone:
			p.finishSuccess()
			return
		case streamStopped:
			p.fail(errors.NewStopRequestedError(p.op("stream")))
			return
		case streamPrematureClose:
			next, _, resumed, restartErr := p.tryResume(ctx)
			if restartErr != nil {
				p.fail(restartErr)
				return
			}
			if !resumed {
				p.fail(errors.NewTransportOpenError(p.op("restart"), nil))
				return
			}
			res = next
			p.latchRealOffset(res)
		}
	}
}

// awaitStart implements S2: every part but part 0 reports need_start=true
// and blocks for the coordinator's reply; part 0 reports need_start=false
// and always starts at time zero.
func (p *Part) awaitStart(ctx context.Context) (*openResult, error) {
	if p.isFirstPart() {
		p.startTime = 0
		p.Out <- msgNeedStart(p.Index, false)
	} else {
		p.Out <- msgNeedStart(p.Index, true)
		ctrl, ok := <-p.In
		if !ok || ctrl.Kind == ControlStop {
			return nil, errors.NewStopRequestedError(p.op("awaitStart"))
		}
		p.startTime = ctrl.TimeMs
	}
	return p.openStream(ctx, float64(p.startTime)/1000.0)
}

// writeHead implements S3. Part 0 is the only part that ever reports or
// writes duration/filesize/header/metadata, since those must appear
// exactly once in the assembled file; other parts silently discard their
// own copies (already consumed by openStream). Header and metadata bytes
// are (re)written only on a fresh start — a resumed part 0 already has them
// on disk from a prior run.
func (p *Part) writeHead(res *openResult, freshStart bool) error {
	if !p.isFirstPart() {
		return nil
	}

	durationSec, ok := flv.GetMetadataNumber(res.meta1.Body, "duration")
	if !ok {
		return errors.NewMissingDurationKeyError(p.op("writeHead"))
	}
	if filesizeBytes, ok := flv.GetMetadataNumber(res.meta1.Body, "filesize"); ok {
		p.Out <- msgFilesize(p.Index, filesizeBytes)
	}
	p.Out <- msgDuration(p.Index, durationSec)

	if !freshStart {
		return nil
	}
	if _, err := p.File.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := p.File.Truncate(0); err != nil {
		return err
	}
	if _, err := p.File.Write(res.header[:]); err != nil {
		return err
	}
	if _, err := flv.WriteTag(p.File, res.meta1, 0); err != nil {
		return err
	}
	if _, err := flv.WriteTag(p.File, res.meta2, 0); err != nil {
		return err
	}
	return nil
}

// awaitEnd implements S4: every part, including the last, blocks for its
// end_time before streaming (the coordinator always eventually supplies
// one — effective_duration*1000 for the last part, a neighbor's
// real_offset otherwise).
func (p *Part) awaitEnd() error {
	p.Out <- msgNeedEnd(p.Index, true)
	ctrl, ok := <-p.In
	if !ok || ctrl.Kind == ControlStop {
		return errors.NewStopRequestedError(p.op("awaitEnd"))
	}
	p.endTime = ctrl.TimeMs
	return nil
}

// finishSuccess implements S7: the output file is truncated to the
// position actually written (discarding any stale tail from a previous,
// longer run that this one did not reach) and closed.
func (p *Part) finishSuccess() {
	if pos, err := p.File.Seek(0, io.SeekCurrent); err == nil {
		_ = p.File.Truncate(pos)
	}
	_ = p.File.Close()
	p.succeed()
}
