package worker

import (
	"io"

	"rtflv/internal/flv"
	"rtflv/internal/kindstate"
)

type streamOutcome int

const (
	streamDone streamOutcome = iota
	streamPrematureClose
	streamStopped
)

// streamTags implements S5 and the tag filter/offset rules of §4.2. It
// consumes res.stream tag by tag, deciding per tag whether to forward it to
// p.File, until a clean end, a premature close (caller should attempt
// Keyframe-Resume and re-enter streamTags), or a cooperative stop.
//
// Every connection — the initial cold open or a Keyframe-Resume retry —
// declares its own absolute anchor via the server-reported timeBase
// (res.timeBaseMs). Tags are rebased against that anchor, not against the
// originally-requested start_time: a real-time server seeks to the nearest
// keyframe, not the exact millisecond asked for, so the anchor actually
// realized can differ from what was requested (§8 scenario 1).
//
// real_offset itself is latched earlier, as soon as a connection opens
// (see Run in state.go) rather than here on the first handled tag: the
// coordinator's need_end dispatch must be able to read a part's
// real_offset before that part ever reaches S5, which would be
// impossible if it were only set here.
func (p *Part) streamTags(res *openResult) (streamOutcome, error) {
	budgetMs := p.endTime - res.timeBaseMs
	offset := res.timeBaseMs
	foundFirstTag := false

	for {
		select {
		case ctrl := <-p.In:
			if ctrl.Kind == ControlStop {
				res.stream.Close()
				return streamStopped, nil
			}
		default:
		}

		tag, err := flv.ReadNextTag(res.stream)
		if err != nil {
			res.stream.Close()
			return streamPrematureClose, nil
		}

		if tag.Kind != flv.KindAudio && tag.Kind != flv.KindVideo {
			if tag.Kind == flv.KindEnd && tag.Timestamp == 0 && p.isLastPart() {
				p.reportResidual(budgetMs)
				res.stream.Close()
				return streamDone, nil
			}
			continue
		}

		kind := kindstate.KindOf(tag.Kind == flv.KindVideo)
		isSeqHeader := tag.IsSequenceHeader()

		var handle bool
		if isSeqHeader {
			handle = !p.tracker.HeaderWritten(kind)
		} else {
			handle = int64(tag.Timestamp)+offset > int64(p.tracker.LastTimestamp(kind))
		}

		if handle && !isSeqHeader && !foundFirstTag {
			foundFirstTag = true
			declaredBoundary := offset
			offset = declaredBoundary - int64(tag.Timestamp)
			budgetMs += int64(tag.Timestamp)
		}

		if !isSeqHeader && int64(tag.Timestamp) >= budgetMs {
			atBudgetKeyframe := int64(tag.Timestamp) == budgetMs && tag.IsKeyframe()
			if !p.isLastPart() && !atBudgetKeyframe {
				p.info("ended off expected keyframe")
			}
			if handle {
				p.writeHandledTag(res, tag, kind, isSeqHeader, offset)
			}
			res.stream.Close()
			return streamDone, nil
		}

		if !handle {
			continue
		}

		p.writeHandledTag(res, tag, kind, isSeqHeader, offset)
	}
}

// writeHandledTag performs step 4 of §4.2's tag-filter rules: record the
// kind's new last timestamp, forward the tag with the current additive
// offset, and, for keyframes, record the output position the tag was
// written at and report progress.
func (p *Part) writeHandledTag(res *openResult, tag *flv.Tag, kind kindstate.Kind, isSeqHeader bool, offset int64) {
	writtenTs := int64(tag.Timestamp) + offset

	pos, err := p.File.Seek(0, io.SeekCurrent)
	if err != nil {
		p.debug("seek before write failed: %v", err)
		return
	}

	if _, err := flv.WriteTag(p.File, tag, int32(offset)); err != nil {
		p.debug("write tag failed: %v", err)
		return
	}

	if isSeqHeader {
		p.tracker.SetHeaderWritten(kind)
		return
	}
	p.tracker.SetLastTimestamp(kind, int32(writtenTs))

	if tag.IsKeyframe() {
		p.keyframes[writtenTs] = pos
		if p.endTime > p.realOffset {
			progress := float64(writtenTs-p.realOffset) / float64(p.endTime-p.realOffset)
			p.Out <- msgProgress(p.Index, progress)
		}
	}
}

// reportResidual emits the gap between the declared end_time and the
// highest absolute timestamp actually written, observed when the
// end-of-stream sentinel arrives before the part's full budget was used.
func (p *Part) reportResidual(_ int64) {
	maxLast := p.tracker.LastTimestamp(kindstate.Audio)
	if v := p.tracker.LastTimestamp(kindstate.Video); v > maxLast {
		maxLast = v
	}
	residual := p.endTime - int64(maxLast)
	p.debug("end-of-stream sentinel seen, residual %dms", residual)
}
