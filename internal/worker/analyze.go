package worker

import (
	"io"

	"rtflv/internal/errors"
	"rtflv/internal/flv"
	"rtflv/internal/kindstate"
)

// analyze implements the Resume Analyzer (§4.3): it rebuilds the
// in-memory keyframe map, the sequence-header-written flags and the
// discovered real_offset by scanning an existing partial output file,
// without ever touching the network. It never shifts timestamps — the
// file's absolute timestamps are already final, written by a prior run of
// S5 — so unlike the live streaming path there is no offset bookkeeping
// here at all.
//
// A failure to make sense of the file (short header, missing/malformed
// leading metadata) is not itself fatal: it means the prior file is
// unusable, so the keyframe map is cleared and the worker falls through to
// a fresh start. The single fatal case is part 0's metadata lacking a
// duration key, since no other part can ever recover that value for the
// coordinator.
func (p *Part) analyze() error {
	if _, err := p.File.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if p.isFirstPart() {
		if _, err := flv.ReadFileHeader(p.File); err != nil {
			return p.abandonPriorFile()
		}
		meta1, err := flv.ReadNextTag(p.File)
		if err != nil || meta1.Kind != flv.KindMetadata {
			return p.abandonPriorFile()
		}
		if _, ok := flv.GetMetadataNumber(meta1.Body, "duration"); !ok {
			return errors.NewMissingDurationKeyError(p.op("analyze.meta1"))
		}
		if meta2, err := flv.ReadNextTag(p.File); err != nil || meta2.Kind != flv.KindMetadata {
			return p.abandonPriorFile()
		}
	}

	for {
		pos, err := p.File.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		tag, err := flv.ReadNextTag(p.File)
		if err != nil {
			// EOF, or a trailing partial tag left by a prior crash mid-write:
			// either way the scan simply stops here.
			break
		}

		switch tag.Kind {
		case flv.KindAudio, flv.KindVideo:
			kind := kindstate.KindOf(tag.Kind == flv.KindVideo)
			if tag.IsSequenceHeader() {
				p.tracker.SetHeaderWritten(kind)
				continue
			}
			if !p.realOffsetKnown {
				p.realOffset = int64(tag.Timestamp)
				p.realOffsetKnown = true
			}
			p.tracker.SetLastTimestamp(kind, tag.Timestamp)
			if tag.IsKeyframe() {
				p.keyframes[int64(tag.Timestamp)] = pos
			}
		}
	}

	_, err := p.File.Seek(0, io.SeekStart)
	return err
}

// abandonPriorFile clears whatever partial index was built and treats the
// existing file as unusable, without failing the part.
func (p *Part) abandonPriorFile() error {
	p.keyframes = make(map[int64]int64)
	p.realOffsetKnown = false
	_, err := p.File.Seek(0, io.SeekStart)
	return err
}
