package worker

import (
	"context"
	stdErrors "errors"
	"io"
	"sort"

	"rtflv/internal/errors"
	"rtflv/internal/logger"
)

// keyframeCandidateUnusable reports whether err means "this candidate
// connection is no good, try an earlier keyframe" rather than "abandon
// Keyframe-Resume entirely." Every error openStream can return is one of
// the two except WrongMimeError: a transport hiccup, a short read, or a
// missing/malformed metadata pair on this one attempt says nothing about
// whether an earlier keyframe would do better, so Keyframe-Resume keeps
// walking. A wrong Content-Type means the server will never serve this
// stream correctly regardless of seek point.
func keyframeCandidateUnusable(err error) bool {
	var wrongMime *errors.WrongMimeError
	return !stdErrors.As(err, &wrongMime)
}

// tryResume implements Keyframe-Resume (§4.4): walk known keyframe
// timestamps from latest to earliest, opening url_fn(k/1000) for each,
// until a server response's declared timeBase rounds to a timestamp
// already present in the keyframe map. On alignment the output file is
// seeked back to that keyframe's byte offset so the tail that was never
// finalized gets overwritten rather than appended after.
//
// Returns ok=false, err=nil if the keyframe map is empty or every
// candidate was tried without an aligned response — not resumable, but not
// a failure either; the caller falls back to a fresh open.
func (p *Part) tryResume(ctx context.Context) (res *openResult, alignedAt int64, ok bool, err error) {
	if len(p.keyframes) == 0 {
		return nil, 0, false, nil
	}

	candidates := make([]int64, 0, len(p.keyframes))
	for k := range p.keyframes {
		candidates = append(candidates, k)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] > candidates[j] })

	for n, k := range candidates {
		attemptLog := logger.WithAttempt(p.Log, n)

		candRes, openErr := p.openStream(ctx, float64(k)/1000.0)
		if openErr != nil {
			if !keyframeCandidateUnusable(openErr) {
				return nil, 0, false, openErr
			}
			attemptLog.Debug("keyframe candidate unusable, trying earlier", "keyframe_ms", k, "err", openErr)
			p.info("keyframe candidate %d ms unusable (%v), trying earlier", k, openErr)
			continue
		}

		pos, aligned := p.keyframes[candRes.timeBaseMs]
		if !aligned {
			attemptLog.Debug("stream starts at unknown keyframe", "keyframe_ms", candRes.timeBaseMs)
			p.info("Stream starts at unknown keyframe %d", candRes.timeBaseMs)
			candRes.stream.Close()
			continue
		}

		if _, seekErr := p.File.Seek(pos, io.SeekStart); seekErr != nil {
			candRes.stream.Close()
			return nil, 0, false, seekErr
		}
		return candRes, candRes.timeBaseMs, true, nil
	}

	return nil, 0, false, nil
}
