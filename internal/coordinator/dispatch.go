package coordinator

import (
	"fmt"
	"log/slog"

	"rtflv/internal/events"
	"rtflv/internal/worker"
)

// dispatchLoop is the coordinator's main message loop (§4.5, §5): it
// runs until every part has reported a terminal status, computing and
// sending start/end time boundaries as soon as every part has reported
// the corresponding need, and cascading a stop to every other part on
// the first failure.
func (c *Coordinator) dispatchLoop(out <-chan worker.Message, states []*partState, parts []*worker.Part, effectiveDurationMs int64, log *slog.Logger) error {
	n := len(states)
	startDispatched, endDispatched := false, false
	var abortErr error
	terminalCount := 0

	for terminalCount < n {
		m, okCh := <-out
		if !okCh {
			return fmt.Errorf("coordinator: output channel closed before all parts terminated")
		}

		switch m.Kind {
		case worker.MsgDebug:
			c.emitText(events.Debug, m)
		case worker.MsgInfo:
			c.emitText(events.Info, m)
		case worker.MsgProgress:
			c.cfg.Events.Emit(events.Progress, m.Number, m.Part)

		case worker.MsgNeedStart:
			states[m.Part].reportedNeedStart = true
			states[m.Part].needStart = m.Need
			if !startDispatched && allReported(states, func(s *partState) bool { return s.reportedNeedStart }) {
				startDispatched = true
				c.dispatchStartTimes(states, parts, effectiveDurationMs)
			}

		case worker.MsgNeedEnd:
			states[m.Part].reportedNeedEnd = true
			states[m.Part].needEnd = m.Need
			if !endDispatched && allReported(states, func(s *partState) bool { return s.reportedNeedEnd }) {
				endDispatched = true
				c.dispatchEndTimes(states, parts, effectiveDurationMs)
			}

		case worker.MsgStatus:
			terminalCount++
			if m.Status == worker.StatusSuccess {
				states[m.Part].done = true
				c.cfg.Events.Emit(events.PartFinished, m.Part)
			} else {
				states[m.Part].failed = true
				c.cfg.Events.Emit(events.PartFailed, m.Part)
				if abortErr == nil {
					abortErr = fmt.Errorf("coordinator: part %d failed", m.Part)
					c.abortOthers(states, m.Part)
				}
			}
		}
	}

	return abortErr
}

func allReported(states []*partState, pred func(*partState) bool) bool {
	for _, s := range states {
		if !pred(s) {
			return false
		}
	}
	return true
}

// abortOthers cascades a stop request to every part that has not yet
// terminated, except the one that just failed (it is already on its
// way out). Each send happens on its own goroutine so a part currently
// blocked in a network read — and thus not yet polling its input
// channel — never stalls the dispatch loop itself.
func (c *Coordinator) abortOthers(states []*partState, failedPart int) {
	for i, s := range states {
		if i == failedPart || s.done || s.failed {
			continue
		}
		go func(ch chan worker.Control) { ch <- worker.Control{Kind: worker.ControlStop} }(s.in)
	}
}

// dispatchStartTimes implements §4.5's need_start rule once every part
// has reported.
func (c *Coordinator) dispatchStartTimes(states []*partState, parts []*worker.Part, effectiveDurationMs int64) {
	n := len(states)
	needStart := make([]bool, n)
	for i, s := range states {
		needStart[i] = s.needStart
	}

	assignments := computeStartTimes(n, needStart,
		func(i int) int64 { return parts[i].StartTime() },
		func(i int) int64 {
			v, _ := parts[i].RealOffset()
			return v
		},
		effectiveDurationMs,
	)

	for _, a := range assignments {
		states[a.part].in <- worker.Control{Kind: worker.ControlStartTime, TimeMs: a.ms}
	}
}

// dispatchEndTimes implements §4.5's need_end rule once every part has
// reported.
func (c *Coordinator) dispatchEndTimes(states []*partState, parts []*worker.Part, effectiveDurationMs int64) {
	n := len(states)
	needEnd := make([]bool, n)
	for i, s := range states {
		needEnd[i] = s.needEnd
	}

	assignments := computeEndTimes(n, needEnd,
		func(i int) (int64, bool) { return parts[i].RealOffset() },
		effectiveDurationMs,
	)

	for part, ms := range assignments {
		states[part].in <- worker.Control{Kind: worker.ControlEndTime, TimeMs: ms}
	}
}
