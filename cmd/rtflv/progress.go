package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"rtflv/internal/events"
)

// progressBar is the CLI's default (non-debug) stdio sink: a single
// in-place line on stderr showing each part's fractional completion,
// redrawn on every events.Progress emission. It replaces the
// line-per-event JSON/env dump registerStdioObserver produces under
// --debug: a progress display by default, debug/info routed to stderr
// only when --debug is set, so the two presentations are mutually
// exclusive sinks on the same bus (§6).
type progressBar struct {
	mu       sync.Mutex
	fraction []float64
	done     []bool
	failed   []bool
	finished int
}

func registerProgressBar(bus *events.Bus, n int) {
	pb := &progressBar{fraction: make([]float64, n), done: make([]bool, n), failed: make([]bool, n)}

	bus.On(events.Progress, func(args ...any) {
		if len(args) < 2 {
			return
		}
		frac, _ := args[0].(float64)
		part, _ := args[1].(int)
		pb.set(part, frac)
	})
	bus.On(events.PartFinished, func(args ...any) {
		if len(args) < 1 {
			return
		}
		part, _ := args[0].(int)
		pb.finish(part, false)
	})
	bus.On(events.PartFailed, func(args ...any) {
		if len(args) < 1 {
			return
		}
		part, _ := args[0].(int)
		pb.finish(part, true)
	})
}

func (pb *progressBar) set(part int, frac float64) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if part < 0 || part >= len(pb.fraction) || pb.done[part] {
		return
	}
	pb.fraction[part] = clamp01(frac)
	pb.render()
}

func (pb *progressBar) finish(part int, failed bool) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if part < 0 || part >= len(pb.fraction) || pb.done[part] {
		return
	}
	pb.done[part] = true
	pb.failed[part] = failed
	if !failed {
		pb.fraction[part] = 1
	}
	pb.finished++
	pb.render()
	if pb.finished == len(pb.fraction) {
		fmt.Fprintln(os.Stderr)
	}
}

// render draws one line, one bracketed meter per part, overwriting the
// previous line via a bare carriage return (no cursor-positioning escape
// codes, matching the plain stderr writes the rest of the CLI uses).
func (pb *progressBar) render() {
	var b strings.Builder
	b.WriteByte('\r')
	for i, f := range pb.fraction {
		b.WriteString(fmt.Sprintf("[%d %s]", i, meter(f, pb.failed[i])))
		if i < len(pb.fraction)-1 {
			b.WriteByte(' ')
		}
	}
	fmt.Fprint(os.Stderr, b.String())
}

const meterWidth = 10

func meter(frac float64, failed bool) string {
	if failed {
		return strings.Repeat("x", meterWidth)
	}
	filled := int(clamp01(frac) * meterWidth)
	return strings.Repeat("#", filled) + strings.Repeat(".", meterWidth-filled)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
