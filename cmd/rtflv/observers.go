package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"rtflv/internal/events"
)

// progressEvent is the JSON/env payload sent to external sinks. Built fresh
// per signal rather than reusing the worker's own Message type, since
// observers are a presentation concern, not a core one (§4.6).
type progressEvent struct {
	Signal    string  `json:"signal"`
	Part      int     `json:"part,omitempty"`
	Text      string  `json:"text,omitempty"`
	Number    float64 `json:"number,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// registerStdioObserver is the --debug sink: every signal except Progress,
// including Debug and Info, is dumped to stderr as a JSON line. It supersedes the
// progress bar rather than running alongside it: --debug routes
// debug/info output to stderr instead of the progress display (§6).
func registerStdioObserver(bus *events.Bus, now func() int64) {
	signals := []events.Signal{
		events.Debug, events.Info,
		events.GotDuration, events.GotFilesize,
		events.PartFinished, events.PartFailed,
	}
	for _, sig := range signals {
		sig := sig
		bus.On(sig, func(args ...any) {
			ev := buildEvent(sig, args, now)
			line, err := json.Marshal(ev)
			if err != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "RTFLV_EVENT: %s\n", line)
		})
	}
}

func registerWebhookObserver(bus *events.Bus, url string, now func() int64) {
	client := &http.Client{Timeout: 10 * time.Second}
	for _, sig := range []events.Signal{events.GotDuration, events.GotFilesize, events.PartFinished, events.PartFailed} {
		sig := sig
		bus.On(sig, func(args ...any) {
			ev := buildEvent(sig, args, now)
			body, err := json.Marshal(ev)
			if err != nil {
				return
			}
			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
		})
	}
}

func registerScriptObserver(bus *events.Bus, scriptPath string, now func() int64) {
	for _, sig := range []events.Signal{events.GotDuration, events.GotFilesize, events.PartFinished, events.PartFailed} {
		sig := sig
		bus.On(sig, func(args ...any) {
			ev := buildEvent(sig, args, now)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			cmd := exec.CommandContext(ctx, "/bin/bash", scriptPath)
			cmd.Env = append(os.Environ(),
				"RTFLV_SIGNAL="+ev.Signal,
				fmt.Sprintf("RTFLV_PART=%d", ev.Part),
				fmt.Sprintf("RTFLV_NUMBER=%v", ev.Number),
				"RTFLV_TEXT="+ev.Text,
			)
			_ = cmd.Run()
		})
	}
}

func buildEvent(sig events.Signal, args []any, now func() int64) progressEvent {
	ev := progressEvent{Signal: string(sig), Timestamp: now()}
	switch sig {
	case events.Debug, events.Info:
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				ev.Text = s
			}
		}
		if len(args) > 1 {
			if p, ok := args[1].(int); ok {
				ev.Part = p
			}
		}
	case events.GotDuration, events.GotFilesize:
		if len(args) > 0 {
			if n, ok := args[0].(float64); ok {
				ev.Number = n
			}
		}
	case events.PartFinished, events.PartFailed:
		if len(args) > 0 {
			if p, ok := args[0].(int); ok {
				ev.Part = p
			}
		}
	}
	return ev
}
