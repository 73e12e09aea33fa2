package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"rtflv/internal/coordinator"
	"rtflv/internal/events"
	"rtflv/internal/lockfile"
	"rtflv/internal/logger"
	"rtflv/internal/transport"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger.Init()
	if cfg.debug {
		logger.SetLevel("debug")
	}
	log := logger.Logger().With("component", "cli")

	bus := events.New()
	if cfg.debug {
		registerStdioObserver(bus, func() int64 { return time.Now().Unix() })
	} else {
		registerProgressBar(bus, cfg.parts)
	}
	if cfg.notifyWebhook != "" {
		registerWebhookObserver(bus, cfg.notifyWebhook, func() int64 { return time.Now().Unix() })
	}
	if cfg.notifyScript != "" {
		registerScriptObserver(bus, cfg.notifyScript, func() int64 { return time.Now().Unix() })
	}

	var lock *lockfile.Lock
	if cfg.lock {
		lock, err = lockfile.Acquire(log, cfg.outfile, "rtflv")
		if err != nil {
			log.Error("failed to acquire lock file", "err", err)
			os.Exit(1)
		}
		if lock == nil {
			log.Error("another download already holds the lock for this output file")
			os.Exit(1)
		}
		defer lock.Release(log)
	}

	opener := transport.New(
		transport.WithTimeout(30*time.Second),
		transport.WithRateLimit(cfg.rateLimitBPS),
	)

	c := coordinator.New(coordinator.Config{
		N:                  cfg.parts,
		OutFile:            cfg.outfile,
		URLFn:              seekURLFn(cfg.url),
		Opener:             opener,
		Resume:             cfg.resume,
		MaxDurationSeconds: cfg.maxDurationSeconds,
		Log:                log,
		Events:             bus,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Run(ctx); err != nil {
		log.Error("download failed", "err", err)
		os.Exit(1)
	}

	log.Info("download complete", "outfile", cfg.outfile)
}

// seekURLFn builds the worker.URLFunc the CLI supplies for a given base
// URL: the seek time, in seconds, is carried as a "start" query parameter.
// URL construction itself is an external collaborator the core never
// inspects (§6); this is the CLI's own choice of scheme.
func seekURLFn(base string) func(seconds float64) string {
	return func(seconds float64) string {
		u, err := url.Parse(base)
		if err != nil {
			return base
		}
		q := u.Query()
		q.Set("start", strconv.FormatFloat(seconds, 'f', 3, 64))
		u.RawQuery = q.Encode()
		return u.String()
	}
}
