package logger

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Environment variable name for log level configuration.
const envLogLevel = "RTFLV_LOG_LEVEL"

// levelNames maps every accepted spelling (including the "" default and
// RTFLV_LOG_LEVEL's shorthands) to its slog.Level.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"":        slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
	"err":     slog.LevelError,
}

var (
	// level is shared by every handler Init or UseWriter constructs, so
	// SetLevel takes effect on already-issued *slog.Logger values too.
	level    = new(slog.LevelVar)
	global   *slog.Logger
	initOnce sync.Once

	// Optional flag (users may pass -log.level=debug). If flag.Parse hasn't
	// yet run when Init is invoked, the raw os.Args are scanned instead.
	flagLevel = flag.String("log.level", "", "log level (debug, info, warn, error)")
)

// Init initializes the global logger. It is safe to call multiple times; the
// first call wins except SetLevel / UseWriter which mutate state intentionally.
func Init() {
	initOnce.Do(func() {
		level.Set(detectLevel())
		global = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	})
}

// detectLevel resolves the initial log level from (precedence high→low):
//  1. command-line flag -log.level
//  2. environment variable RTFLV_LOG_LEVEL
//  3. default (info)
func detectLevel() slog.Level {
	sources := []string{*flagLevel, scanArgsForLevel(), os.Getenv(envLogLevel)}
	for _, s := range sources {
		if lvl, ok := parseLevel(s); ok && s != "" {
			return lvl
		}
	}
	return slog.LevelInfo
}

// scanArgsForLevel handles the case where Init runs before flag.Parse:
// the flag package hasn't populated *flagLevel yet, so the raw argument
// list is searched for the same spelling a parsed flag would have used.
func scanArgsForLevel() string {
	for _, arg := range os.Args[1:] {
		if v, ok := strings.CutPrefix(arg, "-log.level="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(arg, "--log.level="); ok {
			return v
		}
	}
	return ""
}

// parseLevel converts string to slog.Level.
func parseLevel(s string) (slog.Level, bool) {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	return lvl, ok
}

// SetLevel changes the runtime log level.
func SetLevel(lvl string) error {
	Init()
	parsed, ok := parseLevel(lvl)
	if !ok {
		return errors.New("invalid log level: " + lvl)
	}
	level.Set(parsed)
	return nil
}

// Level returns the current runtime level as string.
func Level() string {
	Init()
	return level.Level().String()
}

// UseWriter swaps the output writer (intended for tests). Retains current level.
func UseWriter(w io.Writer) {
	Init()
	global = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Logger returns the global logger (ensures Init was called).
func Logger() *slog.Logger { Init(); return global }

// Convenience top-level logging functions.
func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// WithDownload attaches the per-run correlation id the coordinator mints
// in Run (see internal/coordinator), so every line
// from one invocation can be grepped out of concurrently-running
// downloads sharing the same log stream.
func WithDownload(l *slog.Logger, downloadID string) *slog.Logger {
	return l.With("download_id", downloadID)
}

// WithPart attaches a part worker's identity: its index, and whether it
// is continuing from an existing .partN file (S0's Resume Analyzer,
// §4.3) rather than starting cold. The two states log very differently
// in practice — a resumed part's first lines are keyframe candidates
// from tryResume, a fresh part's are the initial openStream — so
// carrying "resumed" lets a log filter separate them without parsing
// message text.
func WithPart(l *slog.Logger, part int, resumed bool) *slog.Logger {
	return l.With("part", part, "resumed", resumed)
}

// WithAttempt attaches the Keyframe-Resume candidate index (§4.4): one
// failed reconnect can be followed by several more against earlier
// keyframes before the part gives up, and without this a retry storm
// reads as indistinguishable repeated lines.
func WithAttempt(l *slog.Logger, attempt int) *slog.Logger {
	return l.With("attempt", attempt)
}
