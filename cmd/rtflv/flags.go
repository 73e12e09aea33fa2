package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"rtflv/internal/config"
)

// cliConfig holds every value the CLI accepts, post flag-parsing and
// post config-file merge (flags always win over the config file).
type cliConfig struct {
	url     string
	outfile string
	parts   int

	resume             bool
	debug              bool
	lock               bool
	rateLimitBPS       int
	maxDurationSeconds float64
	notifyWebhook      string
	notifyScript       string
	configPath         string
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("rtflv", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	noResume := fs.Bool("no-resume", false, "disable resuming from existing .partN files")
	fs.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&cfg.lock, "lock", false, "hold an exclusive lock file for the duration of the download")
	fs.IntVar(&cfg.rateLimitBPS, "rate-limit-bps", 0, "aggregate download throughput cap, in bytes/sec (0 = unlimited)")
	fs.Float64Var(&cfg.maxDurationSeconds, "max-duration-seconds", 0, "cap on effective stream duration, in seconds (0 = use the server-reported duration)")
	fs.StringVar(&cfg.notifyWebhook, "notify-webhook", "", "POST duration, filesize and part finished/failed events as JSON to this URL")
	fs.StringVar(&cfg.notifyScript, "notify-script", "", "run this script on every duration, filesize and part finished/failed event, with RTFLV_* env vars set")
	fs.StringVar(&cfg.configPath, "config", "", "path to an optional YAML config file")
	fs.String("log.level", "", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.resume = !*noResume

	if cfg.configPath != "" {
		fileCfg, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, err
		}
		mergeConfig(cfg, fileCfg, fs)
	}

	rest := fs.Args()
	if len(rest) != 3 {
		return nil, fmt.Errorf("usage: rtflv [flags] <url> <outfile> <parts>")
	}
	cfg.url = rest[0]
	cfg.outfile = rest[1]
	n, err := strconv.Atoi(rest[2])
	if err != nil || n < 1 {
		return nil, fmt.Errorf("parts must be a positive integer, got %q", rest[2])
	}
	cfg.parts = n

	return cfg, nil
}

// mergeConfig applies fileCfg values for every flag the caller did not set
// explicitly on the command line — flags always take precedence.
func mergeConfig(cfg *cliConfig, fileCfg *config.Config, fs *flag.FlagSet) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["no-resume"] && fileCfg.Resume != nil {
		cfg.resume = *fileCfg.Resume
	}
	if !set["debug"] && fileCfg.Debug != nil {
		cfg.debug = *fileCfg.Debug
	}
	if !set["lock"] && fileCfg.Lock != nil {
		cfg.lock = *fileCfg.Lock
	}
	if !set["rate-limit-bps"] && fileCfg.RateLimitBPS != nil {
		cfg.rateLimitBPS = *fileCfg.RateLimitBPS
	}
	if !set["max-duration-seconds"] && fileCfg.MaxDurationSeconds != nil {
		cfg.maxDurationSeconds = *fileCfg.MaxDurationSeconds
	}
	if !set["notify-webhook"] && fileCfg.NotifyWebhook != nil {
		cfg.notifyWebhook = *fileCfg.NotifyWebhook
	}
	if !set["notify-script"] && fileCfg.NotifyScript != nil {
		cfg.notifyScript = *fileCfg.NotifyScript
	}
}
