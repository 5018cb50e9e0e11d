// bw is a live kanban board for a beads project. It watches the project
// store, optionally follows a redis channel for pushed edits, and renders the
// reconciled board in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/beadsync/internal/datasource"
	"github.com/vanderheijden86/beadsync/pkg/config"
	"github.com/vanderheijden86/beadsync/pkg/loader"
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
	"github.com/vanderheijden86/beadsync/pkg/push"
	"github.com/vanderheijden86/beadsync/pkg/session"
	"github.com/vanderheijden86/beadsync/pkg/ui"
	"github.com/vanderheijden86/beadsync/pkg/version"
	"github.com/vanderheijden86/beadsync/pkg/watcher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	beadsDir   string
	configPath string
	preset     string
	once       bool
	jsonOut    bool
	forcePoll  bool
	push       bool
	redisAddr  string
	channel    string
	logLevel   string
	logFormat  string
	logFile    string
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (options, *pflag.FlagSet, error) {
	var opts options
	fs := pflag.NewFlagSet("bw", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.beadsDir, "beads-dir", "", "project beads directory (default: $BEADS_DIR or ./.beads)")
	fs.StringVar(&opts.configPath, "config", "", "config file (default: ~/.config/bw/config.yaml plus .beads/bw.yaml)")
	fs.StringVar(&opts.preset, "preset", "", "card order: created-asc, created-desc, updated-desc, priority, identifier")
	fs.BoolVar(&opts.once, "once", false, "print the board once and exit")
	fs.BoolVar(&opts.jsonOut, "json", false, "with --once, print the snapshot as JSON")
	fs.BoolVar(&opts.forcePoll, "force-poll", false, "poll the store instead of using filesystem events")
	fs.BoolVar(&opts.push, "push", false, "follow pushed updates on a redis channel")
	fs.StringVar(&opts.redisAddr, "redis", "", "redis address for --push")
	fs.StringVar(&opts.channel, "channel", "", "redis channel for --push")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	fs.StringVar(&opts.logFile, "log-file", "", "write logs to this file (the board discards logs otherwise)")
	fs.BoolVar(&opts.version, "version", false, "show version")

	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}
	if rest := fs.Args(); len(rest) > 0 {
		return opts, fs, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if opts.jsonOut && !opts.once {
		return opts, fs, errors.New("--json requires --once")
	}
	return opts, fs, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.version {
		fmt.Fprintf(stdout, "bw %s\n", version.Version)
		return nil
	}

	cfg, err := loadConfig(opts, fs)
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg.Log, opts, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	sess := session.New(session.Config{
		Board:       cfg.Board,
		Preset:      cfg.Sort.Preset,
		QueueSize:   cfg.Session.QueueSize,
		FrameBuffer: cfg.Session.FrameBuffer,
		Logger:      logger,
	})
	load := func() ([]model.Issue, error) {
		return datasource.LoadIssues(cfg.BeadsDir)
	}

	if opts.once {
		return runOnce(ctx, sess, load, opts.jsonOut, stdout)
	}
	return runBoard(ctx, cfg, sess, load, logger)
}

func loadConfig(opts options, fs *pflag.FlagSet) (config.Config, error) {
	dir := opts.beadsDir
	if dir == "" {
		var err error
		if dir, err = loader.GetBeadsDir(""); err != nil {
			return config.Config{}, err
		}
	}

	var (
		cfg config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load(dir)
	}
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if fs.Changed("beads-dir") || cfg.BeadsDir == "" {
		cfg.BeadsDir = dir
	}
	if fs.Changed("preset") {
		cfg.Sort.Preset = ordering.Preset(opts.preset)
	}
	if fs.Changed("force-poll") {
		cfg.Watch.ForcePoll = opts.forcePoll
	}
	if fs.Changed("push") {
		cfg.Push.Enabled = opts.push
	}
	if fs.Changed("redis") {
		cfg.Push.RedisAddr = opts.redisAddr
	}
	if fs.Changed("channel") {
		cfg.Push.Channel = opts.channel
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(lc config.LogConfig, opts options, stderr io.Writer) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)
	switch lc.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", lc.Format)
	}

	closeLog := func() {}
	switch {
	case opts.logFile != "":
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		logger.SetOutput(f)
		closeLog = func() { _ = f.Close() }
	case opts.once:
		logger.SetOutput(stderr)
	default:
		// The board owns the terminal.
		logger.SetOutput(io.Discard)
	}
	return logger, closeLog, nil
}

// runOnce loads the store, builds a single frame and prints it.
func runOnce(ctx context.Context, sess *session.Session, load session.LoadFunc, jsonOut bool, stdout io.Writer) error {
	issues, err := load()
	if err != nil {
		return fmt.Errorf("loading issues: %w", err)
	}
	if err := sess.Submit(ctx, session.FullLoad{Issues: issues, Source: "once"}); err != nil {
		return err
	}
	sess.Close(session.DrainPending)
	if err := sess.Run(ctx); err != nil {
		return err
	}

	frame := sess.Current()
	if frame == nil {
		return errors.New("no snapshot produced")
	}
	if jsonOut {
		return writeSnapshotJSON(stdout, frame.Snapshot)
	}
	return writeSnapshotText(stdout, frame.Snapshot)
}

// runBoard runs the session, its sources and the terminal board until the
// user quits, ctx is cancelled or a source fails.
func runBoard(ctx context.Context, cfg config.Config, sess *session.Session, load session.LoadFunc, logger logrus.FieldLogger) error {
	w, err := watcher.New(cfg.BeadsDir,
		watcher.WithDebounceDuration(cfg.Watch.Debounce()),
		watcher.WithPollInterval(cfg.Watch.PollInterval()),
		watcher.WithForcePoll(cfg.Watch.ForcePoll),
		watcher.WithOnError(func(err error) {
			logger.WithFields(logrus.Fields{"component": "watcher", "event": "watch_error", "error": err.Error()}).Warn("watch error")
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.BeadsDir, err)
	}
	defer w.Stop()
	if w.IsPolling() {
		logger.WithFields(logrus.Fields{"component": "watcher", "event": "polling"}).Info("using polling for change detection")
	}

	sources := []session.Source{session.WatchSource("store", w.Changed(), load)}
	if cfg.Push.Enabled {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Push.RedisAddr})
		defer rc.Close()
		sources = append(sources, push.NewSubscriber(rc, cfg.Push.Channel, push.WithLogger(logger)).Source())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.RunSources(gctx, sources...)
	})
	g.Go(func() error {
		defer sess.Close(session.DiscardPending)
		p := tea.NewProgram(ui.New(sess.Frames(), sess), tea.WithAltScreen(), tea.WithContext(gctx))
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
