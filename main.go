package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llehouerou/noticed/internal/busname"
	"github.com/llehouerou/noticed/internal/config"
	"github.com/llehouerou/noticed/internal/daemon"
	"github.com/llehouerou/noticed/internal/errmsg"
	"github.com/llehouerou/noticed/internal/logging"
	"github.com/llehouerou/noticed/internal/metrics"
	"github.com/llehouerou/noticed/internal/notification"
	"github.com/llehouerou/noticed/internal/sound"
	"github.com/llehouerou/noticed/internal/stderr"
	"github.com/llehouerou/noticed/internal/store"
	"github.com/llehouerou/noticed/internal/trial"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// releaseWait bounds the wait for a stopped daemon to drop the name.
const releaseWait = 5 * time.Second

// runError tags a startup failure with the operation that failed.
type runError struct {
	op     errmsg.Op
	target string
	err    error
}

func (e *runError) Error() string { return errmsg.FormatWith(e.op, e.target, e.err) }

func (e *runError) Unwrap() error { return e.err }

func fail(op errmsg.Op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &runError{op: op, target: target, err: err}
}

type flags struct {
	configPath  string
	trial       bool
	restore     string
	yes         bool
	restoreWait time.Duration
	check       bool
	version     bool
	logLevel    string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("noticed", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/noticed/config.toml)")
	fs.BoolVar(&f.trial, "trial", false, "stop the running notification daemon and take over until exit")
	fs.StringVar(&f.restore, "restore", "", "trial restore strategy: auto, none, systemd or process")
	fs.BoolVarP(&f.yes, "yes", "y", false, "do not ask before stopping the running daemon")
	fs.DurationVar(&f.restoreWait, "restore-wait", 0, "how long to wait for the previous daemon on exit")
	fs.BoolVar(&f.check, "check", false, "validate the configuration and exit")
	fs.BoolVar(&f.version, "version", false, "print the version and exit")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (overrides general.log_level)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return f, nil
}

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "noticed: %v\n", err)
			os.Exit(1)
		}
	}
}

func run() error {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fail(errmsg.OpParseArgs, "", err)
	}
	if f.version {
		fmt.Println("noticed", version)
		return nil
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if f.check {
		path := cfg.Path
		if path == "" {
			path = "(builtin defaults)"
		}
		fmt.Printf("configuration ok: %s\n", path)
		return nil
	}

	// Capture fd 2 before the logger binds os.Stderr.
	if err := stderr.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "noticed: stderr capture disabled: %v\n", err)
	}
	defer stderr.Stop()

	level := cfg.LogLevel()
	if f.logLevel != "" {
		level = f.logLevel
	}
	logger, err := logging.New(level, cfg.LogFormat())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fail(errmsg.OpConnect, "", err)
	}
	defer conn.Close()
	bus := busname.New(conn)

	var negotiator *trial.Negotiator
	if f.trial {
		opts, err := trialOptions(cfg, f)
		if err != nil {
			return fail(errmsg.OpTrial, "", err)
		}
		tlog := logger.Named("trial")
		negotiator = trial.New(bus, trial.NewHostSystem(tlog), opts,
			trial.PromptConfirm(os.Stdin, os.Stdout), os.Stdout, tlog)
		session, err := negotiator.Prepare(ctx)
		if err != nil {
			return fail(errmsg.OpTrial, "", err)
		}
		defer negotiator.Restore(context.WithoutCancel(ctx), session)
	}

	m := metrics.New()
	state := daemon.New(daemon.Options{
		Store:   store.New(storeSettings(cfg)),
		Emitter: daemon.NewBusEmitter(conn),
		Sound:   sound.New(soundSettings(cfg), logger.Named("sound")),
		Metrics: m,
		Logger:  logger.Named("daemon"),
		Version: version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state.RunScheduler(gctx)
		return nil
	})
	g.Go(func() error {
		stderr.Forward(gctx, logger.Named("native"))
		return nil
	})

	if err := serve(gctx, conn, bus, state, negotiator, logger); err != nil {
		stop()
		_ = g.Wait()
		return err
	}

	if addr := cfg.Metrics.Listen; addr != "" {
		srv := metrics.NewServer(addr, m, func() any { return state.Snapshot() }, logger.Named("metrics"))
		g.Go(func() error { return srv.Run(gctx) })
	}

	logger.Info("noticed running", zap.String("version", version), zap.Bool("trial", f.trial))
	<-gctx.Done()
	logger.Info("shutting down")
	return g.Wait()
}

// serve exports both objects and takes the control and notification names.
func serve(ctx context.Context, conn *dbus.Conn, bus busname.Bus, state *daemon.State, negotiator *trial.Negotiator, logger *zap.Logger) error {
	if err := daemon.Export(conn, state); err != nil {
		return fail(errmsg.OpExport, "", err)
	}
	if err := busname.AcquireExclusive(bus, notification.ControlName); err != nil {
		return fail(errmsg.OpAcquire, notification.ControlName, err)
	}
	if negotiator != nil {
		return fail(errmsg.OpTrial, "", negotiator.Acquire(ctx))
	}
	if err := busname.AcquireExclusive(bus, notification.NotificationsName); err != nil {
		busname.LogCurrentOwner(bus, notification.NotificationsName, logger)
		return fail(errmsg.OpAcquire, notification.NotificationsName, fmt.Errorf("%w (use --trial to take over)", err))
	}
	return nil
}

// loadConfig reads and validates the configuration. Validation errors name
// the file they came from.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fail(errmsg.OpLoadConfig, "", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fail(errmsg.OpLoadConfig, cfg.Path, err)
	}
	return cfg, nil
}

func storeSettings(cfg *config.Config) store.Settings {
	rules := make([]store.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, store.Rule{
			Name:            r.Name,
			App:             r.App,
			Summary:         r.Summary,
			Body:            r.Body,
			Category:        r.Category,
			Urgency:         urgency(r.Urgency),
			NoPopup:         r.NoPopup,
			Silent:          r.Silent,
			ForceUrgency:    urgency(r.ForceUrgency),
			ExpireTimeoutMs: r.ExpireTimeoutMs,
			Resident:        r.Resident,
			Transient:       r.Transient,
		})
	}
	return store.Settings{
		MaxActive:          cfg.MaxActive(),
		MaxHistory:         cfg.MaxHistory(),
		TransientToHistory: cfg.History.TransientToHistory,
		DndDefault:         cfg.General.DndDefault,
		Rules:              rules,
		DefaultTimeout:     cfg.DefaultTimeout(),
		CriticalTimeout:    cfg.CriticalTimeout(),
	}
}

// urgency narrows a validated config urgency.
func urgency(v *int) *uint8 {
	if v == nil {
		return nil
	}
	u := uint8(*v)
	return &u
}

func soundSettings(cfg *config.Config) sound.Settings {
	sc := cfg.GetSoundConfig()
	return sound.Settings{
		Enabled:     *sc.Enabled,
		Backend:     sc.Backend,
		DefaultName: *sc.DefaultName,
		DefaultFile: sc.DefaultFile,
		DefaultDir:  sc.DefaultDir,
		MinInterval: time.Duration(*sc.MinIntervalMs) * time.Millisecond,
		Volume:      sc.Volume,
	}
}

func trialOptions(cfg *config.Config, f flags) (trial.Options, error) {
	name := cfg.RestoreStrategy()
	if f.restore != "" {
		name = f.restore
	}
	strategy, err := trial.ParseStrategy(name)
	if err != nil {
		return trial.Options{}, err
	}

	wait := cfg.RestoreWait()
	if f.restoreWait > 0 {
		wait = f.restoreWait
	}

	known := append([]trial.KnownDaemon{}, trial.DefaultKnown...)
	for _, d := range cfg.Trial.ExtraDaemons {
		known = append(known, trial.KnownDaemon{Name: d.Name, Unit: d.Unit})
	}

	return trial.Options{
		Strategy:    strategy,
		SkipConfirm: f.yes,
		WaitTimeout: releaseWait,
		RestoreWait: wait,
		Known:       known,
	}, nil
}
