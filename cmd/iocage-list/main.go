package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/truenas/iocage-list/command"
	"github.com/truenas/iocage-list/config"
	"github.com/truenas/iocage-list/dataset"
	"github.com/truenas/iocage-list/jailconf"
	"github.com/truenas/iocage-list/listing"
	"github.com/truenas/iocage-list/metrics"
	"github.com/truenas/iocage-list/probe"
	"github.com/truenas/iocage-list/reconcile"
	"github.com/truenas/iocage-list/truenas"
)

const (
	Version = "0.1.0"
)

var errVersion = errors.New("version requested")

// options are the listing flags; host settings live in config.Config.
type options struct {
	listType    string
	noHeader    bool
	long        bool
	sortKey     string
	quick       bool
	plugins     bool
	json        bool
	debug       bool
	metricsFile string
	configPath  string
	configSet   bool
}

func parseOptions(args []string) (*options, *pflag.FlagSet, error) {
	fs := pflag.NewFlagSet("iocage-list", pflag.ContinueOnError)
	opts := &options{}
	fs.StringVarP(&opts.listType, "type", "t", "all", "list type: all, basejail, uuid, base or template")
	fs.BoolVarP(&opts.noHeader, "no-header", "H", false, "print tab-separated rows without a header, for scripting")
	fs.BoolVarP(&opts.long, "long", "l", false, "show the full identity and every column")
	fs.StringVarP(&opts.sortKey, "sort", "s", "", "sort key (jid, name, uuid, boot, state, type, release, ip4, ip6, template, portal)")
	fs.BoolVarP(&opts.quick, "quick", "q", false, "only read configuration files, do not ask the kernel")
	fs.BoolVarP(&opts.plugins, "plugins", "P", false, "list plugins with their admin portal")
	fs.BoolVar(&opts.json, "json", false, "output as JSON")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "also write jail gauges to this node_exporter textfile")
	version := fs.Bool("version", false, "print version and exit")
	config.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if *version {
		return nil, nil, errVersion
	}

	opts.configPath, _ = fs.GetString("config")
	opts.configSet = fs.Changed("config")
	return opts, fs, nil
}

// view picks the record view. Quick listings only exist for jails, and
// the plugin listing always carries every column.
func (o *options) view(category dataset.Category) reconcile.View {
	switch {
	case o.quick && (category == dataset.CategoryAll || category == dataset.CategoryBasejail):
		return reconcile.ViewQuick
	case o.plugins:
		return reconcile.ViewPlugin
	case o.long:
		return reconcile.ViewFull
	}
	return reconcile.ViewShort
}

// host is what run needs from the machine it lists.
type host struct {
	// runner builds the runner for host utilities once the timeout is known.
	runner func(timeout time.Duration) command.Runner
	caps   reconcile.Capabilities
}

func systemHost() host {
	return host{
		runner: func(timeout time.Duration) command.Runner { return command.NewExecRunner(timeout) },
		caps:   reconcile.Capabilities{Elevated: unix.Geteuid() == 0},
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	opts, fs, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, errVersion) {
			fmt.Printf("iocage-list version %s\n", Version)
			os.Exit(0)
		}
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, fs, systemHost(), os.Stdout, logger); err != nil {
		logger.Error("listing failed", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, fs *pflag.FlagSet, h host, stdout io.Writer, logger *zap.Logger) error {
	cfg, err := config.Load(opts.configPath, opts.configSet)
	if err != nil {
		return err
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	category, err := dataset.ParseCategory(opts.listType)
	if err != nil {
		return err
	}

	runner := h.runner(cfg.ProbeTimeout)
	store, closeStore, err := openStore(cfg, runner, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	enumerator := dataset.NewEnumerator(store, cfg.Pool, cfg.Root,
		dataset.WithStrictIndex(cfg.StrictIndex),
		dataset.WithLogger(logger.Named("dataset")))
	resolver := listing.NewKeyResolver(logger.Named("listing"))
	header := !opts.noHeader

	switch category {
	case dataset.CategoryUUID:
		index, err := enumerator.Index(ctx)
		if err != nil {
			return err
		}
		if opts.json {
			return listing.WriteJSON(stdout, index)
		}
		_, err = listing.Present(listing.IndexHeaders, listing.IndexRows(index.Mountpoints), header).WriteTo(stdout)
		return err

	case dataset.CategoryBase:
		children, err := enumerator.List(ctx, category)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(children))
		for _, child := range children {
			names = append(names, child.Base())
		}
		names = listing.SortBases(resolver, names)
		if opts.json {
			return listing.WriteJSON(stdout, names)
		}
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name})
		}
		_, err = listing.Present([]string{listing.BasesHeader}, rows, header).WriteTo(stdout)
		return err
	}

	children, err := enumerator.List(ctx, category)
	if err != nil {
		return err
	}

	loader, err := jailconf.NewLoader()
	if err != nil {
		return err
	}
	engine := reconcile.NewEngine(
		store,
		loader,
		probe.NewExec(runner, cfg.Commands.JLS, cfg.Commands.Jexec),
		jailconf.NewSettings(runner, cfg.Commands.Jexec),
		h.caps,
		logger,
	)

	view := opts.view(category)
	records, err := engine.Reconcile(ctx, children, reconcile.Options{
		View:         view,
		BasejailOnly: category == dataset.CategoryBasejail,
		Parallelism:  cfg.Parallelism,
	})
	if err != nil {
		return err
	}
	resolver.Sort(listing.KindFor(view), opts.sortKey, records)

	if opts.metricsFile != "" {
		if view == reconcile.ViewQuick {
			logger.Warn("quick listings do not probe jails, metrics not written")
		} else if err := metrics.WriteTextfile(opts.metricsFile, records); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if opts.json {
		return listing.WriteJSON(stdout, records)
	}
	_, err = listing.Present(listing.Headers(view), listing.Project(view, records), header).WriteTo(stdout)
	return err
}

// openStore returns the configured dataset backend and its cleanup.
func openStore(cfg *config.Config, runner command.Runner, logger *zap.Logger) (dataset.Store, func(), error) {
	if cfg.Backend != config.BackendMiddleware {
		return dataset.NewZFSStore(runner, cfg.Commands.ZFS), func() {}, nil
	}

	client, err := truenas.NewClient(cfg.Middleware.Socket, cfg.Middleware.APIKey, cfg.ProbeTimeout, logger.Named("truenas"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create TrueNAS client: %w", err)
	}
	if err := client.Authenticate(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to authenticate with TrueNAS: %w", err)
	}
	logger.Debug("authenticated with TrueNAS middleware")
	return dataset.NewMiddlewareStore(client), func() { client.Close() }, nil
}
