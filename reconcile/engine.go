package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/truenas/iocage-list/dataset"
	"github.com/truenas/iocage-list/jailconf"
	"github.com/truenas/iocage-list/probe"
)

// Capabilities describes what the caller is allowed to observe. Only
// elevated callers can enter a jail to read its DHCP lease or see a
// plugin's failing output.
type Capabilities struct {
	Elevated bool
}

// Options selects what a Reconcile call produces.
type Options struct {
	View View
	// BasejailOnly drops every jail whose basejail flag is not on.
	BasejailOnly bool
	// Parallelism bounds how many jails are reconciled at once; values
	// below 1 mean one at a time.
	Parallelism int
}

// Engine reconciles datasets into records.
type Engine struct {
	store   dataset.Store
	loader  *jailconf.Loader
	probe   probe.Probe
	plugins jailconf.PluginProperties
	caps    Capabilities
	logger  *zap.Logger
}

// NewEngine wires the collaborators. plugins may be nil, in which case
// admin portal placeholders other than the address stay unresolved.
func NewEngine(store dataset.Store, loader *jailconf.Loader, p probe.Probe, plugins jailconf.PluginProperties, caps Capabilities, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		loader:  loader,
		probe:   probe.NewDedup(p),
		plugins: plugins,
		caps:    caps,
		logger:  logger.Named("reconcile"),
	}
}

// Reconcile builds one record per kept dataset, in dataset order. Per-jail
// failures end up in the record; the only error is a cancelled context.
func (e *Engine) Reconcile(ctx context.Context, datasets []dataset.Dataset, opts Options) ([]Record, error) {
	if opts.View == "" {
		opts.View = ViewShort
	}
	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}

	slots := make([]*Record, len(datasets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ds := range datasets {
		i, ds := i, ds // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if rec, keep := e.reconcileOne(gctx, ds, opts); keep {
				slots[i] = &rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}

	records := make([]Record, 0, len(slots))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (e *Engine) reconcileOne(ctx context.Context, ds dataset.Dataset, opts Options) (Record, bool) {
	mountpoint := e.mountpoint(ctx, ds)
	result := e.loader.Load(mountpoint)
	if result.Status == jailconf.StatusCorrupt {
		e.reportCorrupt(ds, result)
	}

	if opts.View == ViewQuick {
		return e.quickRecord(ds, mountpoint, result, opts)
	}

	rec := Record{Mountpoint: mountpoint, ConfigState: ConfigOK}
	conf := result.Config
	if result.Status == jailconf.StatusCorrupt {
		conf = corruptConfig(ds)
		rec.ConfigState = ConfigCorrupt
		rec.CorruptReason = result.Reason.Error()
		rec.RunState = RunCorruptUnknown
		rec.JID = None
	}

	if opts.BasejailOnly && !conf.Basejail.On {
		return Record{}, false
	}

	rec.Identity = conf.HostUUID
	rec.DisplayIdentity = conf.HostUUID
	if !opts.View.Full() {
		rec.DisplayIdentity = ShortenIdentity(conf.HostUUID)
	}

	rec.IP4Full, rec.IP4Short = NormalizeIPv4(conf.IP4Addr)
	rec.IP6 = NormalizeIP6(conf.IP6Addr)
	rec.FullRelease, rec.ShortRelease = NormalizeRelease(conf.Release)
	rec.DHCP = conf.DHCP.On

	if rec.Corrupt() {
		rec.Boot = jailconf.NotAvailable
		rec.Type = jailconf.NotAvailable
		rec.Kind = KindUnknown
	} else {
		rec.Boot = conf.Boot.OnOff()
		rec.Type = conf.Type
		rec.Kind = KindOf(conf.Type)
		e.resolveRunState(ctx, &rec)
	}

	if rec.Kind == KindTemplate {
		rec.TemplateOrigin = None
	} else {
		rec.TemplateOrigin = e.templateOrigin(ctx, ds)
	}

	if rec.DHCP {
		e.resolveDHCP(ctx, &rec, conf)
	}

	if opts.View == ViewPlugin {
		if !rec.Kind.IsPlugin() {
			return Record{}, false
		}
		rec.AdminPortal = e.resolvePortal(ctx, rec)
	}

	return rec, true
}

func (e *Engine) mountpoint(ctx context.Context, ds dataset.Dataset) string {
	if ds.Mountpoint != "" {
		return ds.Mountpoint
	}
	mountpoint, err := e.store.Property(ctx, ds.Name, "mountpoint")
	if err != nil {
		e.logger.Warn("cannot read mountpoint", zap.String("dataset", ds.Name), zap.Error(err))
	}
	return mountpoint
}

func (e *Engine) reportCorrupt(ds dataset.Dataset, result jailconf.Result) {
	if result.Missing() {
		e.logger.Warn(fmt.Sprintf("%s is missing its configuration file", ds.Base()),
			zap.String("dataset", ds.Name), zap.Error(result.Reason))
		return
	}
	e.logger.Warn(fmt.Sprintf("%s has a corrupt configuration", ds.Base()),
		zap.String("dataset", ds.Name), zap.Error(result.Reason))
}

// corruptConfig stands in for an unreadable config.json: every field is
// N/A and the identity comes from the dataset name.
func corruptConfig(ds dataset.Dataset) jailconf.Config {
	return jailconf.Config{
		HostUUID:   ds.Base(),
		IP4Addr:    jailconf.NotAvailable,
		IP6Addr:    jailconf.NotAvailable,
		Type:       jailconf.NotAvailable,
		Release:    jailconf.NotAvailable,
		Interfaces: jailconf.NotAvailable,
	}
}

func (e *Engine) resolveRunState(ctx context.Context, rec *Record) {
	result := e.probe.Registry(ctx, rec.Identity)
	switch result.State {
	case probe.StateUp:
		rec.RunState = RunUp
		rec.JID = result.JID
	case probe.StateError:
		e.logger.Warn("kernel registry probe failed",
			zap.String("identity", rec.Identity), zap.Error(result.Err))
		fallthrough
	default:
		rec.RunState = RunDown
		rec.JID = None
	}
}

func (e *Engine) templateOrigin(ctx context.Context, ds dataset.Dataset) string {
	origin, err := e.store.Property(ctx, ds.Name+"/root", "origin")
	if err != nil {
		e.logger.Warn("cannot read origin", zap.String("dataset", ds.Name+"/root"), zap.Error(err))
		return None
	}
	return ParseTemplateOrigin(origin)
}

func (e *Engine) quickRecord(ds dataset.Dataset, mountpoint string, result jailconf.Result, opts Options) (Record, bool) {
	if result.Status == jailconf.StatusCorrupt {
		if opts.BasejailOnly {
			return Record{}, false
		}
		return Record{
			Identity:        ds.Base(),
			DisplayIdentity: ds.Base() + " - CORRUPTED",
			Mountpoint:      mountpoint,
			ConfigState:     ConfigCorrupt,
			CorruptReason:   result.Reason.Error(),
			Kind:            KindUnknown,
			IP4Full:         jailconf.NotAvailable,
			IP4Short:        jailconf.NotAvailable,
			RunState:        RunCorruptUnknown,
			JID:             None,
		}, true
	}

	conf := result.Config
	if opts.BasejailOnly && !conf.Basejail.On {
		return Record{}, false
	}

	ip4 := conf.IP4Addr
	if conf.DHCP.On {
		ip4 = "DHCP"
	}
	return Record{
		Identity:        conf.HostUUID,
		DisplayIdentity: conf.HostUUID,
		Mountpoint:      mountpoint,
		ConfigState:     ConfigOK,
		Kind:            KindOf(conf.Type),
		Type:            conf.Type,
		IP4Full:         ip4,
		IP4Short:        ip4,
		DHCP:            conf.DHCP.On,
	}, true
}
