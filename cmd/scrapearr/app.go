package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/vmunix/scrapearr/internal/config"
	"github.com/vmunix/scrapearr/internal/extract"
	"github.com/vmunix/scrapearr/internal/indexer"
	"github.com/vmunix/scrapearr/internal/indexer/newstudio"
	"github.com/vmunix/scrapearr/internal/indexer/rutracker"
	"github.com/vmunix/scrapearr/internal/indexer/soap4me"
	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/internal/store"
	"github.com/vmunix/scrapearr/internal/transport"
)

type siteFactory func(override extract.Specs) (indexer.Adapter, error)

var registry = map[string]siteFactory{
	rutracker.Name: func(o extract.Specs) (indexer.Adapter, error) {
		a, err := rutracker.New(o)
		if err != nil {
			return nil, err
		}
		return a, nil
	},
	newstudio.Name: func(o extract.Specs) (indexer.Adapter, error) {
		a, err := newstudio.New(o)
		if err != nil {
			return nil, err
		}
		return a, nil
	},
	soap4me.Name: func(o extract.Specs) (indexer.Adapter, error) {
		a, err := soap4me.New(o)
		if err != nil {
			return nil, err
		}
		return a, nil
	},
}

// siteNames lists every known adapter in name order.
func siteNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// buildAdapter creates the named adapter with the site's selector overrides.
func buildAdapter(name string, sc config.SiteConfig) (indexer.Adapter, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", indexer.ErrUnknownSite, name)
	}
	var override extract.Specs
	if sc.Selectors != "" {
		var err error
		if override, err = extract.LoadSpecsFile(sc.Selectors); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return factory(override)
}

// app is everything a command needs once the config is loaded.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	store      *store.Store
	doer       transport.Doer
	sessions   *session.Manager
	dispatcher *indexer.Dispatcher
	targets    []indexer.Target

	logCloser io.Closer
}

func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.Discover(); err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, path, nil
}

// openApp loads the config, opens the store and builds a target for every
// enabled site, restoring stored sessions.
func openApp(ctx context.Context) (*app, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, os.Stderr)
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, logCloser, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: logger, logCloser: logCloser}

	if dir := filepath.Dir(cfg.Store.Path); cfg.Store.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			a.Close()
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	if a.store, err = store.Open(ctx, cfg.Store.Path); err != nil {
		a.Close()
		return nil, err
	}

	a.doer = transport.NewClient(cfg.Transport.Options(), logger)
	a.sessions = session.NewManager(logger)

	opts := []indexer.Option{indexer.WithCache(a.store.DetailCache(cfg.Store.CacheTTL))}
	names := make([]string, 0, len(cfg.Sites))
	for name := range cfg.Sites {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		sc := cfg.Sites[name]
		if !sc.IsEnabled() {
			continue
		}
		adapter, err := buildAdapter(name, sc)
		if err != nil {
			a.Close()
			return nil, err
		}
		site := adapter.Site()
		sess := session.New(name, site.DefaultURL, site.Login, sc.Settings(), a.doer, logger)
		a.sessions.Add(sess)
		a.targets = append(a.targets, indexer.Target{Adapter: adapter, Session: sess})
		if sc.MaxItems > 0 || sc.Concurrency > 0 {
			opts = append(opts, indexer.WithLimits(name, indexer.Limits{MaxItems: sc.MaxItems, Concurrency: sc.Concurrency}))
		}
	}
	a.dispatcher = indexer.NewDispatcher(a.doer, logger, opts...)

	if err := a.sessions.Load(ctx, a.store); err != nil {
		logger.Warn("restoring sessions", "error", err)
	}
	return a, nil
}

// target returns the enabled site called name.
func (a *app) target(name string) (indexer.Target, error) {
	for _, t := range a.targets {
		if t.Adapter.Site().Name == name {
			return t, nil
		}
	}
	if _, known := registry[name]; known {
		return indexer.Target{}, fmt.Errorf("site %q is not enabled in the config", name)
	}
	return indexer.Target{}, fmt.Errorf("%w: %q", indexer.ErrUnknownSite, name)
}

// saveSessions persists every logged-in session.
func (a *app) saveSessions(ctx context.Context) {
	if err := a.sessions.Save(ctx, a.store); err != nil {
		a.log.Warn("saving sessions", "error", err)
	}
}

func (a *app) Close() {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "close: %v\n", err)
	}
}
