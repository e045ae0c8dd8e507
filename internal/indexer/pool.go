package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/vmunix/scrapearr/internal/session"
	"github.com/vmunix/scrapearr/pkg/release"
)

// Target pairs an adapter with its session.
type Target struct {
	Adapter Adapter
	Session *session.Session
}

// Pool searches several sites in parallel.
type Pool struct {
	dispatcher *Dispatcher
	targets    []Target
	log        *slog.Logger
}

// NewPool creates a pool over targets.
func NewPool(d *Dispatcher, targets []Target, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{dispatcher: d, targets: targets, log: log.With("component", "pool")}
}

// PoolResult merges per-site results. Records keep per-site listing order,
// sites in target order; nothing is ranked or deduplicated.
type PoolResult struct {
	Records []release.Record
	Results map[string]*Result
	Errors  map[string]error
}

type siteOutcome struct {
	site   string
	result *Result
	err    error
}

// Search queries every target and collects what each returned.
func (p *Pool) Search(ctx context.Context, q Query) (*PoolResult, error) {
	if len(p.targets) == 0 {
		return nil, ErrNoSites
	}
	start := time.Now()

	workers := pool.NewWithResults[siteOutcome]().WithMaxGoroutines(len(p.targets))
	for _, t := range p.targets {
		workers.Go(func() siteOutcome {
			name := t.Adapter.Site().Name
			res, err := p.dispatcher.Search(ctx, t.Adapter, t.Session, q)
			if err != nil {
				p.log.Warn("site failed", "site", name, "error", err)
			}
			return siteOutcome{site: name, result: res, err: err}
		})
	}
	outcomes := workers.Wait()

	out := &PoolResult{Results: make(map[string]*Result), Errors: make(map[string]error)}
	byName := make(map[string]siteOutcome, len(outcomes))
	for _, o := range outcomes {
		byName[o.site] = o
	}
	for _, t := range p.targets {
		o := byName[t.Adapter.Site().Name]
		if o.err != nil {
			out.Errors[o.site] = o.err
			continue
		}
		out.Results[o.site] = o.result
		out.Records = append(out.Records, o.result.Records...)
	}

	p.log.Info("pool search complete", "query", q.String(), "sites", len(p.targets), "records", len(out.Records),
		"errors", len(out.Errors), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}
