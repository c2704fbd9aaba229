package pipeline

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/autofuse/pkg/cache"
	"github.com/matzehuels/autofuse/pkg/dag"
	errs "github.com/matzehuels/autofuse/pkg/errors"
	"github.com/matzehuels/autofuse/pkg/fusion"
	"github.com/matzehuels/autofuse/pkg/io"
	"github.com/matzehuels/autofuse/pkg/observability"
	"github.com/matzehuels/autofuse/pkg/policy"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger, so multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// cachedFusion is the cache entry of one fusion result.
type cachedFusion struct {
	Policy      string         `json:"policy"`
	Graph       []byte         `json:"graph"`
	NodesBefore int            `json:"nodes_before"`
	Result      *fusion.Result `json:"result"`
}

// Execute fuses g and renders the requested formats.
func (r *Runner) Execute(ctx context.Context, g *dag.DAG, opts Options) (*Result, error) {
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "invalid options")
	}

	res, err := r.Fuse(ctx, g, opts)
	if err != nil {
		return nil, err
	}

	artifacts, err := Render(ctx, res.Graph, opts)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "render")
	}
	res.Artifacts = artifacts

	r.logger(opts).Info("fused graph",
		"policy", res.Report.Policy,
		"nodes", res.Report.NodesBefore,
		"fused_nodes", res.Report.NodesAfter,
		"cached", res.CacheHit)
	return res, nil
}

// Fuse runs a fusion pass over g, consulting the cache first.
//
// On a miss g itself is fused and returned as Result.Graph. On a hit g is
// left untouched and Result.Graph is decoded from the cache.
func (r *Runner) Fuse(ctx context.Context, g *dag.DAG, opts Options) (*Result, error) {
	logger := r.logger(opts)

	name, p, err := resolvePolicy(opts.Policy)
	if err != nil {
		return nil, err
	}

	data, err := io.MarshalGraph(g)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "hash input graph")
	}
	hash := cache.Hash(data)
	key := r.Keyer.FusionKey(hash, cache.FusionKeyOpts{Policy: name, Config: opts.Config})

	if !opts.Refresh {
		if res, ok := r.lookup(ctx, key, logger); ok {
			res.GraphHash = hash
			return res, nil
		}
	}

	solver, err := fusion.NewSolver(p, fusion.WithConfig(opts.Config), fusion.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	before := g.NodeCount()
	fr, err := solver.Fuse(ctx, g)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Graph:     g,
		GraphHash: hash,
		Report: io.Report{
			Policy:      name,
			NodesBefore: before,
			NodesAfter:  g.NodeCount(),
			Result:      fr,
		},
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r.store(ctx, key, res, ttl, logger)
	return res, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// lookup returns a cached result. Unreadable entries count as misses.
func (r *Runner) lookup(ctx context.Context, key string, logger *log.Logger) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, key)
		return nil, false
	}

	var entry cachedFusion
	if err := sonic.Unmarshal(data, &entry); err != nil || entry.Result == nil {
		logger.Debug("discarding unreadable cache entry", "key", key, "err", err)
		observability.Cache().OnCacheMiss(ctx, key)
		return nil, false
	}
	g, err := io.UnmarshalGraph(entry.Graph)
	if err != nil {
		logger.Debug("discarding unreadable cache entry", "key", key, "err", err)
		observability.Cache().OnCacheMiss(ctx, key)
		return nil, false
	}

	observability.Cache().OnCacheHit(ctx, key)
	logger.Debug("cache hit", "key", key)
	return &Result{
		Graph: g,
		Report: io.Report{
			Policy:      entry.Policy,
			NodesBefore: entry.NodesBefore,
			NodesAfter:  g.NodeCount(),
			Cached:      true,
			Result:      entry.Result,
		},
		CacheHit: true,
	}, true
}

func (r *Runner) store(ctx context.Context, key string, res *Result, ttl time.Duration, logger *log.Logger) {
	graph, err := io.MarshalGraph(res.Graph)
	if err != nil {
		logger.Warn("cache encode failed", "err", err)
		return
	}
	data, err := sonic.Marshal(cachedFusion{
		Policy:      res.Report.Policy,
		Graph:       graph,
		NodesBefore: res.Report.NodesBefore,
		Result:      res.Report.Result,
	})
	if err != nil {
		logger.Warn("cache encode failed", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("cache write failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, key, len(data))
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.Logger
}

// resolvePolicy returns the canonical backend name and a fresh policy.
func resolvePolicy(name string) (string, fusion.Policy, error) {
	if name == "" {
		name = policy.DefaultName
	}
	p, err := policy.New(name)
	if err != nil {
		return "", nil, err
	}
	b, _ := policy.Find(name)
	return b.Name, p, nil
}
