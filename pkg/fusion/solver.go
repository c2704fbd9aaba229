package fusion

import (
	"context"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/autofuse/pkg/dag"
	errs "github.com/matzehuels/autofuse/pkg/errors"
	"github.com/matzehuels/autofuse/pkg/observability"
)

// Rejection reasons reported in [Result.Rejections].
const (
	RejectPolicy      = "policy"
	RejectCycle       = "cycle"
	RejectVertical    = "vertical"
	RejectHorizontal  = "horizontal"
	RejectSize        = "fusion-size"
	RejectInputs      = "input-count"
	RejectProximity   = "proximity"
	RejectPeakMemory  = "peak-memory"
	RejectWriteMemory = "write-memory"
	RejectDeclined    = "declined"
)

// Result summarizes one fusion pass.
type Result struct {
	PassID     string                    `json:"pass_id"`
	Rounds     int                       `json:"rounds"`
	Fusions    int                       `json:"fusions"`
	NodeCounts []int                     `json:"node_counts"` // before the first round, then after each
	Rejections map[string]int            `json:"rejections,omitempty"`
	Stats      Statistics                `json:"statistics"`
	Provenance map[dag.NodeID]Provenance `json:"provenance,omitempty"`
	Duration   time.Duration             `json:"duration"`
}

// Solver runs fusion passes with one policy and configuration.
type Solver struct {
	policy  Policy
	oracle  CycleOracle
	counter Counter
	cfg     Config
	logger  *log.Logger
}

// Option configures a Solver.
type Option func(*Solver)

// WithConfig sets the pass limits.
func WithConfig(c Config) Option { return func(s *Solver) { s.cfg = c } }

// WithCycleOracle replaces the default [ReachabilityOracle].
func WithCycleOracle(o CycleOracle) Option { return func(s *Solver) { s.oracle = o } }

// WithCounter sets the handle allocator for fused nodes. Without it each
// pass counts up from the graph's next free handle.
func WithCounter(c Counter) Option { return func(s *Solver) { s.counter = c } }

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option { return func(s *Solver) { s.logger = l } }

// NewSolver returns a solver for policy p.
func NewSolver(p Policy, opts ...Option) (*Solver, error) {
	if p == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "fusion policy is nil")
	}
	s := &Solver{policy: p, oracle: ReachabilityOracle{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.oracle == nil {
		s.oracle = ReachabilityOracle{}
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	s.cfg = s.cfg.normalized(p)
	return s, nil
}

// Config returns the effective configuration.
func (s *Solver) Config() Config { return s.cfg }

// Fuse runs a pass over g with the configured round budget, mutating g in
// place. On error, rounds committed before the failure remain in g.
func (s *Solver) Fuse(ctx context.Context, g *dag.DAG) (*Result, error) {
	return s.FuseGraph(ctx, g, s.cfg.MaxFuseRounds)
}

// FuseGraph runs at most maxRounds rounds over g. It stops early when a
// round commits nothing or ctx is done.
func (s *Solver) FuseGraph(ctx context.Context, g *dag.DAG, maxRounds uint) (res *Result, err error) {
	if g == nil {
		return nil, errs.New(errs.ErrCodeInvalidGraph, "graph is nil")
	}
	if err := g.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "invalid input graph")
	}

	p := s.newPass(ctx, g)
	hooks := observability.Fusion()
	start := time.Now()
	logger := p.logger
	hooks.OnPassStart(ctx, p.res.PassID, g.NodeCount())
	defer func() {
		p.res.Duration = time.Since(start)
		hooks.OnPassComplete(ctx, p.res.PassID, p.res.Rounds, p.res.Fusions, p.res.Duration, err)
	}()

	p.res.NodeCounts = append(p.res.NodeCounts, g.NodeCount())
	for round := 1; uint(round) <= maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return p.res, errs.Wrap(errs.ErrCodeTimeout, err, "fusion pass interrupted after %d rounds", p.res.Rounds)
		}
		roundStart := time.Now()
		fused, err := p.fuseNodesOnce(round)
		if err != nil {
			return p.res, err
		}
		p.res.Rounds = round
		p.res.Fusions += fused
		p.res.NodeCounts = append(p.res.NodeCounts, g.NodeCount())
		hooks.OnRoundComplete(ctx, p.res.PassID, round, fused, g.NodeCount(), time.Since(roundStart))
		logger.Debug("round complete", "round", round, "fused", fused, "nodes", g.NodeCount())
		if fused == 0 {
			break
		}
	}

	for _, reason := range slices.Sorted(maps.Keys(p.res.Rejections)) {
		logger.Debug("rejected pairs", "reason", reason, "count", p.res.Rejections[reason])
	}
	if err := p.setOriginInputAndOutput(logger); err != nil {
		return p.res, err
	}
	p.res.Stats = computeStatistics(p.arena.live())
	logger.Info("fusion pass complete",
		"rounds", p.res.Rounds, "fusions", p.res.Fusions,
		"nodes", g.NodeCount(), "duration", time.Since(start).Round(time.Microsecond))
	return p.res, nil
}

// pass is the state of a single Fuse invocation.
type pass struct {
	*Solver
	ctx      context.Context
	logger   *log.Logger
	g        *dag.DAG
	arena    *arena
	ids      Counter
	rejected map[pairKey]string
	// farApart holds pairs that failed the proximity cap. Positions move
	// every round, so these pairs are evaluated again each time.
	farApart map[pairKey]bool
	res      *Result
}

func (s *Solver) newPass(ctx context.Context, g *dag.DAG) *pass {
	ids := s.counter
	if ids == nil {
		ids = NewCounter(g.NextID())
	}
	passID := uuid.NewString()
	return &pass{
		Solver:   s,
		ctx:      ctx,
		logger:   s.logger.With("pass", passID[:8]),
		g:        g,
		arena:    newArena(g),
		ids:      ids,
		rejected: make(map[pairKey]string),
		farApart: make(map[pairKey]bool),
		res: &Result{
			PassID:     passID,
			Rejections: make(map[string]int),
		},
	}
}

// fuseNodesOnce runs one collect, generate, rank and commit cycle and
// returns the number of merges committed.
func (p *pass) fuseNodesOnce(round int) (int, error) {
	nodes, err := p.getNodes()
	if err != nil {
		return 0, err
	}
	p.computeAncestors(nodes)
	if err := p.updateNodesAndTopoID(); err != nil {
		return 0, err
	}

	candidates := p.getPossibleFusions(nodes)
	bucket := p.withPrioritySort(candidates)
	if len(bucket) == 0 {
		return 0, nil
	}
	p.logger.Debug("candidates", "round", round, "total", len(candidates),
		"bucket", bucket[0].Priority, "size", len(bucket))

	fused := 0
	for _, pair := range bucket {
		a, b := p.arena.current(pair.A), p.arena.current(pair.B)
		if a == b {
			continue
		}
		switch {
		case a != pair.A || b != pair.B || a.version != pair.versionA || b.version != pair.versionB:
			k := keyOf(a, b)
			if _, ok := p.rejected[k]; ok {
				continue
			}
			var reason string
			pair, reason = p.evaluate(a, b)
			if reason != "" {
				p.reject(k, reason)
				continue
			}
			if pair.Priority != bucket[0].Priority {
				// Grown into another bucket; it competes there next round.
				continue
			}
		case fused > 0 && p.willFusionCreateCycle(a, b):
			// An earlier merge this round joined a path between the two.
			p.reject(pair.key(), RejectCycle)
			continue
		}
		ok, err := p.fuseNode(pair)
		if err != nil {
			return fused, err
		}
		if ok {
			fused++
		}
	}
	if err := p.updateNodesAndTopoID(); err != nil {
		return fused, err
	}
	return fused, nil
}

// getNodes returns the aggregates of the current graph in topological order,
// wrapping pass-start nodes the first time they are seen.
func (p *pass) getNodes() ([]*FusingNode, error) {
	order, err := p.g.TopoSort()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidGraph, err, "collect nodes")
	}
	nodes := make([]*FusingNode, 0, len(order))
	for _, id := range order {
		fn, err := p.arena.wrap(id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, fn)
	}
	return nodes, nil
}

// computeAncestors rebuilds every ancestor set from the current graph.
// nodes must be in topological order, so producers are complete before
// their consumers are visited.
func (p *pass) computeAncestors(nodes []*FusingNode) {
	for _, fn := range nodes {
		anc := fn.leafSet()
		for _, prod := range p.g.Producers(fn.node) {
			maps.Copy(anc, p.arena.byGraph[prod].anc)
		}
		fn.anc = anc
	}
}

// propagateAncestors pushes the ancestors of fn to everything downstream of
// it in the current graph.
func (p *pass) propagateAncestors(fn *FusingNode) {
	for _, id := range p.g.Descendants(fn.node) {
		if d, ok := p.arena.byGraph[id]; ok {
			maps.Copy(d.anc, fn.anc)
		}
	}
}

// getPossibleFusions enumerates producer/consumer and sibling pairs and
// returns those that pass every check. Failing pairs are remembered for the
// rest of the pass, except those over the proximity cap.
func (p *pass) getPossibleFusions(nodes []*FusingNode) []NodePair {
	seen := make(map[pairKey]bool)
	var pairs []NodePair
	consider := func(a, b *FusingNode) {
		if a == b {
			return
		}
		k := keyOf(a, b)
		if seen[k] {
			return
		}
		seen[k] = true
		if _, ok := p.rejected[k]; ok {
			return
		}
		pair, reason := p.evaluate(a, b)
		if reason != "" {
			p.reject(k, reason)
			return
		}
		pairs = append(pairs, pair)
	}

	for _, a := range nodes {
		for _, c := range p.g.Consumers(a.node) {
			consider(a, p.arena.byGraph[c])
		}
		for _, prod := range p.g.Producers(a.node) {
			for _, sib := range p.g.Consumers(prod) {
				consider(a, p.arena.byGraph[sib])
			}
		}
	}
	return pairs
}

// withPrioritySort returns the most urgent non-empty bucket, best pair first.
func (p *pass) withPrioritySort(pairs []NodePair) []NodePair {
	if len(pairs) == 0 {
		return nil
	}
	top := pairs[0].Priority
	for _, pair := range pairs[1:] {
		top = min(top, pair.Priority)
	}
	var bucket []NodePair
	for _, pair := range pairs {
		if pair.Priority == top {
			bucket = append(bucket, pair)
		}
	}
	slices.SortFunc(bucket, comparePairs)
	return bucket
}

// evaluate runs every check on a and b and, if all pass, returns the scored
// pair. Otherwise it returns the rejection reason.
func (p *pass) evaluate(a, b *FusingNode) (NodePair, string) {
	vertical := p.g.HasEdge(a.node, b.node) || p.g.HasEdge(b.node, a.node)
	switch {
	case vertical && p.g.HasEdge(b.node, a.node):
		a, b = b, a
	case !vertical && (b.minPos < a.minPos || (b.minPos == a.minPos && b.id < a.id)):
		a, b = b, a
	}

	if !p.policy.CanFuse(a, b) {
		return NodePair{}, RejectPolicy
	}
	if p.willFusionCreateCycle(a, b) {
		return NodePair{}, RejectCycle
	}
	if vertical && !p.policy.CanFuseVertical(a, b) {
		return NodePair{}, RejectVertical
	}
	if !vertical && !p.policy.CanFuseHorizontal(a, b) {
		return NodePair{}, RejectHorizontal
	}
	if lim := p.cfg.MaxFusionSize; lim > 0 && a.FusionNodesSize()+b.FusionNodesSize() > lim {
		return NodePair{}, RejectSize
	}
	if lim := p.cfg.MaxInputNumsAfterFuse; lim > 0 && p.inputsAfterFuse(a, b) > lim {
		return NodePair{}, RejectInputs
	}
	prox := proximity(a, b)
	if lim := p.cfg.MaxProximity; lim > 0 && prox > lim {
		return NodePair{}, RejectProximity
	}
	if p.canFusionIncreasePeakMemory(a, b) {
		return NodePair{}, RejectPeakMemory
	}
	if !p.checkWriteMemoryAfterFusion(a, b) {
		return NodePair{}, RejectWriteMemory
	}

	score := scoreFusionMemory(a, b)
	return NodePair{
		A:              a,
		B:              b,
		Vertical:       vertical,
		Priority:       p.policy.Priority(a, b),
		MemoryScore:    score,
		ProximityScore: prox,
		hint:           score.Eval(p.cfg.Hints),
		versionA:       a.version,
		versionB:       b.version,
	}, ""
}

func (p *pass) reject(k pairKey, reason string) {
	if reason == RejectProximity {
		if p.farApart[k] {
			return
		}
		p.farApart[k] = true
	} else {
		p.rejected[k] = reason
	}
	p.res.Rejections[reason]++
	observability.Fusion().OnPairRejected(p.ctx, p.res.PassID, reason)
}

func (p *pass) willFusionCreateCycle(a, b *FusingNode) bool {
	return p.oracle.WillCreateCycle(p.g, a, b)
}

// fuseNode asks the policy to merge the pair and folds B into A. It
// reports false when the policy declined.
func (p *pass) fuseNode(pair NodePair) (bool, error) {
	a, b := pair.A, pair.B
	old := []dag.NodeID{a.node, b.node}
	merged, err := p.policy.Fuse(p.g, a, b, p.ids)
	if err != nil {
		return false, errs.Wrap(errs.ErrCodePolicy, err, "fuse %d with %d", a.node, b.node)
	}
	if merged == nil {
		p.reject(pair.key(), RejectDeclined)
		return false, nil
	}
	for _, id := range old {
		if _, ok := p.g.Node(id); ok {
			return false, errs.New(errs.ErrCodeInternal, "policy left node %d in the graph after fusing it", id)
		}
	}
	if _, ok := p.g.Node(merged.ID); !ok {
		return false, errs.New(errs.ErrCodeInternal, "policy returned node %d that is not in the graph", merged.ID)
	}

	a.fuse(b, p.arena)
	p.arena.rebind(a, old, merged.ID)
	a.updateReadsAndWrites(p.arena.snap)
	p.propagateAncestors(a)
	p.logger.Debug("fused", "a", old[0], "b", old[1], "into", merged.ID,
		"size", a.FusionNodesSize(), "score", pair.MemoryScore)
	return true, nil
}

// updateNodesAndTopoID re-sorts the graph and refreshes the topological
// bounds of every live aggregate.
func (p *pass) updateNodesAndTopoID() error {
	order, err := p.g.TopoSort()
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidGraph, err, "fusion produced an invalid graph")
	}
	pos := make(map[dag.NodeID]int, len(p.arena.snap.nodes))
	next := 0
	for _, id := range order {
		fn, ok := p.arena.byGraph[id]
		if !ok {
			continue
		}
		for _, l := range fn.leaves {
			pos[l.ID] = next
			next += len(l.Leaves())
		}
	}
	for _, fn := range p.arena.live() {
		fn.updateOrder(pos)
	}
	return nil
}

// inputsAfterFuse counts the distinct external buffers the merged pair
// would read.
func (p *pass) inputsAfterFuse(a, b *FusingNode) int {
	n := 0
	for anchor := range union(a.reads, b.reads) {
		if owner := p.arena.owner[anchor.Node]; owner != a && owner != b {
			n++
		}
	}
	return n
}

// canFusionIncreasePeakMemory reports whether the merged pair would exceed
// the peak-memory limit while needing more live memory than either side.
func (p *pass) canFusionIncreasePeakMemory(a, b *FusingNode) bool {
	lim := p.cfg.MaxPeakMemory
	if lim <= 0 {
		return false
	}
	live := union(a.reads, a.writes, a.internal(p.arena.snap), b.reads, b.writes, b.internal(p.arena.snap))
	peak := live.Total().Add(a.priorInternal()).Add(b.priorInternal())
	if !p.cfg.exceeds(peak, lim) {
		return false
	}
	pa, pb := a.peak(p.arena.snap).Eval(p.cfg.Hints), b.peak(p.arena.snap).Eval(p.cfg.Hints)
	return peak.Eval(p.cfg.Hints) > max(pa, pb)
}

// checkWriteMemoryAfterFusion reports whether the bytes the merged pair
// writes for outside consumers stay within the write-memory limit.
func (p *pass) checkWriteMemoryAfterFusion(a, b *FusingNode) bool {
	lim := p.cfg.MaxWriteMemory
	if lim <= 0 {
		return true
	}
	own := a.leafSet()
	maps.Copy(own, b.leafSet())
	external := BufferSet{}
	for anchor, buf := range union(a.writes, b.writes) {
		if p.arena.snap.escapes(anchor, own) {
			external.add(buf)
		}
	}
	return !p.cfg.exceeds(external.Total(), lim)
}
