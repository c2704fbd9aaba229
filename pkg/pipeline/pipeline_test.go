package pipeline

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/autofuse/pkg/cache"
	"github.com/matzehuels/autofuse/pkg/dag"
	errs "github.com/matzehuels/autofuse/pkg/errors"
	"github.com/matzehuels/autofuse/pkg/fusion"
	graphio "github.com/matzehuels/autofuse/pkg/io"
	"github.com/matzehuels/autofuse/pkg/observability"
)

const testGraph = `{
  "nodes": [
    {"id": 0, "name": "x", "type": "Input", "outputs": [{"shape": ["s0", "128"], "elem_bytes": 4}]},
    {"id": 1, "name": "relu", "type": "Relu", "outputs": [{"shape": ["s0", "128"], "elem_bytes": 4}]},
    {"id": 2, "name": "exp", "type": "Exp", "outputs": [{"shape": ["s0", "128"], "elem_bytes": 4}]},
    {"id": 3, "name": "add", "type": "Add", "outputs": [{"shape": ["s0", "128"], "elem_bytes": 4}]}
  ],
  "edges": [
    {"from": 0, "out": 0, "to": 1, "in": 0},
    {"from": 1, "out": 0, "to": 2, "in": 0},
    {"from": 2, "out": 0, "to": 3, "in": 0},
    {"from": 0, "out": 0, "to": 3, "in": 1}
  ]
}`

func loadTestGraph(t *testing.T) *dag.DAG {
	t.Helper()
	g, err := graphio.ReadJSON(strings.NewReader(testGraph))
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return g
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func newFileRunner(t *testing.T) *Runner {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewRunner(c, nil, quietLogger())
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"dot", false},
		{"svg", false},
		{"png", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}

	if err := ValidateFormats(nil); err != nil {
		t.Errorf("Empty formats should pass: %v", err)
	}
	if err := ValidateFormats([]string{"json", "bmp"}); err == nil {
		t.Error("Invalid format should fail")
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(nil, nil, nil)
	if r.Cache == nil || r.Keyer == nil || r.Logger == nil {
		t.Fatalf("NewRunner left a nil field: %+v", r)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestExecute(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	res, err := r.Execute(context.Background(), loadTestGraph(t), Options{
		Formats: []string{FormatJSON, FormatDOT},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Report.Policy != "generic" {
		t.Errorf("policy = %q, want generic", res.Report.Policy)
	}
	if res.Report.NodesBefore != 4 || res.Report.NodesAfter != 2 {
		t.Errorf("nodes %d -> %d, want 4 -> 2", res.Report.NodesBefore, res.Report.NodesAfter)
	}
	if res.CacheHit {
		t.Error("NullCache should never hit")
	}
	if len(res.GraphHash) != 64 {
		t.Errorf("GraphHash = %q", res.GraphHash)
	}

	if _, err := graphio.UnmarshalGraph(res.Artifacts[FormatJSON]); err != nil {
		t.Errorf("json artifact does not decode: %v", err)
	}
	if !strings.Contains(string(res.Artifacts[FormatDOT]), "(3 ops)") {
		t.Errorf("dot artifact missing fused node:\n%s", res.Artifacts[FormatDOT])
	}
	if _, ok := res.Artifacts[FormatSVG]; ok {
		t.Error("svg was not requested")
	}
}

func TestExecuteShippedGraph(t *testing.T) {
	g, err := Load(filepath.Join("..", "..", "examples", "graphs", "mlp.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := NewRunner(nil, nil, quietLogger())
	res, err := r.Execute(context.Background(), g, Options{Formats: []string{FormatJSON}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Inputs, constants and the matmul never fuse.
	if res.Report.NodesBefore != 8 || res.Report.NodesAfter >= 8 || res.Report.NodesAfter < 5 {
		t.Errorf("nodes %d -> %d", res.Report.NodesBefore, res.Report.NodesAfter)
	}
}

func TestExecuteInvalidFormat(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	_, err := r.Execute(context.Background(), loadTestGraph(t), Options{Formats: []string{"png"}})
	if !errs.Is(err, errs.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestFuseUnknownPolicy(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	_, err := r.Fuse(context.Background(), loadTestGraph(t), Options{Policy: "nope"})
	if !errs.Is(err, errs.ErrCodePolicyNotFound) {
		t.Errorf("err = %v, want POLICY_NOT_FOUND", err)
	}
}

func TestFuseAlias(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	res, err := r.Fuse(context.Background(), loadTestGraph(t), Options{Policy: "all"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Policy != "permissive" {
		t.Errorf("alias should resolve to the canonical name, got %q", res.Report.Policy)
	}
}

func TestFuseCachesResult(t *testing.T) {
	ctx := context.Background()
	r := newFileRunner(t)

	first, err := r.Fuse(ctx, loadTestGraph(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Fatal("first run should miss")
	}

	input := loadTestGraph(t)
	second, err := r.Fuse(ctx, input, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || !second.Report.Cached {
		t.Fatal("second run should hit")
	}
	if input.NodeCount() != 4 {
		t.Error("a cache hit must not touch the input graph")
	}
	if second.GraphHash != first.GraphHash {
		t.Error("hash of identical input should match")
	}
	if second.Report.Policy != "generic" || second.Report.NodesBefore != 4 {
		t.Errorf("cached report = %+v", second.Report)
	}
	if second.Graph.NodeCount() != first.Graph.NodeCount() {
		t.Errorf("cached graph has %d nodes, want %d", second.Graph.NodeCount(), first.Graph.NodeCount())
	}
	if second.Report.Result.PassID != first.Report.Result.PassID {
		t.Error("cached result should carry the original pass id")
	}
}

func TestFuseCacheKeyCoversSettings(t *testing.T) {
	ctx := context.Background()
	r := newFileRunner(t)

	if _, err := r.Fuse(ctx, loadTestGraph(t), Options{}); err != nil {
		t.Fatal(err)
	}

	variants := map[string]Options{
		"policy": {Policy: "permissive"},
		"config": {Config: fusion.Config{MaxFusionSize: 2}},
	}
	for name, opts := range variants {
		res, err := r.Fuse(ctx, loadTestGraph(t), opts)
		if err != nil {
			t.Fatal(err)
		}
		if res.CacheHit {
			t.Errorf("changing %s should miss the cache", name)
		}
	}
}

func TestFuseRefresh(t *testing.T) {
	ctx := context.Background()
	r := newFileRunner(t)

	if _, err := r.Fuse(ctx, loadTestGraph(t), Options{}); err != nil {
		t.Fatal(err)
	}
	res, err := r.Fuse(ctx, loadTestGraph(t), Options{Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheHit {
		t.Error("Refresh should bypass the cache")
	}
}

// garbageCache returns unreadable bytes for every key.
type garbageCache struct{ cache.Cache }

func (garbageCache) Get(context.Context, string) ([]byte, bool, error) {
	return []byte("{broken"), true, nil
}

func TestFuseUnreadableEntryIsMiss(t *testing.T) {
	r := NewRunner(garbageCache{cache.NewNullCache()}, nil, quietLogger())
	res, err := r.Fuse(context.Background(), loadTestGraph(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheHit {
		t.Error("unreadable entry should count as a miss")
	}
	if res.Report.NodesAfter != 2 {
		t.Errorf("NodesAfter = %d, want 2", res.Report.NodesAfter)
	}
}

type recordingCacheHooks struct {
	mu                sync.Mutex
	hits, misses, set int
}

func (h *recordingCacheHooks) OnCacheHit(context.Context, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits++
}

func (h *recordingCacheHooks) OnCacheMiss(context.Context, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.misses++
}

func (h *recordingCacheHooks) OnCacheSet(context.Context, string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.set++
}

func TestFuseCacheHooks(t *testing.T) {
	hooks := &recordingCacheHooks{}
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	ctx := context.Background()
	r := newFileRunner(t)
	for range 2 {
		if _, err := r.Fuse(ctx, loadTestGraph(t), Options{TTL: time.Minute}); err != nil {
			t.Fatal(err)
		}
	}

	if hooks.misses != 1 || hooks.hits != 1 || hooks.set != 1 {
		t.Errorf("hooks: %d misses, %d hits, %d sets; want 1 each", hooks.misses, hooks.hits, hooks.set)
	}
}

func TestRenderSVG(t *testing.T) {
	out, err := Render(context.Background(), loadTestGraph(t), Options{Formats: []string{FormatSVG}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(out[FormatSVG]), "<svg") {
		t.Errorf("svg artifact: %.120s", out[FormatSVG])
	}
}
