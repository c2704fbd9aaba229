package fusion

import "github.com/matzehuels/autofuse/pkg/sym"

// DefaultMaxFuseRounds is the round budget when neither the configuration
// nor the policy sets one.
const DefaultMaxFuseRounds uint = 10

// Config bounds a fusion pass. A zero or negative limit disables the
// corresponding guard.
type Config struct {
	// MaxFuseRounds is the round budget. Zero selects the policy default.
	MaxFuseRounds uint `toml:"max_fuse_rounds" yaml:"max_fuse_rounds" json:"max_fuse_rounds"`
	// MaxProximity rejects pairs farther apart in topological order.
	MaxProximity int `toml:"max_proximity" yaml:"max_proximity" json:"max_proximity"`
	// MaxFusionSize caps the number of original operators per aggregate.
	MaxFusionSize int `toml:"max_fusion_size" yaml:"max_fusion_size" json:"max_fusion_size"`
	// MaxInputNumsAfterFuse caps the external inputs of a fused aggregate.
	MaxInputNumsAfterFuse int `toml:"max_input_nums_after_fuse" yaml:"max_input_nums_after_fuse" json:"max_input_nums_after_fuse"`
	// MaxPeakMemory caps the live-buffer estimate of a fused aggregate, in bytes.
	MaxPeakMemory int64 `toml:"max_peak_memory" yaml:"max_peak_memory" json:"max_peak_memory"`
	// MaxWriteMemory caps the bytes a fused aggregate writes out.
	MaxWriteMemory int64 `toml:"max_write_memory" yaml:"max_write_memory" json:"max_write_memory"`
	// Hints evaluates symbolic sizes where a total order or a numeric
	// limit check is needed.
	Hints sym.Hints `toml:"hints" yaml:"hints" json:"hints"`
}

// normalized clamps negative limits to "unlimited" and resolves the round
// budget against the policy.
func (c Config) normalized(p Policy) Config {
	c.MaxProximity = max(c.MaxProximity, 0)
	c.MaxFusionSize = max(c.MaxFusionSize, 0)
	c.MaxInputNumsAfterFuse = max(c.MaxInputNumsAfterFuse, 0)
	c.MaxPeakMemory = max(c.MaxPeakMemory, 0)
	c.MaxWriteMemory = max(c.MaxWriteMemory, 0)
	if c.MaxFuseRounds == 0 {
		c.MaxFuseRounds = DefaultMaxFuseRounds
		if rl, ok := p.(RoundLimiter); ok && rl.MaxFuseRounds() > 0 {
			c.MaxFuseRounds = rl.MaxFuseRounds()
		}
	}
	if c.Hints.Default <= 0 {
		c.Hints.Default = sym.DefaultHint
	}
	return c
}

// exceeds reports whether size is larger than limit, deciding symbolically
// where possible and by hint evaluation otherwise.
func (c Config) exceeds(size sym.Expr, limit int64) bool {
	if s, ok := sym.Cmp(size, sym.Const(limit)); ok {
		return s > 0
	}
	return size.Eval(c.Hints) > limit
}
