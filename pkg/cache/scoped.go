package cache

// ScopedKeyer wraps a Keyer with a prefix. The driver scopes keys by build
// version so results from an older release are never reused.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// FusionKey generates a prefixed key for fusion results.
func (k *ScopedKeyer) FusionKey(graphHash string, opts FusionKeyOpts) string {
	return k.prefix + k.inner.FusionKey(graphHash, opts)
}
