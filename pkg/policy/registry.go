package policy

import (
	"slices"
	"strings"

	errs "github.com/matzehuels/autofuse/pkg/errors"
	"github.com/matzehuels/autofuse/pkg/fusion"
)

// DefaultName is the backend used when none is configured.
const DefaultName = "generic"

// Backend describes a registered policy.
type Backend struct {
	Name        string
	Description string
	Aliases     []string
	New         func() fusion.Policy
}

var backends = []*Backend{
	{
		Name:        "generic",
		Description: "class-based rules for pointwise, reduce, split and concat operators",
		Aliases:     []string{"default"},
		New:         func() fusion.Policy { return Generic{} },
	},
	{
		Name:        "permissive",
		Description: "every pair legal; cycle and resource checks only",
		Aliases:     []string{"all"},
		New:         func() fusion.Policy { return Permissive{} },
	},
}

// Backends returns the registered backends in registration order.
func Backends() []*Backend { return slices.Clone(backends) }

// Names returns the canonical backend names.
func Names() []string {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name
	}
	return names
}

// Find looks a backend up by name or alias.
func Find(name string) (*Backend, bool) {
	for _, b := range backends {
		if b.Name == name || slices.Contains(b.Aliases, name) {
			return b, true
		}
	}
	return nil, false
}

// New returns a fresh policy for the named backend. An empty name selects
// DefaultName.
func New(name string) (fusion.Policy, error) {
	if name == "" {
		name = DefaultName
	}
	if err := errs.ValidatePolicyName(name); err != nil {
		return nil, err
	}
	b, ok := Find(name)
	if !ok {
		return nil, errs.New(errs.ErrCodePolicyNotFound,
			"unknown policy %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return b.New(), nil
}
