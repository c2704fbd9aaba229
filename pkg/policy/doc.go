// Package policy provides concrete fusion backends for [fusion.Solver].
//
// A [Backend] describes one policy by name. [New] looks a backend up and
// returns a ready policy:
//
//	p, err := policy.New("generic")
//	solver, err := fusion.NewSolver(p)
//
// The generic backend classifies operators by type (see [Classify]) and
// applies conservative vertical and horizontal rules. The permissive backend
// allows every pair and exists for tests and diagnostics.
package policy
