// Package adapter implements the fix pipeline's language/toolchain
// adapter registry (C3): an ordered set of per-ecosystem detectors, each
// restricting which fix operations and plan categories apply once it is
// selected.
package adapter

import "github.com/relayci/fixpipeline/pkg/fixtypes"

// DefaultMinConfidence is τ_min from §4.3: the minimum detection
// confidence an adapter must report to win selection.
const DefaultMinConfidence = 0.5

// Detection is what an adapter's Detect reports about a failure.
type Detection struct {
	RepoLanguage  string
	Category      fixtypes.Category
	Confidence    float64
	EvidenceLines []string
}

// Adapter is implemented once per language/toolchain (python, node, go,
// java, docker).
type Adapter interface {
	Name() string
	Detect(logText string, repoFiles []string) Detection
	AllowedFixTypes() []fixtypes.OperationType
	AllowedCategories() []fixtypes.Category
	BuildValidationSteps(repoPath string) []fixtypes.Step
}

// Selection is the result of a successful SelectAdapter call.
type Selection struct {
	Adapter   Adapter
	Detection Detection
}

// Registry holds adapters in declared priority order.
type Registry struct {
	adapters     []Adapter
	minConfidence float64
}

// NewRegistry builds a registry over adapters in priority order, using
// DefaultMinConfidence as the selection threshold.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters, minConfidence: DefaultMinConfidence}
}

// WithMinConfidence overrides τ_min.
func (r *Registry) WithMinConfidence(min float64) *Registry {
	r.minConfidence = min
	return r
}

// Adapters returns the registry's adapters in priority order.
func (r *Registry) Adapters() []Adapter {
	return r.adapters
}

// ByName finds a registered adapter by its Name(), for callers that
// already know which one a persisted run used.
func (r *Registry) ByName(name string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// SelectAdapter runs adapters in priority order and returns the first
// whose detection confidence meets the registry's threshold. Returns nil
// when no adapter meets it; there is no error result.
func (r *Registry) SelectAdapter(logText string, repoFiles []string) *Selection {
	for _, a := range r.adapters {
		d := a.Detect(logText, repoFiles)
		if d.Confidence >= r.minConfidence {
			return &Selection{Adapter: a, Detection: d}
		}
	}
	return nil
}

// DefaultRegistry builds the registry with the five built-in adapters in
// the priority order the spec's concrete scenarios exercise: python first
// (the happy-path scenario), then node, go, java, docker.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPythonAdapter(),
		NewNodeAdapter(),
		NewGoAdapter(),
		NewJavaAdapter(),
		NewDockerAdapter(),
	)
}
