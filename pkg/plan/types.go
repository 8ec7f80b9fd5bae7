// Package plan implements C6, the fix plan generator: two interchangeable
// producers of a FixPlan from an RCA result and its context — an
// LLM-backed generator and a deterministic mock — behind one Generator
// interface.
package plan

import (
	"context"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

// Operation is one typed edit the patch generator (C7) will later apply.
// Invariant (spec §3): Operation.File must be a member of the owning
// FixPlan's Files.
type Operation struct {
	Type     fixtypes.OperationType
	File     string
	Details  map[string]string
	Rationale string
	Evidence []string
}

// FixPlan is C6's output: spec §3's FixPlan entity.
type FixPlan struct {
	RootCause  string
	Category   fixtypes.Category
	Confidence float64
	Files      []string
	Operations []Operation
}

// Generator produces a FixPlan from a failure context. Request carries
// everything a generator might need; concrete implementations use only
// the subset relevant to them.
type Generator interface {
	Generate(ctx context.Context, req Request) (FixPlan, error)
}

// Request bundles the plan generator's inputs.
type Request struct {
	LogText          string
	Category         fixtypes.Category
	RootCause        string
	Confidence       float64
	AllowedFixTypes  []fixtypes.OperationType
	AllowedCategories []fixtypes.Category
	AffectedFiles    []string
}
