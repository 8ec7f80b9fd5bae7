package plan

import (
	"context"
	"testing"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

func TestMockGenerator_PythonMissingDependency(t *testing.T) {
	req := Request{
		LogText:    "ModuleNotFoundError: No module named 'requests'",
		Category:   fixtypes.CategoryPythonMissingDependency,
		Confidence: 0.9,
	}
	got, err := NewMockGenerator().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got.Operations) != 1 {
		t.Fatalf("len(Operations) = %d, want 1", len(got.Operations))
	}
	op := got.Operations[0]
	if op.File != "requirements.txt" {
		t.Errorf("File = %s, want requirements.txt", op.File)
	}
	if op.Details["name"] != "requests" {
		t.Errorf("Details[name] = %s, want requests", op.Details["name"])
	}
	assertFileMembership(t, got)
}

func TestMockGenerator_PythonPrefersPyprojectWhenPresent(t *testing.T) {
	req := Request{
		LogText:       "ModuleNotFoundError: No module named 'requests'",
		Category:      fixtypes.CategoryPythonMissingDependency,
		AffectedFiles: []string{"pyproject.toml", "src/app.py"},
	}
	got, err := NewMockGenerator().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Operations[0].File != "pyproject.toml" {
		t.Errorf("File = %s, want pyproject.toml", got.Operations[0].File)
	}
}

func TestMockGenerator_NodeMissingDependency(t *testing.T) {
	req := Request{
		LogText:  "Error: Cannot find module 'lodash'",
		Category: fixtypes.CategoryNodeMissingDependency,
	}
	got, err := NewMockGenerator().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Operations[0].Details["name"] != "lodash" {
		t.Errorf("Details[name] = %s, want lodash", got.Operations[0].Details["name"])
	}
	if got.Operations[0].File != "package.json" {
		t.Errorf("File = %s, want package.json", got.Operations[0].File)
	}
}

func TestMockGenerator_GoMissingModule(t *testing.T) {
	req := Request{
		LogText:  "go: no required module provides package github.com/acme/foo; to add it:",
		Category: fixtypes.CategoryGoMissingModule,
	}
	got, err := NewMockGenerator().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Operations[0].Details["name"] != "github.com/acme/foo" {
		t.Errorf("Details[name] = %s, want github.com/acme/foo", got.Operations[0].Details["name"])
	}
	if got.Operations[0].File != "go.mod" {
		t.Errorf("File = %s, want go.mod", got.Operations[0].File)
	}
}

func TestMockGenerator_NoMatchReturnsError(t *testing.T) {
	req := Request{LogText: "nothing useful here", Category: fixtypes.CategoryPythonMissingDependency}
	_, err := NewMockGenerator().Generate(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error when no dependency name can be extracted")
	}
}

func TestMockGenerator_RemoveUnusedRequiresAffectedFile(t *testing.T) {
	req := Request{Category: fixtypes.CategoryRemoveUnusedImport}
	_, err := NewMockGenerator().Generate(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error with no affected files")
	}

	req.AffectedFiles = []string{"src/app.py"}
	got, err := NewMockGenerator().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Operations[0].Type != fixtypes.OpRemoveUnused {
		t.Errorf("Type = %s, want remove_unused", got.Operations[0].Type)
	}
}

func TestMockGenerator_UnknownCategory(t *testing.T) {
	_, err := NewMockGenerator().Generate(context.Background(), Request{Category: "made_up_category"})
	if err == nil {
		t.Fatal("expected an error for an unknown category")
	}
}

func assertFileMembership(t *testing.T, p FixPlan) {
	t.Helper()
	files := map[string]bool{}
	for _, f := range p.Files {
		files[f] = true
	}
	for _, op := range p.Operations {
		if !files[op.File] {
			t.Errorf("operation.file %q is not a member of plan.files %v", op.File, p.Files)
		}
	}
}
