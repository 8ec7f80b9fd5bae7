package logparser

import "testing"

func TestParse_PythonTraceback(t *testing.T) {
	log := `Traceback (most recent call last):
  File "app.py", line 10, in <module>
    import requests
ModuleNotFoundError: No module named 'requests'
`
	parsed := Parse(log)
	if len(parsed.StackTraces) != 1 {
		t.Fatalf("len(StackTraces) = %d, want 1", len(parsed.StackTraces))
	}
	trace := parsed.StackTraces[0]
	if trace.Language != "python" {
		t.Errorf("Language = %s, want python", trace.Language)
	}
	if !trace.RootCause {
		t.Error("the only trace in its language should be marked root cause")
	}
	if trace.Message != "ModuleNotFoundError: No module named 'requests'" {
		t.Errorf("Message = %q", trace.Message)
	}
}

func TestParse_JavaCausedByChain_LastIsRootCause(t *testing.T) {
	log := `Exception in thread "main" java.lang.RuntimeException: outer failure
	at com.acme.App.main(App.java:10)
Caused by: java.lang.NullPointerException: inner failure
	at com.acme.Helper.doWork(Helper.java:42)
`
	parsed := Parse(log)
	if len(parsed.StackTraces) != 2 {
		t.Fatalf("len(StackTraces) = %d, want 2", len(parsed.StackTraces))
	}
	if parsed.StackTraces[0].RootCause {
		t.Error("outer exception should not be marked root cause")
	}
	if !parsed.StackTraces[1].RootCause {
		t.Error("innermost Caused by should be marked root cause")
	}
}

func TestParse_GoPanic(t *testing.T) {
	log := `panic: runtime error: index out of range [3] with length 3

goroutine 1 [running]:
main.main()
	/src/main.go:12 +0x1b
`
	parsed := Parse(log)
	if len(parsed.StackTraces) != 1 {
		t.Fatalf("len(StackTraces) = %d, want 1", len(parsed.StackTraces))
	}
	if parsed.StackTraces[0].Language != "go" {
		t.Errorf("Language = %s, want go", parsed.StackTraces[0].Language)
	}
}

func TestParse_GoTestFailure(t *testing.T) {
	log := "--- FAIL: TestAdd (0.00s)\n    add_test.go:12: expected 4, got 5\n"
	parsed := Parse(log)
	if len(parsed.TestFailures) != 1 {
		t.Fatalf("len(TestFailures) = %d, want 1", len(parsed.TestFailures))
	}
	if parsed.TestFailures[0].Name != "TestAdd" {
		t.Errorf("Name = %s, want TestAdd", parsed.TestFailures[0].Name)
	}
}

func TestParse_PytestFailure(t *testing.T) {
	log := "FAILED tests/test_app.py::test_health - AssertionError: assert 500 == 200\n"
	parsed := Parse(log)
	if len(parsed.TestFailures) != 1 {
		t.Fatalf("len(TestFailures) = %d, want 1", len(parsed.TestFailures))
	}
	if parsed.TestFailures[0].Framework != "pytest" {
		t.Errorf("Framework = %s, want pytest", parsed.TestFailures[0].Framework)
	}
}

func TestParse_RustBuildError(t *testing.T) {
	log := "error[E0432]: unresolved import `foo::bar`\n"
	parsed := Parse(log)
	if len(parsed.BuildErrors) != 1 {
		t.Fatalf("len(BuildErrors) = %d, want 1", len(parsed.BuildErrors))
	}
	if parsed.BuildErrors[0].Code != "E0432" {
		t.Errorf("Code = %s, want E0432", parsed.BuildErrors[0].Code)
	}
}

func TestParse_CargoTestFailure(t *testing.T) {
	log := "test tests::it_adds_correctly ... FAILED\n"
	parsed := Parse(log)
	if len(parsed.TestFailures) != 1 {
		t.Fatalf("len(TestFailures) = %d, want 1", len(parsed.TestFailures))
	}
	if parsed.TestFailures[0].Framework != "cargo test" {
		t.Errorf("Framework = %s, want cargo test", parsed.TestFailures[0].Framework)
	}
}

func TestParse_IsPure(t *testing.T) {
	log := "Traceback (most recent call last):\n  File \"a.py\", line 1, in <module>\nValueError: bad\n"
	first := Parse(log)
	second := Parse(log)
	if len(first.StackTraces) != len(second.StackTraces) {
		t.Fatal("Parse should be pure: identical input produced different output")
	}
}

func TestParse_SummaryBounds(t *testing.T) {
	var log string
	for i := 0; i < 100; i++ {
		log += "line\n"
	}
	parsed := Parse(log)
	if len(parsed.Summary.HeadLines) != headLines {
		t.Errorf("len(HeadLines) = %d, want %d", len(parsed.Summary.HeadLines), headLines)
	}
	if len(parsed.Summary.TailLines) != tailLines {
		t.Errorf("len(TailLines) = %d, want %d", len(parsed.Summary.TailLines), tailLines)
	}
}
