package patch

import "testing"

func TestNormalizeWhitespace_TrimsTrailingSpace(t *testing.T) {
	got := normalizeWhitespace("a \nb\t\nc")
	want := "a\nb\nc\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNormalizeWhitespace_Idempotent(t *testing.T) {
	once := normalizeWhitespace("x\ny\n")
	twice := normalizeWhitespace(once)
	if once != twice {
		t.Fatalf("not idempotent: %q vs %q", once, twice)
	}
}

func TestUnifiedDiff_NoChangesReturnsEmpty(t *testing.T) {
	content := "a\nb\nc\n"
	if d := unifiedDiff("f.txt", content, content); d != "" {
		t.Fatalf("expected empty diff, got %q", d)
	}
}

func TestUnifiedDiff_SingleLineInsertion(t *testing.T) {
	before := "a\nb\nc\n"
	after := "a\nb\nnew\nc\n"
	diffText := unifiedDiff("f.txt", before, after)

	if diffText == "" {
		t.Fatal("expected a non-empty diff")
	}
	wantLines := []string{"--- a/f.txt", "+++ b/f.txt"}
	for _, w := range wantLines {
		if !contains(diffText, w) {
			t.Errorf("diff missing header %q:\n%s", w, diffText)
		}
	}
	if !contains(diffText, "+new") {
		t.Errorf("diff missing added line:\n%s", diffText)
	}
	added, removed := countDiffChanges(diffText)
	if added != 1 || removed != 0 {
		t.Errorf("countDiffChanges() = (%d,%d), want (1,0)", added, removed)
	}
}

func TestUnifiedDiff_HeadersExcludedFromCounts(t *testing.T) {
	before := "a\n"
	after := "b\n"
	diffText := unifiedDiff("f.txt", before, after)
	added, removed := countDiffChanges(diffText)
	if added != 1 || removed != 1 {
		t.Fatalf("countDiffChanges() = (%d,%d), want (1,1)", added, removed)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
