package guardrail

import "testing"

const cleanDiff = `--- a/requirements.txt
+++ b/requirements.txt
@@ -1,1 +1,2 @@
 flask==2.0.0
+requests==2.31.0
`

func TestCheck_PassesOnCleanDiff(t *testing.T) {
	result := Check(cleanDiff, Config{})
	if !result.Passed {
		t.Fatalf("expected pass, got violations: %+v", result.Violations)
	}
}

func TestCheck_BlocksOnMalformedDiff(t *testing.T) {
	result := Check("not a diff at all", Config{})
	if result.Passed {
		t.Fatal("expected malformed diff to block")
	}
	if result.Violations[0].Rule != "diff_syntax" {
		t.Fatalf("expected diff_syntax violation, got %+v", result.Violations)
	}
}

func TestCheck_BlocksOnDestructiveCommand(t *testing.T) {
	diff := `--- a/deploy.sh
+++ b/deploy.sh
@@ -1,1 +1,2 @@
 set -e
+rm -rf /var/lib/app
`
	result := Check(diff, Config{})
	if result.Passed {
		t.Fatal("expected destructive command to block")
	}
	found := false
	for _, v := range result.Violations {
		if v.Rule == "destructive_command" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected destructive_command violation, got %+v", result.Violations)
	}
}

func TestCheck_BlocksOnFileDeletion(t *testing.T) {
	diff := `--- a/old.py
+++ /dev/null
@@ -1,1 +0,0 @@
-print("bye")
`
	result := Check(diff, Config{})
	if result.Passed {
		t.Fatal("expected file deletion to block")
	}
}

func TestCheck_BlocksOnTooManyFiles(t *testing.T) {
	diff := `--- a/one.txt
+++ b/one.txt
@@ -1,1 +1,1 @@
-a
+b
--- a/two.txt
+++ b/two.txt
@@ -1,1 +1,1 @@
-a
+b
`
	result := Check(diff, Config{MaxFiles: 1})
	if result.Passed {
		t.Fatal("expected file scope violation to block")
	}
}
