package patch

import "testing"

func TestDockerfileUpdate_PinsBaseImage(t *testing.T) {
	src := "FROM python:3.9\n\nRUN pip install -r requirements.txt\n"
	got, err := dockerfileUpdate(src, map[string]string{"pin_base_image": "python:3.11-slim"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, "FROM python:3.11-slim") {
		t.Fatalf("base image not pinned:\n%s", got)
	}
}

func TestDockerfileUpdate_PreservesMultiStageAlias(t *testing.T) {
	src := "FROM golang:1.21 AS builder\n\nRUN go build ./...\n"
	got, err := dockerfileUpdate(src, map[string]string{"pin_base_image": "golang:1.22"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, "FROM golang:1.22 AS builder") {
		t.Fatalf("multi-stage alias not preserved:\n%s", got)
	}
}

func TestDockerfileUpdate_AppendsAptCleanup(t *testing.T) {
	src := "FROM debian:12\n\nRUN apt-get update && apt-get install -y curl\n"
	got, err := dockerfileUpdate(src, map[string]string{"apt_get_cleanup": "true"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, "rm -rf /var/lib/apt/lists/*") {
		t.Fatalf("cleanup not appended:\n%s", got)
	}
}

func TestDockerfileUpdate_SkipsCleanupIfAlreadyPresent(t *testing.T) {
	src := "FROM debian:12\n\nRUN apt-get update && apt-get install -y curl \\\n    && rm -rf /var/lib/apt/lists/*\n"
	_, err := dockerfileUpdate(src, map[string]string{"apt_get_cleanup": "true"})
	if err == nil {
		t.Fatal("expected an error when the cleanup is already present and nothing else changed")
	}
}

func TestDockerfileUpdate_NoDetailsErrors(t *testing.T) {
	_, err := dockerfileUpdate("FROM debian:12\n", map[string]string{})
	if err == nil {
		t.Fatal("expected an error when no recognized detail is set")
	}
}
