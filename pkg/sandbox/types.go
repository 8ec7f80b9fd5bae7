// Package sandbox implements C8, the sandbox validator: it clones a repo
// at a commit, applies a candidate diff, runs the target adapter's
// install/test steps inside an isolated container, and collects security
// scan results — all without ever touching the caller's own working tree.
package sandbox

// Status is ValidationResult.Status, spec §3's enum.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCloning    Status = "cloning"
	StatusPatching   Status = "patching"
	StatusInstalling Status = "installing"
	StatusRunning    Status = "running"
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
	StatusTimeout    Status = "timeout"
	StatusError      Status = "error"
)

// Request is spec §3's ValidationRequest entity.
type Request struct {
	FixID            string
	EventID          string
	RepoURL          string
	Branch           string
	CommitSHA        string
	Diff             string
	AdapterName      string
	ValidationSteps  []StepOverride
}

// StepOverride lets a caller replace an adapter's default install/test
// command for one named step, per ValidationRequest.validation_steps?.
type StepOverride struct {
	Name    string
	Command []string
}

// TestCounts is ValidationResult.tests_{passed,failed,skipped,total}.
type TestCounts struct {
	Passed  int
	Failed  int
	Skipped int
	Total   int
}

// ScanVerdict is one security scanner's outcome.
type ScanVerdict string

const (
	ScanPass  ScanVerdict = "pass"
	ScanWarn  ScanVerdict = "warn"
	ScanBlock ScanVerdict = "block"
)

// GitleaksReport is the gitleaks-on-working-tree scan outcome.
type GitleaksReport struct {
	Verdict ScanVerdict
	Findings []GitleaksFinding
}

// GitleaksFinding is one detected secret.
type GitleaksFinding struct {
	File        string
	Line        int
	Description string
}

// TrivyReport is the trivy-on-dependencies scan outcome.
type TrivyReport struct {
	Verdict         ScanVerdict
	Vulnerabilities []TrivyVulnerability
}

// TrivyVulnerability is one reported CVE.
type TrivyVulnerability struct {
	PackageName string
	Severity    string
	CVE         string
}

// SBOM is a hand-built CycloneDX-shaped software bill of materials. No
// CycloneDX SDK is available in the example pack, so this struct encodes
// just enough of the 1.5 JSON schema (bomFormat/specVersion/components)
// for the provenance artifact to carry a meaningful SBOM without pulling
// in an unvetted third-party serializer.
type SBOM struct {
	BOMFormat   string         `json:"bomFormat"`
	SpecVersion string         `json:"specVersion"`
	Components  []SBOMComponent `json:"components"`
}

// SBOMComponent is one CycloneDX "library" component entry.
type SBOMComponent struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Scans bundles spec §3's scans.{gitleaks?, trivy?, sbom?}.
type Scans struct {
	Gitleaks *GitleaksReport
	Trivy    *TrivyReport
	SBOM     *SBOM
}

// Result is spec §3's ValidationResult entity. Status is passed only when
// the test step ran and exited 0, Tests.Failed == 0, and no scan returned
// ScanBlock; a run that completes otherwise is failed.
type Result struct {
	Status              Status
	Tests               TestCounts
	FrameworkDetected   string
	Logs                string
	Scans               Scans
	ExecutionTimeSeconds float64
	ErrorMessage        string
}
