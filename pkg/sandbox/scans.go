package sandbox

import (
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

const scanTimeout = 2 * time.Minute

type gitleaksFinding struct {
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	Description string `json:"Description"`
}

// runGitleaks shells out to the gitleaks binary against the working
// tree. A missing binary degrades to an empty pass report rather than
// failing the whole validation — scanning is best-effort infrastructure,
// not a required toolchain dependency on every sandbox image.
func runGitleaks(ctx context.Context, repoDir string, log *logrus.Logger) *GitleaksReport {
	if _, err := exec.LookPath("gitleaks"); err != nil {
		log.Debug("sandbox: gitleaks not installed, skipping secret scan")
		return &GitleaksReport{Verdict: ScanPass}
	}

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	out, _ := exec.CommandContext(ctx, "gitleaks", "detect",
		"--source", repoDir, "--no-git", "--report-format", "json", "--exit-code", "0").Output()

	var raw []gitleaksFinding
	_ = json.Unmarshal(out, &raw)

	report := &GitleaksReport{Verdict: ScanPass}
	for _, f := range raw {
		report.Findings = append(report.Findings, GitleaksFinding{
			File: f.File, Line: f.StartLine, Description: f.Description,
		})
	}
	if len(report.Findings) > 0 {
		report.Verdict = ScanBlock
	}
	return report
}

type trivyVuln struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	Severity         string `json:"Severity"`
}

type trivyResult struct {
	Vulnerabilities []trivyVuln `json:"Vulnerabilities"`
}

type trivyReportJSON struct {
	Results []trivyResult `json:"Results"`
}

// runTrivy shells out to the trivy binary against the repo's dependency
// manifests, same best-effort-degrade policy as gitleaks.
func runTrivy(ctx context.Context, repoDir string, log *logrus.Logger) *TrivyReport {
	if _, err := exec.LookPath("trivy"); err != nil {
		log.Debug("sandbox: trivy not installed, skipping dependency scan")
		return &TrivyReport{Verdict: ScanPass}
	}

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	out, _ := exec.CommandContext(ctx, "trivy", "fs", "--scanners", "vuln",
		"--format", "json", "--severity", "CRITICAL,HIGH", repoDir).Output()

	var parsed trivyReportJSON
	_ = json.Unmarshal(out, &parsed)

	report := &TrivyReport{Verdict: ScanPass}
	for _, res := range parsed.Results {
		for _, v := range res.Vulnerabilities {
			report.Vulnerabilities = append(report.Vulnerabilities, TrivyVulnerability{
				PackageName: v.PkgName, Severity: v.Severity, CVE: v.VulnerabilityID,
			})
			if v.Severity == "CRITICAL" {
				report.Verdict = ScanBlock
			}
		}
	}
	return report
}

// buildSBOM wraps the given components in a minimal CycloneDX-shaped SBOM,
// without a CycloneDX SDK in the pack (documented in DESIGN.md as a
// stdlib-only exception). It reads no dependency manifest itself, and
// Validate passes no components, so the SBOM it records lists none.
func buildSBOM(components []SBOMComponent) *SBOM {
	return &SBOM{
		BOMFormat:   "CycloneDX",
		SpecVersion: "1.5",
		Components:  components,
	}
}
