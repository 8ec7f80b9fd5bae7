package policy

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testPolicy() SafetyPolicy {
	return SafetyPolicy{
		Paths: PathRules{
			Forbidden: []string{".github/**", "infra/**"},
		},
		PatchLimits: PatchLimits{
			MaxFiles:        5,
			MaxLinesAdded:   50,
			MaxLinesRemoved: 50,
			MaxDiffBytes:    10000,
		},
		Secrets: SecretRules{
			ForbiddenPatterns: []string{`(?i)aws_secret_access_key\s*=\s*\S+`},
		},
		Danger: DangerConfig{
			SafeMax: 5,
			PathRiskWeights: map[string]int{
				"infra/**":   10,
				"Dockerfile": 4,
				".github/**": 8,
			},
			FileCountThreshold:    3,
			FileCountWeight:       2,
			LinesTouchedThreshold: 20,
			LinesTouchedWeight:    1,
			CategoryRiskWeights: map[string]int{
				"docker_pin_base_image": 6,
				"remove_unused":         1,
			},
			SecretRiskWeight: 50,
		},
	}
}

var _ = Describe("Engine", func() {
	var (
		engine *Engine
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		engine, err = NewEngine(ctx, testPolicy())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("EvaluatePlan", func() {
		It("allows a plan that touches no forbidden or oversized paths", func() {
			decision, err := engine.EvaluatePlan(ctx, PlanIntent{
				TargetFiles: []string{"pyproject.toml"},
				Category:    "python_missing_dependency",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.PRLabel).To(Equal(PRLabelSafe))
		})

		It("blocks a plan targeting a forbidden path", func() {
			decision, err := engine.EvaluatePlan(ctx, PlanIntent{
				TargetFiles: []string{".github/workflows/ci.yml"},
				Category:    "configuration",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Violations).To(ContainElement(HaveField("Code", "forbidden_path")))
		})
	})

	Describe("EvaluatePatch", func() {
		It("blocks a patch that exceeds max_lines_added", func() {
			var added string
			for i := 0; i < 60; i++ {
				added += "+line\n"
			}
			diff := "--- a/big.py\n+++ b/big.py\n@@ -1,1 +1,61 @@\n" + added

			decision, err := engine.EvaluatePatch(ctx, diff)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Violations).To(ContainElement(HaveField("Code", "max_lines_added")))
		})

		It("blocks a patch containing a forbidden secret pattern", func() {
			diff := "--- a/config.py\n+++ b/config.py\n@@ -1,1 +1,2 @@\n-old\n+AWS_SECRET_ACCESS_KEY=abc123\n"

			decision, err := engine.EvaluatePatch(ctx, diff)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Allowed).To(BeFalse())
			Expect(decision.Violations).To(ContainElement(HaveField("Code", "secret_pattern")))
		})

		It("labels a risky-but-allowed patch needs-review", func() {
			diff := "--- a/infra/main.tf\n+++ b/infra/main.tf\n@@ -1,1 +1,2 @@\n-old\n+new\n"

			decision, err := engine.EvaluatePatch(ctx, diff)
			Expect(err).NotTo(HaveOccurred())
			Expect(decision.Allowed).To(BeTrue())
			Expect(decision.DangerScore).To(BeNumerically(">=", 10))
			Expect(decision.PRLabel).To(Equal(PRLabelNeedsReview))
		})
	})
})

var _ = Describe("SafetyPolicy.ResolveProfile", func() {
	base := SafetyPolicy{
		Profile: "default",
		Danger:  DangerConfig{SafeMax: 5},
		Profiles: map[string]SafetyPolicy{
			"strict": {Danger: DangerConfig{SafeMax: 1}},
		},
	}

	It("returns the named profile when present", func() {
		Expect(base.ResolveProfile("strict").Danger.SafeMax).To(Equal(1))
	})

	It("falls back to the receiver for an unknown profile", func() {
		Expect(base.ResolveProfile("unknown").Danger.SafeMax).To(Equal(5))
	})

	It("returns the receiver when no profile is requested", func() {
		Expect(base.ResolveProfile("").Danger.SafeMax).To(Equal(5))
	})
})

var _ = Describe("globMatch", func() {
	DescribeTable("double-star glob patterns",
		func(pattern, path string, want bool) {
			Expect(globMatch(pattern, path)).To(Equal(want))
		},
		Entry("matches a direct child", "infra/**", "infra/main.tf", true),
		Entry("matches a nested descendant", "infra/**", "infra/modules/vpc/main.tf", true),
		Entry("matches workflow files", ".github/**", ".github/workflows/ci.yml", true),
		Entry("does not match an unrelated path", "infra/**", "src/main.go", false),
		Entry("matches an exact literal", "Dockerfile", "Dockerfile", true),
	)
})
