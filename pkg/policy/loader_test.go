package policy

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LoadSafetyPolicy", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "fixpipeline-policy-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("loads a valid policy document", func() {
		path := filepath.Join(tmpDir, "policy.yaml")
		Expect(os.WriteFile(path, []byte(`
paths:
  forbidden:
    - "infra/**"
patch_limits:
  max_files: 5
  max_lines_added: 100
danger:
  safe_max: 5
`), 0o644)).To(Succeed())

		p, err := LoadSafetyPolicy(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Paths.Forbidden).To(ContainElement("infra/**"))
		Expect(p.PatchLimits.MaxFiles).To(Equal(5))
	})

	It("returns an error when the file does not exist", func() {
		_, err := LoadSafetyPolicy(filepath.Join(tmpDir, "missing.yaml"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("failed to read policy file"))
	})

	It("returns an error for malformed YAML", func() {
		path := filepath.Join(tmpDir, "bad.yaml")
		Expect(os.WriteFile(path, []byte("paths: [not: valid"), 0o644)).To(Succeed())

		_, err := LoadSafetyPolicy(path)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("failed to parse policy file"))
	})
})

var _ = Describe("Store", func() {
	var tmpDir, path string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "fixpipeline-policy-store-test")
		Expect(err).NotTo(HaveOccurred())
		path = filepath.Join(tmpDir, "policy.yaml")
		Expect(os.WriteFile(path, []byte(`
danger:
  safe_max: 5
`), 0o644)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("serves the loaded policy via Current", func() {
		store, err := NewStore(path, nil)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		Expect(store.Current("").Danger.SafeMax).To(Equal(5))
	})
})
