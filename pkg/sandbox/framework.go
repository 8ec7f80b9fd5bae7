package sandbox

import "strings"

// detectFramework inspects the cloned repo's top-level file list and
// picks the test framework BuildValidationSteps' "test" step targets,
// per §4.9 step 3's named set.
func detectFramework(repoFiles []string) string {
	has := func(name string) bool {
		for _, f := range repoFiles {
			if f == name {
				return true
			}
		}
		return false
	}

	switch {
	case has("pyproject.toml") || has("requirements.txt") || has("setup.py"):
		return "pytest"
	case has("package.json"):
		return detectNodeFramework(repoFiles)
	case has("go.mod"):
		return "go test"
	case has("pom.xml"):
		return "maven"
	case has("build.gradle") || has("build.gradle.kts"):
		return "gradle"
	case has("Cargo.toml"):
		return "cargo"
	case has("Gemfile"):
		return "rspec"
	default:
		return "unknown"
	}
}

// detectNodeFramework narrows a package.json repo to jest vs mocha by
// scanning for each framework's conventional config/marker file, falling
// back to jest as the more common default in the corpus this mirrors.
func detectNodeFramework(repoFiles []string) string {
	for _, f := range repoFiles {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "jest.config") {
			return "jest"
		}
		if strings.Contains(lower, ".mocharc") {
			return "mocha"
		}
	}
	return "jest"
}
