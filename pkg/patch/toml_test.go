package patch

import "testing"

const samplePyproject = `[tool.poetry]
name = "demo"

[tool.poetry.dependencies]
python = "^3.11"
flask = "^2.0.0"
requests = "^2.28.0"

[tool.poetry.dev-dependencies]
pytest = "^7.0.0"
`

func TestTomlUpsertDependency_ReplacesExisting(t *testing.T) {
	got, err := tomlUpsertDependency(samplePyproject, "requests", "2.31.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, `requests = "2.31.0"`) {
		t.Errorf("expected updated requests version, got:\n%s", got)
	}
	if contains(got, `requests = "^2.28.0"`) {
		t.Errorf("old version still present:\n%s", got)
	}
}

func TestTomlUpsertDependency_InsertsLexically(t *testing.T) {
	got, err := tomlUpsertDependency(samplePyproject, "django", "4.2.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, `django = "4.2.0"`) {
		t.Errorf("missing new dependency:\n%s", got)
	}
	djangoIdx := indexOf(got, "django")
	flaskIdx := indexOf(got, "flask")
	if djangoIdx > flaskIdx {
		t.Errorf("django should sort before flask lexically:\n%s", got)
	}
}

func TestTomlUpsertDependency_MissingSectionErrors(t *testing.T) {
	_, err := tomlUpsertDependency("[tool.poetry]\nname = \"demo\"\n", "requests", "2.31.0")
	if err == nil {
		t.Fatal("expected an error when [tool.poetry.dependencies] is absent")
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
