package patch

import "testing"

const samplePomXML = `<project>
  <dependencies>
    <dependency>
      <groupId>org.apache.commons</groupId>
      <artifactId>commons-lang3</artifactId>
    </dependency>
    <dependency>
      <groupId>com.fasterxml.jackson.core</groupId>
      <artifactId>jackson-databind</artifactId>
      <version>2.13.0</version>
    </dependency>
  </dependencies>
</project>
`

func TestPomXMLPinDependencyVersion_InsertsMissingVersion(t *testing.T) {
	got, err := pomXMLPinDependencyVersion(samplePomXML, "org.apache.commons", "commons-lang3", "3.14.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, "<version>3.14.0</version>") {
		t.Fatalf("version not inserted:\n%s", got)
	}
}

func TestPomXMLPinDependencyVersion_ReplacesExistingVersion(t *testing.T) {
	got, err := pomXMLPinDependencyVersion(samplePomXML, "com.fasterxml.jackson.core", "jackson-databind", "2.15.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, "<version>2.15.2</version>") {
		t.Fatalf("version not replaced:\n%s", got)
	}
	if contains(got, "2.13.0") {
		t.Fatalf("old version still present:\n%s", got)
	}
}

func TestPomXMLPinDependencyVersion_NoMatchErrors(t *testing.T) {
	_, err := pomXMLPinDependencyVersion(samplePomXML, "does.not", "exist", "1.0.0")
	if err == nil {
		t.Fatal("expected an error when no dependency matches")
	}
}

func TestPomXMLPinPluginVersion_InsertsMissingVersion(t *testing.T) {
	src := `<build><plugins><plugin><groupId>org.apache.maven.plugins</groupId><artifactId>maven-compiler-plugin</artifactId></plugin></plugins></build>`
	got, err := pomXMLPinPluginVersion(src, "org.apache.maven.plugins", "maven-compiler-plugin", "3.11.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains(got, "<version>3.11.0</version>") {
		t.Fatalf("plugin version not inserted:\n%s", got)
	}
}
