package provenance

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

const redactedPlaceholder = "***REDACTED***"

// Redactor masks every string field of a marshaled Artifact that matches
// one of a SafetyPolicy's secrets.forbidden_patterns.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the given regex patterns once. Patterns that fail
// to compile are skipped, matching the policy engine's own tolerance for
// malformed operator-supplied regexes (pkg/policy.matchesAnySecretPattern).
func NewRedactor(patterns []string) *Redactor {
	r := &Redactor{}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, re)
	}
	return r
}

// Redact marshals the artifact, walks every string leaf, and replaces any
// value matching a forbidden pattern with a fixed placeholder, then
// unmarshals the result back into an Artifact. Field order and non-string
// values are left untouched.
func (r *Redactor) Redact(a Artifact) (Artifact, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return Artifact{}, fmt.Errorf("provenance: marshaling artifact: %w", err)
	}

	redacted, err := r.redactJSON(raw)
	if err != nil {
		return Artifact{}, err
	}

	var out Artifact
	if err := json.Unmarshal(redacted, &out); err != nil {
		return Artifact{}, fmt.Errorf("provenance: unmarshaling redacted artifact: %w", err)
	}
	return out, nil
}

// RedactJSON applies the same masking to an arbitrary JSON document, used
// for freeform evidence blobs that don't fit the Artifact struct.
func (r *Redactor) RedactJSON(doc []byte) ([]byte, error) {
	return r.redactJSON(doc)
}

func (r *Redactor) redactJSON(doc []byte) ([]byte, error) {
	result := gjson.ParseBytes(doc)
	out := doc
	var walkErr error

	var walk func(path string, value gjson.Result)
	walk = func(path string, value gjson.Result) {
		if walkErr != nil {
			return
		}
		switch {
		case value.IsArray():
			value.ForEach(func(key, v gjson.Result) bool {
				walk(fmt.Sprintf("%s.%d", path, key.Int()), v)
				return true
			})
		case value.IsObject():
			value.ForEach(func(key, v gjson.Result) bool {
				childPath := key.String()
				if path != "" {
					childPath = path + "." + key.String()
				}
				walk(childPath, v)
				return true
			})
		case value.Type == gjson.String:
			if r.matches(value.String()) {
				updated, err := sjson.SetBytes(out, path, redactedPlaceholder)
				if err != nil {
					walkErr = fmt.Errorf("provenance: redacting %q: %w", path, err)
					return
				}
				out = updated
			}
		}
	}

	result.ForEach(func(key, v gjson.Result) bool {
		walk(key.String(), v)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func (r *Redactor) matches(s string) bool {
	for _, re := range r.patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// PrettyJSON renders an artifact as indented JSON for CLI inspection
// (cmd/fixpipeline-cli query pipes this through gojq).
func PrettyJSON(a Artifact) ([]byte, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("provenance: marshaling artifact: %w", err)
	}
	return pretty.Pretty(raw), nil
}
