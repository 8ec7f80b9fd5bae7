package patch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// marshalSorted renders v as indented JSON with object keys sorted,
// matching Python's json.dumps(data, indent=2, sort_keys=True).
// encoding/json already sorts map[string]any keys during Marshal.
func marshalSorted(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func packageJSONUpsertDependency(content, depName, depSpec string) (string, error) {
	data, err := decodeJSONObject(content)
	if err != nil {
		return "", fmt.Errorf("package.json must contain a JSON object: %w", err)
	}

	deps, ok := data["dependencies"].(map[string]interface{})
	if !ok {
		deps = map[string]interface{}{}
		data["dependencies"] = deps
	}
	deps[depName] = depSpec

	return marshalSorted(data)
}

// packageLockUpdate applies two optional, narrowly-scoped edits
// (lockfile_version, ensure_root_dependencies) to a package-lock.json,
// leaving everything else untouched. Operation.Details is a flat
// map[string]string, so ensure_root_dependencies travels as a
// JSON-encoded object string (e.g. `{"lodash":"^4.17.21"}`).
func packageLockUpdate(content string, details map[string]string) (string, error) {
	data, err := decodeJSONObject(content)
	if err != nil {
		return "", fmt.Errorf("package-lock.json must contain a JSON object: %w", err)
	}

	if v, ok := details["lockfile_version"]; ok {
		if n, ok := toInt(v); ok {
			data["lockfileVersion"] = n
		}
	}

	var ensure map[string]interface{}
	if raw, ok := details["ensure_root_dependencies"]; ok {
		if err := json.Unmarshal([]byte(raw), &ensure); err != nil {
			return "", fmt.Errorf("ensure_root_dependencies must be a JSON object: %w", err)
		}
	}
	if ensure != nil {
		packages, ok := data["packages"].(map[string]interface{})
		if !ok {
			packages = map[string]interface{}{}
			data["packages"] = packages
		}
		root, ok := packages[""].(map[string]interface{})
		if !ok {
			root = map[string]interface{}{}
			packages[""] = root
		}
		rootDeps, ok := root["dependencies"].(map[string]interface{})
		if !ok {
			rootDeps = map[string]interface{}{}
			root["dependencies"] = rootDeps
		}
		for k, v := range ensure {
			if s, ok := v.(string); ok {
				rootDeps[k] = s
			}
		}

		deps, ok := data["dependencies"].(map[string]interface{})
		if !ok {
			deps = map[string]interface{}{}
			data["dependencies"] = deps
		}
		for k, v := range ensure {
			s, ok := v.(string)
			if !ok {
				continue
			}
			node, ok := deps[k].(map[string]interface{})
			if !ok {
				node = map[string]interface{}{}
				deps[k] = node
			}
			node["version"] = s
		}
	}

	return marshalSorted(data)
}

func decodeJSONObject(content string) (map[string]interface{}, error) {
	if content == "" {
		return map[string]interface{}{}, nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, nil
}

func toInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
