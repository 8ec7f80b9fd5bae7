// Package logging provides a chainable structured-field builder used by
// the components that log through logrus (pkg/eventstore and pkg/runstore
// log through zap and do not use it). Centralizing field names
// keeps dashboards and log queries consistent across the pipeline.
package logging

import "time"

// Fields is a chainable builder over a map of structured log fields.
type Fields map[string]interface{}

// NewFields starts an empty field set.
func NewFields() Fields {
	return Fields{}
}

func (f Fields) Component(name string) Fields {
	f["component"] = name
	return f
}

func (f Fields) Operation(name string) Fields {
	f["operation"] = name
	return f
}

func (f Fields) Resource(resourceType, resourceName string) Fields {
	f["resource_type"] = resourceType
	if resourceName != "" {
		f["resource_name"] = resourceName
	}
	return f
}

func (f Fields) Duration(d time.Duration) Fields {
	f["duration_ms"] = d.Milliseconds()
	return f
}

func (f Fields) Error(err error) Fields {
	if err != nil {
		f["error"] = err.Error()
	}
	return f
}

func (f Fields) UserID(id string) Fields {
	if id != "" {
		f["user_id"] = id
	}
	return f
}

func (f Fields) RequestID(id string) Fields {
	f["request_id"] = id
	return f
}

func (f Fields) TraceID(id string) Fields {
	f["trace_id"] = id
	return f
}

func (f Fields) StatusCode(code int) Fields {
	f["status_code"] = code
	return f
}

func (f Fields) Method(method string) Fields {
	f["method"] = method
	return f
}

func (f Fields) URL(url string) Fields {
	f["url"] = url
	return f
}

func (f Fields) Count(n int) Fields {
	f["count"] = n
	return f
}

func (f Fields) Size(bytes int64) Fields {
	f["size_bytes"] = bytes
	return f
}

func (f Fields) Version(v string) Fields {
	f["version"] = v
	return f
}

func (f Fields) Custom(key string, value interface{}) Fields {
	f[key] = value
	return f
}

// ToLogrus converts Fields to logrus.Fields without importing logrus here,
// keeping this package dependency-free for callers that only want the map.
func (f Fields) ToLogrus() map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DatabaseFields is a shorthand for fields describing a database operation.
func DatabaseFields(operation, table string) Fields {
	return NewFields().Component("database").Operation(operation).Resource("table", table)
}

// HTTPFields is a shorthand for fields describing an HTTP exchange.
func HTTPFields(method, url string, statusCode int) Fields {
	return NewFields().Component("http").Method(method).URL(url).StatusCode(statusCode)
}

// PipelineFields describes a fix-pipeline stage transition.
func PipelineFields(stage, runID string) Fields {
	return NewFields().Component("pipeline").Operation(stage).Resource("run", runID)
}

// PolicyFields describes a policy engine decision.
func PolicyFields(operation string, danger int) Fields {
	return NewFields().Component("policy").Operation(operation).Custom("danger_score", danger)
}

// AdapterFields describes an adapter selection or invocation.
func AdapterFields(adapter, category string) Fields {
	return NewFields().Component("adapter").Operation(category).Resource("adapter", adapter)
}

// SandboxFields describes a sandbox validation step.
func SandboxFields(step, fixID string) Fields {
	return NewFields().Component("sandbox").Operation(step).Resource("fix", fixID)
}

// GovernorFields describes a concurrency-governor decision.
func GovernorFields(operation, repoKey string) Fields {
	return NewFields().Component("governor").Operation(operation).Resource("repo", repoKey)
}

// AIFields describes an LLM invocation.
func AIFields(operation, model string) Fields {
	return NewFields().Component("ai").Operation(operation).Custom("model", model)
}

// WorkflowFields describes a named workflow/run operation.
func WorkflowFields(operation, workflowID string) Fields {
	return NewFields().Component("workflow").Operation(operation).Resource("workflow", workflowID)
}

// SecurityFields describes a security-sensitive operation against a subject.
func SecurityFields(operation, subject string) Fields {
	return NewFields().Component("security").Operation(operation).Custom("subject", subject)
}

// PerformanceFields records the outcome and duration of a timed operation.
func PerformanceFields(operation string, d time.Duration, success bool) Fields {
	return NewFields().Component("performance").Operation(operation).Duration(d).Custom("success", success)
}

// MetricsFields describes a recorded metric sample.
func MetricsFields(operation, metricName string, value float64) Fields {
	return NewFields().Component("metrics").Operation(operation).Custom("metric_name", metricName).Custom("value", value)
}
