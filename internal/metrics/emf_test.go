package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew_AutoDimension(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "video-processor")

	r := New(Namespace)
	if r.dimensions["FunctionName"] != "video-processor" {
		t.Errorf("expected FunctionName dimension, got %q", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	var buf bytes.Buffer
	rec := NewWithWriter(Namespace, &buf)
	rec.now = func() time.Time { return time.UnixMilli(1700000000000) }
	rec.Dimension("Operation", "analyze").
		Metric("TreesCut", 3, UnitCount).
		Metric("ProcessingMs", 1234.5, UnitMilliseconds).
		Property("jobId", "job123").
		Flush()

	out := buf.String()
	if !strings.HasSuffix(out, "\n") || strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one EMF line, got %q", out)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("failed to parse EMF output: %v", err)
	}
	if doc["Operation"] != "analyze" {
		t.Errorf("expected Operation dimension value, got %v", doc["Operation"])
	}
	if doc["TreesCut"] != float64(3) {
		t.Errorf("expected TreesCut=3, got %v", doc["TreesCut"])
	}
	if doc["jobId"] != "job123" {
		t.Errorf("expected jobId property, got %v", doc["jobId"])
	}

	awsDir := doc["_aws"].(map[string]interface{})
	if awsDir["Timestamp"] != float64(1700000000000) {
		t.Errorf("unexpected timestamp: %v", awsDir["Timestamp"])
	}
	cw := awsDir["CloudWatchMetrics"].([]interface{})[0].(map[string]interface{})
	if cw["Namespace"] != Namespace {
		t.Errorf("expected namespace %s, got %v", Namespace, cw["Namespace"])
	}
	defs := cw["Metrics"].([]interface{})
	if len(defs) != 2 {
		t.Fatalf("expected 2 metric definitions, got %d", len(defs))
	}
	if defs[0].(map[string]interface{})["Name"] != "ProcessingMs" {
		t.Errorf("expected metric definitions sorted by name, got %v", defs)
	}
}

func TestRecorder_FlushWithoutMetricsWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(Namespace, &buf).Dimension("Operation", "analyze").Property("k", "v").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
