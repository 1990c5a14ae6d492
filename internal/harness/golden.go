package harness

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
)

// TraceSnapshot captures one scenario run for golden-file comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Documents    []docmodel.Document
}

// marshalCanonical renders v as JSON with object keys sorted, an
// RFC-8785-flavored approach scaled down to the handful of concrete
// types a harness Result produces (map[string]any, []TraceEvent,
// string, int, int64, bool).
func marshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		buf.WriteString(fmt.Sprintf("%q", docmodel.NormalizePath(val)))
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case int:
		fmt.Fprintf(buf, "%d", val)
	case int64:
		fmt.Fprintf(buf, "%d", val)
	case []TraceEvent:
		buf.WriteByte('[')
		for i, ev := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, traceEventToMap(ev)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(buf, "%q:", k)
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("harness: unsupported type for canonical JSON: %T", v)
	}
	return nil
}

func traceEventToMap(ev TraceEvent) map[string]any {
	m := map[string]any{
		"seq": ev.Seq, "step": ev.Step, "result": ev.Result,
		"path": ev.Path, "author": ev.Author,
		"is_local": ev.IsLocal, "is_latest": ev.IsLatest,
	}
	if ev.Content != "" {
		m["content"] = ev.Content
	}
	if ev.Err != "" {
		m["error"] = ev.Err
	}
	return m
}

// AssertGolden compares a scenario's trace against a golden file under
// testdata/golden/{scenarioName}.golden. Run with -update to regenerate.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	snapshotMap := map[string]any{
		"scenario_name": scenarioName,
		"trace":         result.Trace,
	}
	traceJSON, err := marshalCanonical(snapshotMap)
	if err != nil {
		t.Fatalf("harness: marshal golden snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
}
