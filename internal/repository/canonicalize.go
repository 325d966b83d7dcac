package repository

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// marshalNoEscape JSON-encodes v without HTML escaping, matching the
// canonicalization rule's "without slash escaping" requirement.
func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encode appends a trailing newline; trim it.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// CanonicalizeLabels parses labelsJSON, recursively sorts every mapping's
// keys, and re-serializes without HTML or unicode escaping. Non-mapping
// inputs (already an array, a scalar, or invalid JSON) pass through
// unchanged, matching §4.D's canonicalization rule.
func CanonicalizeLabels(labelsJSON string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(labelsJSON), &v); err != nil {
		return labelsJSON
	}
	if _, ok := v.(map[string]interface{}); !ok {
		return labelsJSON
	}

	out, err := marshalCanonical(canonicalizeValue(v))
	if err != nil {
		return labelsJSON
	}
	return out
}

func canonicalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, orderedField{key: k, value: canonicalizeValue(t[k])})
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return t
	}
}

// orderedMap preserves the sorted key order produced by canonicalizeValue;
// encoding/json would otherwise re-sort a map[string]interface{} itself
// (which happens to match here) but an explicit ordered type keeps the
// invariant from depending on that implementation detail.
type orderedField struct {
	key   string
	value interface{}
}
type orderedMap []orderedField

func marshalCanonical(v interface{}) (string, error) {
	var buf []byte
	var err error
	buf, err = appendCanonical(buf, v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func appendCanonical(buf []byte, v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case orderedMap:
		buf = append(buf, '{')
		for i, f := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyJSON, err := marshalNoEscape(f.key)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyJSON...)
			buf = append(buf, ':')
			buf, err = appendCanonical(buf, f.value)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, '}')
		return buf, nil
	case []interface{}:
		buf = append(buf, '[')
		for i, e := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendCanonical(buf, e)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		enc, err := marshalNoEscape(t)
		if err != nil {
			return nil, err
		}
		return append(buf, enc...), nil
	}
}

// MetricHash computes the content-addressed key for a fingerprint: the MD5
// of the query string concatenated with the canonicalized labels JSON.
// Identical metric_hash for semantically identical labels regardless of key
// order is the invariant laws 1 and 2 depend on.
func MetricHash(query string, labelsJSON string) string {
	canonical := CanonicalizeLabels(labelsJSON)
	sum := md5.Sum([]byte(query + canonical))
	return hex.EncodeToString(sum[:])
}

// Fingerprint builds a schema.MetricFingerprint from raw inputs.
func Fingerprint(query string, labelsJSON string) schema.MetricFingerprint {
	return schema.MetricFingerprint{
		Query:               query,
		LabelsCanonicalJSON: CanonicalizeLabels(labelsJSON),
	}
}

// CreateConfigHash computes the md5 over exactly the ConfigHash-relevant
// subset of configuration (§3, §6's configuration table).
func CreateConfigHash(cfg schema.CacheConfig) string {
	subset := struct {
		Percentiles     [2]float64 `json:"default_percentiles"`
		RollingWindow   int        `json:"rolling_window"`
		MinRunSteps     int        `json:"min_run_steps"`
		MaxCoefficients int        `json:"max_coefficients"`
		SpanSeconds     int64      `json:"span_seconds"`
		StepSeconds     int64      `json:"step_seconds"`
	}{
		Percentiles:     cfg.CorridorParams.DefaultPercentiles,
		RollingWindow:   cfg.CorridorParams.RollingWindow,
		MinRunSteps:     cfg.CorridorParams.MinRunSteps,
		MaxCoefficients: cfg.DFT.MaxCoefficients,
		SpanSeconds:     cfg.History.SpanSeconds,
		StepSeconds:     cfg.History.StepSeconds,
	}

	raw, _ := json.Marshal(subset)
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}
