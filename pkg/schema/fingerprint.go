package schema

// MetricFingerprint is the identity of a time series: its query string and
// canonicalized label set. Two fingerprints with semantically identical
// labels (same keys/values, different key order at any depth of nested maps)
// must canonicalize to byte-identical JSON and therefore hash identically.
type MetricFingerprint struct {
	Query               string
	LabelsCanonicalJSON string
}
