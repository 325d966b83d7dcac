package schema

// GrafanaInstance is a registered Grafana-compatible data source. Url must
// be unique across the registry.
type GrafanaInstance struct {
	ID    int64  `db:"id" json:"id"`
	URL   string `db:"url" json:"url"`
	Token string `db:"token" json:"token"`
}

// IndividualMetric is one cached metric belonging to a Grafana instance.
// (InstanceID, MetricKey) is unique.
type IndividualMetric struct {
	InstanceID      int64  `db:"instance_id" json:"instance_id"`
	MetricKey       string `db:"metric_key" json:"metric_key"`
	MetricDataJSON  string `db:"data" json:"metric_data_json"`
}
