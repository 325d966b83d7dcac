// Package metricsource implements the Metric Source Adapter: range queries
// against a Prometheus-compatible API, metric-name/query-template
// enumeration, and the Grafana dashboard/instance glue that rides on top of
// the Cache Store's registry tables.
package metricsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"text/template"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	promm "github.com/prometheus/common/model"

	"github.com/corridorcache/baseline-engine/internal/repository"
	"github.com/corridorcache/baseline-engine/pkg/log"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// Adapter is the Metric Source Adapter (component F). It satisfies
// internal/statscache.MetricSource via QueryRange.
type Adapter struct {
	client      promapi.Client
	queryClient promv1.API
	templates   map[string]*template.Template
	timeout     int64
	repo        *repository.Repository
	dashboards  *dashboardClient
}

// queryArgs is the template data available to a configured PromQL template.
type queryArgs struct {
	Metric string
}

// NewAdapter builds a Metric Source Adapter against cfg.URL, compiling one
// text/template per configured metric the way the teacher's
// PrometheusDataRepository.Init does, and wires repo for the Grafana
// registry lookups createDangerDashboard makes against
// grafana_instances/grafana_individual_metrics.
func NewAdapter(cfg schema.MetricSourceConfig, repo *repository.Repository) (*Adapter, error) {
	httpClient := newHTTPClient(cfg.InsecureSkipVerify)

	client, err := promapi.NewClient(promapi.Config{
		Address:      cfg.URL,
		RoundTripper: httpClient.Transport,
	})
	if err != nil {
		return nil, schema.NewError("NewAdapter", schema.KindUpstreamUnavailable, err)
	}

	templates := make(map[string]*template.Template, len(cfg.QueryTemplates))
	for metric, tpl := range cfg.QueryTemplates {
		parsed, err := template.New(metric).Parse(tpl)
		if err != nil {
			log.Warnf("failed to parse PromQL template %q for metric %s: %v", tpl, metric, err)
			continue
		}
		templates[metric] = parsed
		log.Debugf("added PromQL template for %s: %s", metric, tpl)
	}

	return &Adapter{
		client:      client,
		queryClient: promv1.NewAPI(client),
		templates:   templates,
		timeout:     cfg.RequestTimeout,
		repo:        repo,
		dashboards:  newDashboardClient(repo, httpClient),
	}, nil
}

// GetQueryForMetric implements §4.F's getQueryForMetric: the rendered PromQL
// for a configured metric, or false if none is configured.
func (a *Adapter) GetQueryForMetric(metric string) (string, bool) {
	tpl, ok := a.templates[metric]
	if !ok {
		return "", false
	}
	buf := &bytes.Buffer{}
	if err := tpl.Execute(buf, queryArgs{Metric: metric}); err != nil {
		log.Warnf("error rendering PromQL template for %s: %v", metric, err)
		return "", false
	}
	return buf.String(), true
}

// GetMetricNames implements §4.F's getMetricNames: the set of metrics this
// adapter has a configured query template for.
func (a *Adapter) GetMetricNames() []string {
	names := make([]string, 0, len(a.templates))
	for name := range a.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLastDataSourceType implements §4.F's getLastDataSourceType. This
// adapter only ever talks to one kind of upstream.
func (a *Adapter) GetLastDataSourceType() string {
	return "prometheus"
}

// CreateDangerDashboard implements §4.F's createDangerDashboard against the
// given registered Grafana instance URL.
func (a *Adapter) CreateDangerDashboard(instanceURL, metric, folderUID string) (string, bool) {
	return a.dashboards.createDangerDashboard(instanceURL, metric, folderUID)
}

// QueryRange implements §4.F's queryRange and internal/statscache.MetricSource:
// one schema.Series per distinct label set the range query returns, samples
// NaN-filled on a regular grid so the Data Processor can detect gaps.
func (a *Adapter) QueryRange(metric string, start, end, step int64) ([]schema.Series, error) {
	query, ok := a.GetQueryForMetric(metric)
	if !ok {
		query = metric
	}

	ctx, cancel := withTimeout(context.Background(), a.timeout)
	defer cancel()

	r := promv1.Range{
		Start: time.Unix(start, 0),
		End:   time.Unix(end, 0),
		Step:  time.Duration(step) * time.Second,
	}

	result, warnings, err := a.queryClient.QueryRange(ctx, query, r)
	if err != nil {
		kind := schema.KindUpstreamUnavailable
		var apiErr *promv1.Error
		if errors.As(err, &apiErr) && (apiErr.Type == promv1.ErrClient || apiErr.Type == promv1.ErrBadData) {
			// 4xx from upstream: the request itself was rejected.
			kind = schema.KindUpstreamBadResponse
		}
		return nil, schema.NewError("QueryRange", kind, err)
	}
	for _, w := range warnings {
		log.Warnf("prometheus query warning: %s", w)
	}

	matrix, ok := result.(promm.Matrix)
	if !ok {
		return nil, schema.NewError("QueryRange", schema.KindUpstreamBadResponse,
			fmt.Errorf("unexpected result type %T", result))
	}

	series := make([]schema.Series, 0, len(matrix))
	for _, row := range matrix {
		series = append(series, rowToSeries(row, start, end, step))
	}
	return series, nil
}

// rowToSeries converts one Prometheus sample stream onto the caller's
// regular grid, filling missing positions with schema.NaN, and serializes
// the remaining (non-reserved) labels as the fingerprint's labels JSON.
func rowToSeries(row *promm.SampleStream, start, end, step int64) schema.Series {
	n := int((end-start)/step) + 1
	values := make([]schema.Float, n)
	for i := range values {
		values[i] = schema.NaN
	}
	for _, v := range row.Values {
		idx := (v.Timestamp.Unix() - start) / step
		if idx < 0 || int(idx) >= n {
			continue
		}
		values[idx] = schema.Float(v.Value)
	}

	samples := make([]schema.Sample, n)
	for i := range values {
		samples[i] = schema.Sample{Timestamp: start + int64(i)*step, Value: values[i]}
	}

	return schema.Series{Labels: labelsJSON(row.Metric), Samples: samples}
}

func labelsJSON(metric promm.Metric) string {
	if len(metric) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(metric))
	for name := range metric {
		if name == "__name__" {
			continue
		}
		names = append(names, string(name))
	}
	sort.Strings(names)

	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, "%q:%q", name, string(metric[promm.LabelName(name)]))
	}
	buf.WriteByte('}')
	return buf.String()
}
