package metricsource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/corridorcache/baseline-engine/internal/repository"
	"github.com/corridorcache/baseline-engine/pkg/log"
)

// dashboardClient is the Grafana-facing half of the Metric Source Adapter:
// createDangerDashboard provisions a dashboard flagging an anomalous metric,
// and the instance/individual-metric bookkeeping rides on the Cache Store's
// registry tables. The teacher has no Grafana dashboard API client to
// adapt from, so this is kept to the minimal shape §4.F names.
type dashboardClient struct {
	repo *repository.Repository
	http *http.Client
}

func newDashboardClient(repo *repository.Repository, client *http.Client) *dashboardClient {
	return &dashboardClient{repo: repo, http: client}
}

type dashboardModel struct {
	Title string                   `json:"title"`
	Tags  []string                 `json:"tags"`
	Panels []map[string]interface{} `json:"panels"`
}

type createDashboardRequest struct {
	Dashboard dashboardModel `json:"dashboard"`
	FolderUID string         `json:"folderUid"`
	Overwrite bool           `json:"overwrite"`
}

type createDashboardResponse struct {
	UID string `json:"uid"`
}

// createDangerDashboard implements §4.F's createDangerDashboard: POSTs a
// single-panel dashboard marking metric as anomalous to instanceURL, which
// must be a registered instance, and returns its UID. The request carries no
// Authorization header; the instance's token is not sent.
// Returns ok=false on any failure (registry miss, transport error, non-2xx),
// matching the `dashboard_uid | false` contract.
func (d *dashboardClient) createDangerDashboard(instanceURL, metric, folderUID string) (string, bool) {
	id, err := d.repo.GetGrafanaInstanceIDByURL(instanceURL)
	if err != nil {
		log.Warnf("createDangerDashboard: instance %s not registered: %v", instanceURL, err)
		return "", false
	}

	instances, err := d.repo.LoadGrafanaIndividualMetrics(id)
	if err != nil {
		log.Warnf("createDangerDashboard: loading existing metrics for instance %d: %v", id, err)
	}
	for _, m := range instances {
		if m.MetricKey == metric {
			log.Debugf("createDangerDashboard: dashboard already provisioned for %s", metric)
		}
	}

	body := createDashboardRequest{
		Dashboard: dashboardModel{
			Title: fmt.Sprintf("anomaly: %s", metric),
			Tags:  []string{"corridor-baseline", "anomaly"},
			Panels: []map[string]interface{}{
				{"title": metric, "type": "timeseries"},
			},
		},
		FolderUID: folderUID,
		Overwrite: true,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		log.Warnf("createDangerDashboard: marshal request: %v", err)
		return "", false
	}

	req, err := http.NewRequest(http.MethodPost, instanceURL+"/api/dashboards/db", bytes.NewReader(raw))
	if err != nil {
		log.Warnf("createDangerDashboard: building request: %v", err)
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		log.Warnf("createDangerDashboard: request failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warnf("createDangerDashboard: grafana returned status %d", resp.StatusCode)
		return "", false
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warnf("createDangerDashboard: reading response: %v", err)
		return "", false
	}

	var parsed createDashboardResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.UID == "" {
		log.Warnf("createDangerDashboard: unexpected response body: %v", err)
		return "", false
	}

	if err := d.repo.SaveGrafanaIndividualMetric(id, metric, []byte(parsed.UID)); err != nil {
		log.Warnf("createDangerDashboard: persisting metric registry entry: %v", err)
	}

	return parsed.UID, true
}
