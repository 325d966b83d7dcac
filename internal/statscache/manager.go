// Package statscache implements the Stats Cache Manager: the orchestrator
// that ties the Cache Store, Metric Source Adapter, Data Processor, Signal
// kernel and Anomaly Detector together behind a single-flight rebuild per
// fingerprint.
package statscache

import (
	"fmt"
	"sync"
	"time"

	"github.com/corridorcache/baseline-engine/internal/anomaly"
	"github.com/corridorcache/baseline-engine/internal/dataprocessor"
	"github.com/corridorcache/baseline-engine/internal/repository"
	"github.com/corridorcache/baseline-engine/pkg/dft"
	"github.com/corridorcache/baseline-engine/pkg/log"
	"github.com/corridorcache/baseline-engine/pkg/lrucache"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// reconstructionCacheTTL bounds how long a reconstructed window is reused
// across repeated range queries against the same fingerprint before being
// recomputed from the (possibly since-rebuilt) cached model.
const reconstructionCacheTTL = 30 * time.Second

// reconstructionCacheBytes is the size budget pkg/lrucache evicts against;
// a rough per-entry byte estimate, not an exact accounting.
const reconstructionCacheBytes = 64 << 20

// CorridorReconstruction is the read-path result: reconstructed upper/lower
// bound samples for the caller's requested window, alongside the anomaly
// statistics computed the last time this fingerprint was rebuilt.
type CorridorReconstruction struct {
	Upper []schema.Sample
	Lower []schema.Sample
	Stats schema.AnomalyStats
}

// MetricSource is the subset of the Metric Source Adapter (component F) the
// orchestrator needs: a historical range query.
type MetricSource interface {
	QueryRange(metric string, start, end, step int64) ([]schema.Series, error)
}

// waiter coordinates in-process callers blocked on the same fingerprint's
// rebuild, generalizing pkg/lrucache's single-flight Get from an in-memory
// value cache to a cache whose source of truth is the persisted store.
type waiter struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
	model schema.CorridorModel
	err   error
}

// Manager is the Stats Cache Manager.
type Manager struct {
	Repo   *repository.Repository
	Source MetricSource
	HolderID string

	mu      sync.Mutex
	waiters map[string]*waiter

	recon *lrucache.Cache
}

// NewManager constructs a Manager with the given collaborators, per §9's
// design note replacing a process-wide service registry with an explicit
// construction graph.
func NewManager(repo *repository.Repository, source MetricSource, holderID string) *Manager {
	return &Manager{
		Repo:     repo,
		Source:   source,
		HolderID: holderID,
		waiters:  make(map[string]*waiter),
		recon:    lrucache.New(reconstructionCacheBytes),
	}
}

// GetCorridor implements §2's read path: consult the Cache Store through
// RecalculateStats (hit+fresh short-circuits to the stored model; miss/stale
// triggers the single-flight rebuild pipeline), then ask the signal kernel
// to reconstruct corridor samples over [start, end] at step, independent of
// the training window the model was fit on (§4.A: phase continues, trend
// extrapolates). Reconstruction of a given (fingerprint, rebuild count,
// window) is memoized in an in-memory LRU so repeated range queries over the
// same dashboard panel don't re-run the IDFT every call.
func (m *Manager) GetCorridor(query, labelsJSON string, start, end, step int64, liveData, historyData []schema.Series, cfg schema.CacheConfig) (CorridorReconstruction, error) {
	model, err := m.RecalculateStats(query, labelsJSON, liveData, historyData, cfg)
	if err != nil {
		return CorridorReconstruction{}, err
	}
	return m.reconstruct(model, start, end, step), nil
}

func (m *Manager) reconstruct(model schema.CorridorModel, start, end, step int64) CorridorReconstruction {
	hash := repository.MetricHash(model.Meta.Query, model.Meta.Labels)
	key := fmt.Sprintf("%s|%d|%d|%d|%d", hash, model.Meta.DFTRebuildCount, start, end, step)

	trainN := 0
	if model.Meta.Step > 0 {
		trainN = int(model.Meta.TotalDuration/model.Meta.Step) + 1
	}

	value := m.recon.Get(key, func() (interface{}, time.Duration, int) {
		// Evaluate at the caller's grid start, start+step, ..., end; the
		// model's own step only sets the phase index.
		var upper, lower []schema.Sample
		if step > 0 {
			for t := start; t <= end; t += step {
				upper = append(upper, dft.Reconstruct(model.DFTUpper, trainN, model.Meta.DataStart, model.Meta.Step, t, t)...)
				lower = append(lower, dft.Reconstruct(model.DFTLower, trainN, model.Meta.DataStart, model.Meta.Step, t, t)...)
			}
		}
		result := CorridorReconstruction{Upper: upper, Lower: lower, Stats: model.Meta.AnomalyStats}
		return result, reconstructionCacheTTL, (len(upper) + len(lower)) * 16
	})
	return value.(CorridorReconstruction)
}

// RecalculateStats implements §4.E's recalculateStats. liveData, when
// non-empty, is combined with freshly fetched historical data rather than
// replacing it (step 4).
func (m *Manager) RecalculateStats(query, labelsJSON string, liveData []schema.Series, historyData []schema.Series, cfg schema.CacheConfig) (schema.CorridorModel, error) {
	// Step 1: freshness probe.
	should, err := m.Repo.ShouldRecreateCache(query, labelsJSON, cfg)
	if err != nil {
		return schema.CorridorModel{}, err
	}
	if !should {
		cached, err := m.Repo.LoadFromCache(query, labelsJSON)
		if err != nil {
			return schema.CorridorModel{}, err
		}
		if cached != nil {
			return *cached, nil
		}
	}

	hash := repository.MetricHash(query, labelsJSON)

	// Step 2: single-flight, in-process first.
	m.mu.Lock()
	if w, ok := m.waiters[hash]; ok {
		m.mu.Unlock()
		return waitFor(w)
	}
	w := &waiter{}
	w.cond = sync.NewCond(&w.mu)
	m.waiters[hash] = w
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.waiters, hash)
		m.mu.Unlock()
	}()

	model, err := m.buildLocked(query, labelsJSON, hash, liveData, historyData, cfg)

	w.mu.Lock()
	w.model, w.err, w.done = model, err, true
	w.cond.Broadcast()
	w.mu.Unlock()

	return model, err
}

func waitFor(w *waiter) (schema.CorridorModel, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.done {
		w.cond.Wait()
	}
	return w.model, w.err
}

// buildLocked performs the cross-process lease acquisition, placeholder
// seeding, data acquisition, processing and persist steps (§4.E steps 2-7).
// The caller already holds the in-process waiter slot for hash.
func (m *Manager) buildLocked(query, labelsJSON, hash string, liveData, historyData []schema.Series, cfg schema.CacheConfig) (schema.CorridorModel, error) {
	leaseTTL := time.Duration(cfg.BuildTimeout) * time.Second
	if leaseTTL <= 0 {
		leaseTTL = 120 * time.Second
	}

	acquired, err := m.Repo.AcquireLease(hash, m.HolderID, leaseTTL)
	if err != nil {
		return schema.CorridorModel{}, err
	}
	if !acquired {
		// Someone else holds the lease cross-process; wait for it to clear
		// up to cache_build_timeout, then retry acquisition once (§7).
		deadline := time.Now().Add(leaseTTL)
		for time.Now().Before(deadline) {
			time.Sleep(100 * time.Millisecond)
			should, err := m.Repo.ShouldRecreateCache(query, labelsJSON, cfg)
			if err == nil && !should {
				cached, err := m.Repo.LoadFromCache(query, labelsJSON)
				if err == nil && cached != nil {
					return *cached, nil
				}
			}
		}
		acquired, err = m.Repo.AcquireLease(hash, m.HolderID, leaseTTL)
		if err != nil {
			return schema.CorridorModel{}, err
		}
		if !acquired {
			return m.servePlaceholder(query, labelsJSON), schema.NewError("RecalculateStats", schema.KindLeaseTimeout, nil)
		}
	}
	defer func() {
		if err := m.Repo.ReleaseLease(hash, m.HolderID); err != nil {
			log.Warnf("release lease %s: %v", hash, err)
		}
	}()

	// Step 3: placeholder seeding, only if nothing is present yet. Read
	// without the TTL check: a STALE row (the common case here) still
	// carries the dft_rebuild_count a rebuild must increment from, and is
	// also what gets served back on an upstream failure below.
	existing, err := m.Repo.LoadIgnoringTTL(query, labelsJSON)
	if err != nil {
		log.Warnf("placeholder seed: load existing failed: %v", err)
	}
	rebuildCount := 0
	if existing != nil {
		rebuildCount = existing.Meta.DFTRebuildCount
	} else {
		placeholder := buildPlaceholder(query, labelsJSON)
		if err := m.Repo.SaveToCache(query, labelsJSON, placeholder, cfg); err != nil {
			log.Warnf("placeholder seed failed: %v", err)
		}
	}

	// Step 4: data acquisition.
	data := historyData
	if len(data) == 0 && m.Source != nil {
		now := time.Now().Unix()
		fetched, err := m.Source.QueryRange(query, now-cfg.History.SpanSeconds, now, cfg.History.StepSeconds)
		if err != nil {
			if existing != nil {
				return *existing, nil // serve stale on upstream failure (§7)
			}
			return m.servePlaceholder(query, labelsJSON), schema.NewError("RecalculateStats", schema.KindUpstreamUnavailable, err)
		}
		data = fetched
	}
	data = append(append([]schema.Series{}, data...), liveData...)

	model, err := m.compute(query, labelsJSON, data, cfg, rebuildCount)
	if err != nil {
		if existing != nil {
			return *existing, nil
		}
		return schema.CorridorModel{}, err
	}

	// Step 6: persist.
	if err := m.Repo.SaveToCache(query, labelsJSON, model, cfg); err != nil {
		return schema.CorridorModel{}, err
	}

	return model, nil
}

// compute implements §4.E step 5: processing.
func (m *Manager) compute(query, labelsJSON string, data []schema.Series, cfg schema.CacheConfig, previousRebuildCount int) (schema.CorridorModel, error) {
	groups := dataprocessor.GroupData(data)
	flattened := make([]schema.Series, 0, len(groups))
	for labels, samples := range groups {
		flattened = append(flattened, schema.Series{Labels: labels, Samples: samples})
	}

	start, end := dataprocessor.GetActualDataRange(flattened, 0, time.Now().Unix())
	step := cfg.History.StepSeconds
	if step <= 0 {
		step = 60
	}

	upperPct, lowerPct := 95.0, 5.0
	if cfg.CorridorParams.DefaultPercentiles != [2]float64{} {
		upperPct, lowerPct = cfg.CorridorParams.DefaultPercentiles[0], cfg.CorridorParams.DefaultPercentiles[1]
	}
	window := cfg.CorridorParams.RollingWindow
	if window <= 0 {
		window = 15
	}
	maxGap := window

	upperBound := dataprocessor.CalculateBounds(flattened, start, end, step, upperPct, window, maxGap)
	lowerBound := dataprocessor.CalculateBounds(flattened, start, end, step, lowerPct, window, maxGap)
	observedLevel := dataprocessor.CalculateBounds(flattened, start, end, step, 50, window, maxGap)

	n := len(upperBound)
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(start + int64(i)*step)
	}

	upperTrend := dft.FitTrend(times, upperBound)
	lowerTrend := dft.FitTrend(times, lowerBound)

	upperDetrended := dft.Detrend(times, upperBound, upperTrend)
	lowerDetrended := dft.Detrend(times, lowerBound, lowerTrend)

	maxCoeff := cfg.DFT.MaxCoefficients
	if maxCoeff <= 0 {
		maxCoeff = 16
	}
	upperCoeffs := dft.Transform(upperDetrended, maxCoeff)
	lowerCoeffs := dft.Transform(lowerDetrended, maxCoeff)

	upperBand := schema.DFTBand{Coefficients: upperCoeffs, Trend: upperTrend}
	lowerBand := schema.DFTBand{Coefficients: lowerCoeffs, Trend: lowerTrend}

	reconstructedUpper := dft.Reconstruct(upperBand, n, start, step, start, start+int64(n-1)*step)
	reconstructedLower := dft.Reconstruct(lowerBand, n, start, step, start, start+int64(n-1)*step)

	upperValues := toFloats(reconstructedUpper)
	lowerValues := toFloats(reconstructedLower)

	stats := anomaly.Detect(observedLevel, upperValues, lowerValues, step, cfg.CorridorParams.MinRunSteps)

	totalDuration := end - start
	if totalDuration < 0 {
		totalDuration = 0
	}

	return schema.CorridorModel{
		Meta: schema.CorridorMeta{
			SchemaVersion:   schema.CurrentSchemaVersion,
			DataStart:       start,
			Step:            step,
			TotalDuration:   totalDuration,
			Labels:          labelsJSON,
			Query:           query,
			DFTRebuildCount: previousRebuildCount + 1,
			IsPlaceholder:   false,
			AnomalyStats:    stats,
		},
		DFTUpper: upperBand,
		DFTLower: lowerBand,
	}, nil
}

func toFloats(samples []schema.Sample) []schema.Float {
	out := make([]schema.Float, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

func (m *Manager) servePlaceholder(query, labelsJSON string) schema.CorridorModel {
	if cached, err := m.Repo.LoadFromCache(query, labelsJSON); err == nil && cached != nil {
		return *cached
	}
	return buildPlaceholder(query, labelsJSON)
}
