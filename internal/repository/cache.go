package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/corridorcache/baseline-engine/pkg/log"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

var sq = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

type dftCacheRow struct {
	QueryID    int64  `db:"query_id"`
	MetricHash string `db:"metric_hash"`
	Payload    []byte `db:"payload"`
	CreatedAt  int64  `db:"created_at"`
	ExpiresAt  int64  `db:"expires_at"`
	ConfigHash string `db:"config_hash"`
}

// ensureQueryID interns query into the queries table, returning its id. The
// caller must hold r.mu: a UNIQUE constraint on query backs the
// insert-or-fetch race against other processes, but same-process callers
// serialize through the write-mutex like every other write.
func (r *Repository) ensureQueryID(query string) (int64, error) {
	var id int64
	err := r.DB.Get(&id, `SELECT id FROM queries WHERE query = ?`, query)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := r.DB.Exec(`INSERT INTO queries (query) VALUES (?)`, query)
	if err != nil {
		// Lost the race against a concurrent insert; the row now exists.
		if ferr := r.DB.Get(&id, `SELECT id FROM queries WHERE query = ?`, query); ferr == nil {
			return id, nil
		}
		return 0, asCoreError("ensureQueryID", schema.KindStoreConflict, err)
	}
	return res.LastInsertId()
}

// LoadFromCache implements §4.D's loadFromCache: canonicalize labels, look
// up (query_id, metric_hash) in dft_cache, and return nil if the row is
// absent or expired. An unreadable or corrupt payload deletes the offending
// row (§7 propagation policy for Corruption) and returns a nil model with
// the Corruption error.
func (r *Repository) LoadFromCache(query string, labelsJSON string) (*schema.CorridorModel, error) {
	hash := MetricHash(query, labelsJSON)

	queryID, err := r.lookupQueryID(query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, asCoreError("LoadFromCache", schema.KindInternal, err)
	}

	var row dftCacheRow
	err = r.DB.Get(&row, `SELECT query_id, metric_hash, payload, created_at, expires_at, config_hash
		FROM dft_cache WHERE query_id = ? AND metric_hash = ?`, queryID, hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadFromCache", schema.KindInternal, err)
	}

	if row.ExpiresAt <= time.Now().Unix() {
		return nil, nil
	}

	model, verr := validatePayload(row.Payload)
	if verr != nil {
		log.Warnf("corrupt dft_cache row for hash %s: %v, deleting", hash, verr)
		if _, derr := r.DB.Exec(`DELETE FROM dft_cache WHERE query_id = ? AND metric_hash = ?`, queryID, hash); derr != nil {
			log.Errorf("failed to delete corrupt dft_cache row: %v", derr)
		}
		return nil, verr
	}

	return &model, nil
}

// LoadIgnoringTTL looks up a dft_cache row the same way LoadFromCache does,
// but returns it even past expires_at. The row is still physically present
// until the TTL sweep deletes it, and the orchestrator needs to see it
// across a STALE->FRESH rebuild: to carry forward dft_rebuild_count (§4.E
// step 6: "increment ... = previous + 1", which only holds if "previous" is
// read without the freshness check that made the rebuild necessary in the
// first place) and to serve a stale entry on upstream failure (§7).
func (r *Repository) LoadIgnoringTTL(query string, labelsJSON string) (*schema.CorridorModel, error) {
	hash := MetricHash(query, labelsJSON)

	queryID, err := r.lookupQueryID(query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, asCoreError("LoadIgnoringTTL", schema.KindInternal, err)
	}

	var row dftCacheRow
	err = r.DB.Get(&row, `SELECT query_id, metric_hash, payload, created_at, expires_at, config_hash
		FROM dft_cache WHERE query_id = ? AND metric_hash = ?`, queryID, hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadIgnoringTTL", schema.KindInternal, err)
	}

	model, verr := validatePayload(row.Payload)
	if verr != nil {
		log.Warnf("corrupt dft_cache row for hash %s: %v, deleting", hash, verr)
		if _, derr := r.DB.Exec(`DELETE FROM dft_cache WHERE query_id = ? AND metric_hash = ?`, queryID, hash); derr != nil {
			log.Errorf("failed to delete corrupt dft_cache row: %v", derr)
		}
		return nil, verr
	}

	return &model, nil
}

// LoadByHash looks a cached model up by metric_hash alone, without the
// caller needing to know the originating query/labels. Used by the
// debug/cache HTTP surface (SPEC_FULL.md §9.1), where only the hash is
// convenient to put in a URL path.
func (r *Repository) LoadByHash(hash string) (*schema.CorridorModel, error) {
	var row dftCacheRow
	err := r.DB.Get(&row, `SELECT query_id, metric_hash, payload, created_at, expires_at, config_hash
		FROM dft_cache WHERE metric_hash = ?`, hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadByHash", schema.KindInternal, err)
	}

	if row.ExpiresAt <= time.Now().Unix() {
		return nil, nil
	}

	model, verr := validatePayload(row.Payload)
	if verr != nil {
		return nil, verr
	}
	return &model, nil
}

func (r *Repository) lookupQueryID(query string) (int64, error) {
	var id int64
	err := r.DB.Get(&id, `SELECT id FROM queries WHERE query = ?`, query)
	return id, err
}

// SaveToCache implements §4.D's saveToCache: it inserts the query into
// queries on demand, then upserts dft_cache in a transaction. The queries
// insert runs before and outside that transaction, so it is not rolled back
// if the upsert fails.
func (r *Repository) SaveToCache(query string, labelsJSON string, model schema.CorridorModel, cfg schema.CacheConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	queryID, err := r.ensureQueryID(query)
	if err != nil {
		return asCoreError("SaveToCache", schema.KindStoreConflict, err)
	}

	hash := MetricHash(query, labelsJSON)
	now := time.Now().Unix()
	model.Meta.ConfigHash = CreateConfigHash(cfg)
	model.Meta.SchemaVersion = schema.CurrentSchemaVersion
	model.Meta.CreatedAt = now

	payload, err := json.Marshal(model)
	if err != nil {
		return asCoreError("SaveToCache", schema.KindInternal, err)
	}

	tx, err := r.DB.Beginx()
	if err != nil {
		return asCoreError("SaveToCache", schema.KindStoreConflict, err)
	}
	defer tx.Rollback()

	expiresAt := now + cfg.Database.MaxTTL
	if _, err := tx.Exec(`
		INSERT INTO dft_cache (query_id, metric_hash, payload, created_at, expires_at, config_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_id, metric_hash) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			config_hash = excluded.config_hash
	`, queryID, hash, payload, now, expiresAt, model.Meta.ConfigHash); err != nil {
		return asCoreError("SaveToCache", schema.KindStoreConflict, err)
	}

	if err := tx.Commit(); err != nil {
		return asCoreError("SaveToCache", schema.KindStoreConflict, err)
	}
	return nil
}

// ShouldRecreateCache implements §4.D's freshness predicate (law 3): true
// iff no row exists, or it is expired, or its config_hash differs, or it is
// a placeholder.
func (r *Repository) ShouldRecreateCache(query string, labelsJSON string, cfg schema.CacheConfig) (bool, error) {
	hash := MetricHash(query, labelsJSON)

	queryID, err := r.lookupQueryID(query)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, asCoreError("ShouldRecreateCache", schema.KindInternal, err)
	}

	var row dftCacheRow
	err = r.DB.Get(&row, `SELECT query_id, metric_hash, payload, created_at, expires_at, config_hash
		FROM dft_cache WHERE query_id = ? AND metric_hash = ?`, queryID, hash)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, asCoreError("ShouldRecreateCache", schema.KindInternal, err)
	}

	if row.ExpiresAt <= time.Now().Unix() {
		return true, nil
	}
	if row.ConfigHash != CreateConfigHash(cfg) {
		return true, nil
	}

	model, verr := validatePayload(row.Payload)
	if verr != nil {
		return true, nil
	}
	if model.Meta.IsPlaceholder {
		return true, nil
	}

	return false, nil
}

// InvalidateByFingerprint deletes a fingerprint's dft_cache row outright
// (any -> ABSENT transition in the state machine of §4.E), independent of
// TTL.
func (r *Repository) InvalidateByFingerprint(query string, labelsJSON string) error {
	hash := MetricHash(query, labelsJSON)
	queryID, err := r.lookupQueryID(query)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return asCoreError("InvalidateByFingerprint", schema.KindInternal, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.DB.Exec(`DELETE FROM dft_cache WHERE query_id = ? AND metric_hash = ?`, queryID, hash)
	if err != nil {
		return asCoreError("InvalidateByFingerprint", schema.KindStoreConflict, err)
	}
	return nil
}

// SweepExpired deletes every dft_cache row past its expiry, matching §3's
// "destroyed ... by TTL sweep" lifecycle rule. Called opportunistically at
// open and from the background TTL job (SPEC_FULL §5.1).
func (r *Repository) SweepExpired() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.DB.Exec(`DELETE FROM dft_cache WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, asCoreError("SweepExpired", schema.KindInternal, err)
	}
	return res.RowsAffected()
}

// queryBuilder exposes squirrel to this package's lookups (the Grafana
// registry queries) that are built dynamically rather than via a fixed
// statement.
func (r *Repository) queryBuilder() squirrel.StatementBuilderType {
	return sq
}
