package repository

import (
	"database/sql"
	"time"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// AcquireLease implements the cross-process half of §5's single-flight
// coordination: build_leases is the only coordination mechanism that must
// survive process crashes. It inserts a row for metricHash if none exists or
// the existing one has expired, atomically handing build ownership to
// holderID. Returns true if the caller now holds the lease.
func (r *Repository) AcquireLease(metricHash, holderID string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().Unix()
	expiresAt := time.Now().Add(ttl).Unix()

	tx, err := r.DB.Beginx()
	if err != nil {
		return false, asCoreError("AcquireLease", schema.KindStoreConflict, err)
	}
	defer tx.Rollback()

	var existingHolder string
	var existingExpiry int64
	err = tx.QueryRow(`SELECT holder_id, expires_at FROM build_leases WHERE metric_hash = ?`, metricHash).
		Scan(&existingHolder, &existingExpiry)

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`INSERT INTO build_leases (metric_hash, holder_id, expires_at) VALUES (?, ?, ?)`,
			metricHash, holderID, expiresAt); err != nil {
			return false, asCoreError("AcquireLease", schema.KindStoreConflict, err)
		}
	case err != nil:
		return false, asCoreError("AcquireLease", schema.KindInternal, err)
	case existingExpiry <= now:
		if _, err := tx.Exec(`UPDATE build_leases SET holder_id = ?, expires_at = ? WHERE metric_hash = ?`,
			holderID, expiresAt, metricHash); err != nil {
			return false, asCoreError("AcquireLease", schema.KindStoreConflict, err)
		}
	default:
		// Another holder's lease is still valid.
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, asCoreError("AcquireLease", schema.KindStoreConflict, err)
	}
	return true, nil
}

// ReleaseLease drops a lease this process holds. A mismatched holderID is a
// no-op: it means the lease already expired and was reclaimed by someone
// else, which is not an error for the releasing side.
func (r *Repository) ReleaseLease(metricHash, holderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.DB.Exec(`DELETE FROM build_leases WHERE metric_hash = ? AND holder_id = ?`, metricHash, holderID)
	if err != nil {
		return asCoreError("ReleaseLease", schema.KindStoreConflict, err)
	}
	return nil
}

// HeartbeatLease extends the expiry of a lease that holderID still holds to
// now+ttl, letting a holder prove liveness before cache_build_timeout
// elapses.
func (r *Repository) HeartbeatLease(metricHash, holderID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt := time.Now().Add(ttl).Unix()
	res, err := r.DB.Exec(`UPDATE build_leases SET expires_at = ? WHERE metric_hash = ? AND holder_id = ?`,
		expiresAt, metricHash, holderID)
	if err != nil {
		return asCoreError("HeartbeatLease", schema.KindStoreConflict, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schema.NewError("HeartbeatLease", schema.KindLeaseTimeout, nil)
	}
	return nil
}

// SweepExpiredLeases deletes every build_leases row past its expiry,
// reclaiming leases abandoned by crashed holders.
func (r *Repository) SweepExpiredLeases() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.DB.Exec(`DELETE FROM build_leases WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, asCoreError("SweepExpiredLeases", schema.KindInternal, err)
	}
	return res.RowsAffected()
}
