package repository

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "baseline.db")
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", path))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	m, err := migrateInstance("sqlite3", db)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return connectForTest("sqlite3", sqlx.NewDb(db, "sqlite3"))
}

func testConfig() schema.CacheConfig {
	return schema.CacheConfig{
		Database: schema.CacheDatabaseConfig{Driver: "sqlite3", MaxTTL: 3600},
		CorridorParams: schema.CorridorParams{
			DefaultPercentiles: [2]float64{95, 5},
			RollingWindow:      15,
			MinRunSteps:        2,
		},
		DFT:     schema.DFTParams{MaxCoefficients: 16},
		History: schema.HistoryParams{SpanSeconds: 3600, StepSeconds: 60},
	}
}

func testModel() schema.CorridorModel {
	return schema.CorridorModel{
		Meta: schema.CorridorMeta{
			SchemaVersion: schema.CurrentSchemaVersion,
			DataStart:     1_700_000_000,
			Step:          60,
			TotalDuration: 3600,
		},
		DFTUpper: schema.DFTBand{Coefficients: []schema.Coefficient{{K: 0, Complex: schema.Complex{Re: 1}}}},
		DFTLower: schema.DFTBand{Coefficients: []schema.Coefficient{{K: 0, Complex: schema.Complex{Re: -1}}}},
	}
}
