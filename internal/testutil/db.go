// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"airlogger/pkg/database"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

// NewMetrics returns a collector on a private registry so tests never
// collide on global registration.
func NewMetrics() *metrics.Collector {
	return metrics.NewCollector("airlogger_test", prometheus.NewRegistry())
}

// OpenSQLite opens a private in-memory database that is closed with the test.
func OpenSQLite(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(&database.Config{
		Driver:       database.DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logging.NewNopLogger(), NewMetrics())
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}
