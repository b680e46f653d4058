package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"airlogger/pkg/database"
)

// columnTypes maps the logical column types used in the DDL below to each
// dialect's spelling.
var columnTypes = map[string]map[string]string{
	database.DriverPostgres: {"{TIMESTAMP}": "TIMESTAMPTZ", "{FLOAT}": "DOUBLE PRECISION"},
	database.DriverPgx:      {"{TIMESTAMP}": "TIMESTAMPTZ", "{FLOAT}": "DOUBLE PRECISION"},
	database.DriverSQLite:   {"{TIMESTAMP}": "DATETIME", "{FLOAT}": "REAL"},
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS flights (
		id                      TEXT PRIMARY KEY,
		tail_number             TEXT NOT NULL,
		departure_airport       TEXT NOT NULL,
		arrival_airport         TEXT NOT NULL,
		departure_time_utc      {TIMESTAMP} NOT NULL,
		arrival_time_utc        {TIMESTAMP} NOT NULL,
		flight_duration_minutes INTEGER NOT NULL CHECK (flight_duration_minutes >= 0),
		created_at              {TIMESTAMP} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flights_tail_departure
		ON flights (tail_number, departure_time_utc)`,
	`CREATE TABLE IF NOT EXISTS financial_settings (
		id                     INTEGER PRIMARY KEY CHECK (id = 1),
		revenue_per_hour       {FLOAT} NOT NULL CHECK (revenue_per_hour >= 0),
		monthly_fixed_costs    {FLOAT} NOT NULL CHECK (monthly_fixed_costs >= 0),
		variable_cost_per_hour {FLOAT} NOT NULL CHECK (variable_cost_per_hour >= 0),
		updated_at             {TIMESTAMP} NOT NULL
	)`,
}

var dropStatements = []string{
	`DROP INDEX IF EXISTS idx_flights_tail_departure`,
	`DROP TABLE IF EXISTS flights`,
	`DROP TABLE IF EXISTS financial_settings`,
}

func renderDDL(driver, stmt string) (string, error) {
	types, ok := columnTypes[driver]
	if !ok {
		return "", fmt.Errorf("no schema dialect for driver %q", driver)
	}
	for placeholder, typ := range types {
		stmt = strings.ReplaceAll(stmt, placeholder, typ)
	}
	return stmt, nil
}

// InitSchema creates the tables and indexes if they do not exist.
func InitSchema(ctx context.Context, db *database.DB) error {
	return runStatements(ctx, db, "init_schema", createStatements)
}

// DropSchema removes everything InitSchema creates.
func DropSchema(ctx context.Context, db *database.DB) error {
	return runStatements(ctx, db, "drop_schema", dropStatements)
}

func runStatements(ctx context.Context, db *database.DB, queryType string, statements []string) error {
	return db.InTx(ctx, queryType, func(tx *sqlx.Tx) error {
		for i, raw := range statements {
			stmt, err := renderDDL(db.Driver(), raw)
			if err != nil {
				return fmt.Errorf("%s: %w", queryType, err)
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: exec statement #%d: %w", queryType, i+1, err)
			}
		}
		return nil
	})
}
