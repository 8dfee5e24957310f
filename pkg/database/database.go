package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mertkara/sharcprep/pkg/config"

	_ "github.com/lib/pq"
)

var DebugLog func(string, ...interface{})

type DB struct {
	conn    *sql.DB
	enabled bool
}

// RunRecord is one tracked preparation run.
type RunRecord struct {
	Experiment      string
	ConfigHash      string
	Split           string
	DataPath        string
	Instances       int
	Batches         int
	YesCount        int
	NoCount         int
	IrrelevantCount int
	MoreCount       int
	StartedAt       time.Time
	FinishedAt      time.Time
}

const DBName = "sharcprep_runs"

func New(cfg *config.Database) (*DB, error) {
	db := &DB{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		return db, nil
	}

	postgresConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	postgresConn, err := sql.Open("postgres", postgresConnStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer postgresConn.Close()

	if err := postgresConn.Ping(); err != nil {
		return db, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = postgresConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", DBName).Scan(&exists)
	if err != nil {
		return db, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		_, err = postgresConn.Exec(fmt.Sprintf("CREATE DATABASE %s", DBName))
		if err != nil {
			return db, fmt.Errorf("failed to create database: %w", err)
		}
		if DebugLog != nil {
			DebugLog("database %s created", DBName)
		}
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return db, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return db, fmt.Errorf("failed to ping database: %w", err)
	}

	db.conn = conn

	if err := db.initSchema(); err != nil {
		return db, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	if !db.enabled || db.conn == nil {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id SERIAL PRIMARY KEY,
		experiment VARCHAR(255) NOT NULL,
		config_hash VARCHAR(64) NOT NULL,
		split VARCHAR(20) NOT NULL,
		data_path TEXT NOT NULL,
		instances INTEGER NOT NULL,
		batches INTEGER NOT NULL,
		yes_count INTEGER NOT NULL DEFAULT 0,
		no_count INTEGER NOT NULL DEFAULT 0,
		irrelevant_count INTEGER NOT NULL DEFAULT 0,
		more_count INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment);
	CREATE INDEX IF NOT EXISTS idx_runs_config_hash ON runs(config_hash);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) IsEnabled() bool {
	return db.enabled && db.conn != nil
}

func (db *DB) RecordRun(run RunRecord) error {
	if !db.IsEnabled() {
		return nil
	}

	if DebugLog != nil {
		DebugLog("recording run for experiment %s (%s split, %d instances)",
			run.Experiment, run.Split, run.Instances)
	}

	_, err := db.conn.Exec(`
		INSERT INTO runs (experiment, config_hash, split, data_path, instances, batches,
			yes_count, no_count, irrelevant_count, more_count, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, run.Experiment, run.ConfigHash, run.Split, run.DataPath, run.Instances, run.Batches,
		run.YesCount, run.NoCount, run.IrrelevantCount, run.MoreCount, run.StartedAt, run.FinishedAt)

	return err
}

func (db *DB) QueryRuns(experiment string) ([]RunRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT experiment, config_hash, split, data_path, instances, batches,
			yes_count, no_count, irrelevant_count, more_count, started_at, finished_at
		FROM runs
		WHERE experiment = $1
		ORDER BY started_at DESC
	`

	rows, err := db.conn.Query(query, experiment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

func (db *DB) QueryAllRuns() ([]RunRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT experiment, config_hash, split, data_path, instances, batches,
			yes_count, no_count, irrelevant_count, more_count, started_at, finished_at
		FROM runs
		ORDER BY experiment, started_at DESC
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.Experiment, &r.ConfigHash, &r.Split, &r.DataPath,
			&r.Instances, &r.Batches, &r.YesCount, &r.NoCount, &r.IrrelevantCount,
			&r.MoreCount, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
