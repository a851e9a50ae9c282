// Package store persists populations, genotypes and their genes across the
// process boundary, adapted from the teacher's generic connection manager
// (internal/database/db_manager.go) into a single-backend store keyed by
// uuid rather than a named multi-connection pool — a render host only ever
// talks to the one backend it was configured with.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"seni/internal/errors"
	"seni/internal/genetic"
	"seni/internal/value"
)

// Backend names the SQL dialect a Store talks, matching db_manager.go's
// dbType switch plus sqlserver (carried from internal/database/database.go,
// the only place in the copied tree that wires go-mssqldb).
type Backend string

const (
	SQLite   Backend = "sqlite"
	Postgres Backend = "postgres"
	MySQL    Backend = "mysql"
	MSSQL    Backend = "sqlserver"
)

func (b Backend) driverName() (string, error) {
	switch b {
	case SQLite:
		return "sqlite", nil
	case Postgres:
		return "postgres", nil
	case MySQL:
		return "mysql", nil
	case MSSQL:
		return "sqlserver", nil
	default:
		return "", fmt.Errorf("unsupported store backend: %s", b)
	}
}

// placeholder renders the nth (1-based) bound-parameter placeholder in the
// backend's own dialect: MySQL/SQLite use positional "?", Postgres uses
// "$n", SQL Server uses "@pN".
func (b Backend) placeholder(n int) string {
	switch b {
	case Postgres:
		return fmt.Sprintf("$%d", n)
	case MSSQL:
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}

// Store owns one backend connection and the genotype/population schema
// built on it.
type Store struct {
	db      *sql.DB
	backend Backend
}

// Open connects to dsn under backend, pings it, configures the pool the
// same way db_manager.go's Connect does, and ensures the schema exists.
func Open(backend Backend, dsn string) (*Store, error) {
	driver, err := backend.driverName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open %s: %w", backend, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: failed to ping %s: %w", backend, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db, backend: backend}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// migrate creates the populations/genotypes tables if absent. Column types
// are kept to the smallest common denominator (TEXT/VARCHAR, no
// backend-specific autoincrement) since both tables are keyed by a
// caller-supplied uuid, never a serial identity column.
func (s *Store) migrate() error {
	textType := "TEXT"
	if s.backend == MSSQL {
		textType = "NVARCHAR(MAX)"
	}
	idType := "VARCHAR(36)"

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS populations (
			id %s PRIMARY KEY,
			script_hash %s NOT NULL,
			trait_count INT NOT NULL,
			created_at %s NOT NULL
		)`, idType, idType, textType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS genotypes (
			id %s PRIMARY KEY,
			population_id %s NOT NULL,
			genes %s NOT NULL,
			created_at %s NOT NULL
		)`, idType, idType, textType, textType),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate failed: %w", err)
		}
	}
	return nil
}

// SavePopulation records a population's identity and trait-list schema
// (the trait count a genotype's gene list must match) so a later process
// can validate genotypes read back against it.
func (s *Store) SavePopulation(id uuid.UUID, scriptHash string, traitCount int) error {
	q := fmt.Sprintf("INSERT INTO populations (id, script_hash, trait_count, created_at) VALUES (%s, %s, %s, %s)",
		s.backend.placeholder(1), s.backend.placeholder(2), s.backend.placeholder(3), s.backend.placeholder(4))
	_, err := s.db.Exec(q, id.String(), scriptHash, traitCount, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: save population: %w", err)
	}
	return nil
}

// SaveGenotype serialises g (internal/genetic's text-tagged gene format)
// and inserts it under populationID.
func (s *Store) SaveGenotype(heap *value.Heap, populationID uuid.UUID, g *genetic.Genotype) error {
	blob, err := genetic.SerializeGenotype(heap, g)
	if err != nil {
		return fmt.Errorf("store: serialize genotype: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO genotypes (id, population_id, genes, created_at) VALUES (%s, %s, %s, %s)",
		s.backend.placeholder(1), s.backend.placeholder(2), s.backend.placeholder(3), s.backend.placeholder(4))
	_, err = s.db.Exec(q, g.ID.String(), populationID.String(), blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("store: save genotype: %w", err)
	}
	return nil
}

// LoadGenotype reads back and deserialises one genotype by id.
func (s *Store) LoadGenotype(heap *value.Heap, id uuid.UUID) (*genetic.Genotype, error) {
	q := fmt.Sprintf("SELECT genes FROM genotypes WHERE id = %s", s.backend.placeholder(1))
	var blob string
	if err := s.db.QueryRow(q, id.String()).Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf(errors.Runtime, "store: genotype %s not found", id)
		}
		return nil, fmt.Errorf("store: load genotype: %w", err)
	}
	return genetic.DeserializeGenotype(heap, blob)
}

// ListGenotypes returns every genotype id saved under a population, ordered
// by created_at. created_at has one-second resolution, so the order of
// genotypes saved within the same second is not defined.
func (s *Store) ListGenotypes(populationID uuid.UUID) ([]uuid.UUID, error) {
	q := fmt.Sprintf("SELECT id FROM genotypes WHERE population_id = %s ORDER BY created_at", s.backend.placeholder(1))
	rows, err := s.db.Query(q, populationID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list genotypes: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
