// Package store persists census population loads in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/census/internal/census"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const populationTable = "census_population"

var populationColumns = []string{"load_id", "row_num", "prefecture", "population"}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS census_population (
	load_id    UUID        NOT NULL,
	row_num    INTEGER     NOT NULL,
	prefecture TEXT        NOT NULL,
	population BIGINT      NOT NULL,
	loaded_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (load_id, row_num)
)`

const selectByLoadSQL = `
SELECT prefecture, population
FROM census_population
WHERE load_id = $1
ORDER BY row_num`

const deleteLoadSQL = `DELETE FROM census_population WHERE load_id = $1`

var ErrLoadNotFound = errors.New("census load not found")

// DBTX is the subset of *pgxpool.Pool, *pgx.Conn and pgx.Tx the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the population table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveTable copies the prefecture and population of every row in t under
// loadID and returns the number of rows written.
func (s *Store) SaveTable(ctx context.Context, loadID uuid.UUID, t *census.Table) (int64, error) {
	rows, err := census.PopulationRows(t)
	if err != nil {
		return 0, fmt.Errorf("save census: %w", err)
	}

	id := toPgUUID(loadID)
	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{
			id,
			pgtype.Int4{Int32: int32(r.Row), Valid: true},
			pgtype.Text{String: r.Prefecture, Valid: true},
			pgtype.Int8{Int64: r.Population, Valid: true},
		}, nil
	})

	n, err := s.db.CopyFrom(ctx, pgx.Identifier{populationTable}, populationColumns, src)
	if err != nil {
		return 0, fmt.Errorf("save census %s: %w", loadID, err)
	}
	return n, nil
}

// PopulationByLoad rebuilds the prefecture to population mapping of a stored
// load. Rows are applied in their original order, so the last duplicate wins
// as it does for census.PopulationByPrefecture.
func (s *Store) PopulationByLoad(ctx context.Context, loadID uuid.UUID) (map[string]int64, error) {
	rows, err := s.db.Query(ctx, selectByLoadSQL, toPgUUID(loadID))
	if err != nil {
		return nil, fmt.Errorf("query load %s: %w", loadID, err)
	}
	defer rows.Close()

	m := make(map[string]int64)
	seen := false
	for rows.Next() {
		var (
			pref pgtype.Text
			pop  pgtype.Int8
		)
		if err := rows.Scan(&pref, &pop); err != nil {
			return nil, fmt.Errorf("scan load %s: %w", loadID, err)
		}
		seen = true
		m[pref.String] = pop.Int64
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query load %s: %w", loadID, err)
	}
	if !seen {
		return nil, fmt.Errorf("%w: %s", ErrLoadNotFound, loadID)
	}
	return m, nil
}

// DeleteLoad removes every row stored under loadID.
func (s *Store) DeleteLoad(ctx context.Context, loadID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, deleteLoadSQL, toPgUUID(loadID))
	if err != nil {
		return 0, fmt.Errorf("delete load %s: %w", loadID, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrLoadNotFound, loadID)
	}
	return tag.RowsAffected(), nil
}

func toPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}
