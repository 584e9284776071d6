package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

const schema = `CREATE TABLE IF NOT EXISTS runs (
    id          uuid PRIMARY KEY,
    instance    text NOT NULL,
    status      text NOT NULL,
    started_at  timestamptz NOT NULL,
    finished_at timestamptz,
    objective   double precision,
    x           jsonb,
    y           jsonb,
    z           jsonb,
    params      jsonb,
    stats       jsonb,
    error       text,
    created_at  timestamptz NOT NULL DEFAULT now()
)`

// Migrate creates the runs table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *Postgres) SaveRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := p.db.ExecContext(ctx, `INSERT INTO runs (id, instance, status, started_at, finished_at, objective, x, y, z, params, stats, error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (id) DO UPDATE SET
          instance=$2, status=$3, started_at=$4, finished_at=$5, objective=$6, x=$7, y=$8, z=$9, params=$10, stats=$11, error=$12`,
		r.ID, r.Instance, r.Status, r.StartedAt, r.FinishedAt, r.Objective,
		toJSON(r.X), toJSON(r.Y), toJSON(r.Z), toJSON(r.Params), toJSON(r.Stats), nullIfEmpty(r.Error),
	)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

const runColumns = `id::text, instance, status, started_at, finished_at, objective, x, y, z, params, stats, error`

func (p *Postgres) GetRun(ctx context.Context, id string) (Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id::text=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

func (p *Postgres) ListRuns(ctx context.Context, cursor string, limit int) ([]Run, string, error) {
	limit = clampLimit(limit)
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id::text > $1 ORDER BY id::text LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id::text LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r             Run
		finished      sql.NullTime
		objective     sql.NullFloat64
		x, y, z       []byte
		params, stats []byte
		errText       sql.NullString
	)
	if err := s.Scan(&r.ID, &r.Instance, &r.Status, &r.StartedAt, &finished, &objective, &x, &y, &z, &params, &stats, &errText); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time.UTC()
		r.FinishedAt = &t
	}
	if objective.Valid {
		v := objective.Float64
		r.Objective = &v
	}
	r.StartedAt = r.StartedAt.UTC()
	r.Error = errText.String
	for _, f := range []struct {
		raw []byte
		dst any
	}{{x, &r.X}, {y, &r.Y}, {z, &r.Z}, {params, &r.Params}, {stats, &r.Stats}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return Run{}, err
		}
	}
	return r, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// toJSON encodes v for a jsonb column; nil slices and maps become NULL.
func toJSON(v any) any {
	switch t := v.(type) {
	case []int:
		if t == nil {
			return nil
		}
	case map[string]any:
		if t == nil {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}
