package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries runs the SQL for the project and snapshot tables.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DesignSnapshot struct {
	ID        string
	ProjectID string
	Version   int32
	Design    json.RawMessage
	CreatedAt time.Time
}

type CreateProjectParams struct {
	ID   string
	Name string
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING id, name, created_at, updated_at`,
		arg.ID, arg.Name)
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) GetProject(ctx context.Context, id string) (Project, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM projects WHERE id = $1`, id)
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, name, created_at, updated_at
		FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type RenameProjectParams struct {
	ID   string
	Name string
}

func (q *Queries) RenameProject(ctx context.Context, arg RenameProjectParams) (Project, error) {
	row := q.pool.QueryRow(ctx, `
		UPDATE projects SET name = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, created_at, updated_at`,
		arg.ID, arg.Name)
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// DeleteProject removes a project; snapshots cascade via the foreign
// key.
func (q *Queries) DeleteProject(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

type CreateSnapshotParams struct {
	ID        string
	ProjectID string
	Version   int32
	Design    json.RawMessage
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) (DesignSnapshot, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO design_snapshots (id, project_id, version, design, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, project_id, version, design, created_at`,
		arg.ID, arg.ProjectID, arg.Version, arg.Design)
	var s DesignSnapshot
	err := row.Scan(&s.ID, &s.ProjectID, &s.Version, &s.Design, &s.CreatedAt)
	return s, err
}

func (q *Queries) GetLatestSnapshot(ctx context.Context, projectID string) (DesignSnapshot, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, project_id, version, design, created_at
		FROM design_snapshots
		WHERE project_id = $1
		ORDER BY version DESC
		LIMIT 1`, projectID)
	var s DesignSnapshot
	err := row.Scan(&s.ID, &s.ProjectID, &s.Version, &s.Design, &s.CreatedAt)
	return s, err
}

func (q *Queries) ListSnapshots(ctx context.Context, projectID string) ([]DesignSnapshot, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, project_id, version, design, created_at
		FROM design_snapshots
		WHERE project_id = $1
		ORDER BY version DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DesignSnapshot
	for rows.Next() {
		var s DesignSnapshot
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.Version, &s.Design, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
