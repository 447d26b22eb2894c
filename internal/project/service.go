package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ductline/ductline/backend-go/internal/db"
	"github.com/ductline/ductline/backend-go/internal/document"
	"github.com/ductline/ductline/backend-go/internal/typeid"
)

var ErrNotFound = errors.New("project not found")

type Service struct {
	queries *db.Queries
}

func NewService(queries *db.Queries) *Service {
	return &Service{queries: queries}
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (s *Service) Create(ctx context.Context, name string) (*Project, error) {
	projectID := typeid.NewProjectID()

	dbProj, err := s.queries.CreateProject(ctx, db.CreateProjectParams{
		ID:   projectID,
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	// Seed an empty design snapshot so the first room open has state.
	emptyDesign := document.NewEmptyDesign(projectID, name, time.Now())
	designJSON, err := json.Marshal(emptyDesign)
	if err != nil {
		return nil, fmt.Errorf("marshal empty design: %w", err)
	}

	_, err = s.queries.CreateSnapshot(ctx, db.CreateSnapshotParams{
		ID:        typeid.NewSnapshotID(),
		ProjectID: projectID,
		Version:   1,
		Design:    designJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	return dbProjectToProject(dbProj), nil
}

func (s *Service) Get(ctx context.Context, projectID string) (*Project, error) {
	dbProj, err := s.queries.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}

	return dbProjectToProject(dbProj), nil
}

func (s *Service) List(ctx context.Context) ([]Project, error) {
	dbProjects, err := s.queries.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]Project, len(dbProjects))
	for i, p := range dbProjects {
		projects[i] = *dbProjectToProject(p)
	}

	return projects, nil
}

func (s *Service) Rename(ctx context.Context, projectID, name string) (*Project, error) {
	dbProj, err := s.queries.RenameProject(ctx, db.RenameProjectParams{
		ID:   projectID,
		Name: name,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rename project: %w", err)
	}
	return dbProjectToProject(dbProj), nil
}

func (s *Service) Delete(ctx context.Context, projectID string) error {
	if _, err := s.queries.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("get project: %w", err)
	}

	return s.queries.DeleteProject(ctx, projectID)
}

func (s *Service) GetLatestSnapshot(ctx context.Context, projectID string) (json.RawMessage, error) {
	snap, err := s.queries.GetLatestSnapshot(ctx, projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	return snap.Design, nil
}

// SaveSnapshot persists a design document as the next snapshot version.
func (s *Service) SaveSnapshot(ctx context.Context, projectID string, design json.RawMessage) (int32, error) {
	if !json.Valid(design) {
		return 0, errors.New("design is not valid JSON")
	}

	nextVersion := int32(1)
	current, err := s.queries.GetLatestSnapshot(ctx, projectID)
	if err == nil {
		nextVersion = current.Version + 1
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("get current snapshot: %w", err)
	}

	_, err = s.queries.CreateSnapshot(ctx, db.CreateSnapshotParams{
		ID:        typeid.NewSnapshotID(),
		ProjectID: projectID,
		Version:   nextVersion,
		Design:    design,
	})
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}

	return nextVersion, nil
}

func dbProjectToProject(p db.Project) *Project {
	return &Project{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
