package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ProjectRepository handles project CRUD operations.
type ProjectRepository struct {
	db DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create creates a new project.
func (r *ProjectRepository) Create(ctx context.Context, project *Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.CreatedAt = time.Now()
	project.UpdatedAt = time.Now()

	query := `
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query,
		project.ID, project.Name, project.CreatedAt, project.UpdatedAt,
	)
	return err
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM projects WHERE id = $1
	`
	project := &Project{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.Name, &project.CreatedAt, &project.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return project, err
}

// RequirementRepository handles requirement persistence.
type RequirementRepository struct {
	db DB
}

// NewRequirementRepository creates a new requirement repository.
func NewRequirementRepository(db DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// Create persists a requirement.
func (r *RequirementRepository) Create(ctx context.Context, req *Requirement) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()

	query := `
		INSERT INTO requirements (id, project_id, job_id, req_key, title, description,
			category, priority, source, acceptance_criteria, compliance, user_story,
			test_scenarios, dependencies, risks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.ProjectID, req.JobID, req.ReqKey, req.Title, req.Description,
		req.Category, req.Priority, req.Source, []byte(req.AcceptanceCriteria),
		[]byte(req.Compliance), req.UserStory, []byte(req.TestScenarios),
		[]byte(req.Dependencies), []byte(req.Risks), req.CreatedAt, req.UpdatedAt,
	)
	return err
}

// GetByID retrieves a requirement by ID.
func (r *RequirementRepository) GetByID(ctx context.Context, id uuid.UUID) (*Requirement, error) {
	query := `
		SELECT id, project_id, job_id, req_key, title, description, category,
			priority, source, acceptance_criteria, compliance, user_story,
			test_scenarios, dependencies, risks, created_at, updated_at
		FROM requirements WHERE id = $1
	`
	req := &Requirement{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID, &req.ProjectID, &req.JobID, &req.ReqKey, &req.Title, &req.Description,
		&req.Category, &req.Priority, &req.Source, &req.AcceptanceCriteria,
		&req.Compliance, &req.UserStory, &req.TestScenarios,
		&req.Dependencies, &req.Risks, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return req, err
}

// ListByProject retrieves all requirements for a project in creation order.
func (r *RequirementRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Requirement, error) {
	query := `
		SELECT id, project_id, job_id, req_key, title, description, category,
			priority, source, acceptance_criteria, compliance, user_story,
			test_scenarios, dependencies, risks, created_at, updated_at
		FROM requirements WHERE project_id = $1
		ORDER BY created_at, req_key
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*Requirement
	for rows.Next() {
		req := &Requirement{}
		if err := rows.Scan(
			&req.ID, &req.ProjectID, &req.JobID, &req.ReqKey, &req.Title, &req.Description,
			&req.Category, &req.Priority, &req.Source, &req.AcceptanceCriteria,
			&req.Compliance, &req.UserStory, &req.TestScenarios,
			&req.Dependencies, &req.Risks, &req.CreatedAt, &req.UpdatedAt,
		); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ListByJob retrieves all requirements produced by one processing job.
func (r *RequirementRepository) ListByJob(ctx context.Context, jobID string) ([]*Requirement, error) {
	query := `
		SELECT id, project_id, job_id, req_key, title, description, category,
			priority, source, acceptance_criteria, compliance, user_story,
			test_scenarios, dependencies, risks, created_at, updated_at
		FROM requirements WHERE job_id = $1
		ORDER BY req_key
	`
	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*Requirement
	for rows.Next() {
		req := &Requirement{}
		if err := rows.Scan(
			&req.ID, &req.ProjectID, &req.JobID, &req.ReqKey, &req.Title, &req.Description,
			&req.Category, &req.Priority, &req.Source, &req.AcceptanceCriteria,
			&req.Compliance, &req.UserStory, &req.TestScenarios,
			&req.Dependencies, &req.Risks, &req.CreatedAt, &req.UpdatedAt,
		); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// TestCaseRepository handles test case persistence.
type TestCaseRepository struct {
	db DB
}

// NewTestCaseRepository creates a new test case repository.
func NewTestCaseRepository(db DB) *TestCaseRepository {
	return &TestCaseRepository{db: db}
}

// Create persists a test case.
func (r *TestCaseRepository) Create(ctx context.Context, tc *TestCase) error {
	if tc.ID == uuid.Nil {
		tc.ID = uuid.New()
	}
	if tc.Status == "" {
		tc.Status = TestCaseStatusDraft
	}
	tc.CreatedAt = time.Now()
	tc.UpdatedAt = time.Now()

	query := `
		INSERT INTO test_cases (id, requirement_id, title, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		tc.ID, tc.RequirementID, tc.Title, tc.Description, tc.Status,
		tc.CreatedAt, tc.UpdatedAt,
	)
	return err
}

// ListByRequirement retrieves all test cases for a requirement.
func (r *TestCaseRepository) ListByRequirement(ctx context.Context, requirementID uuid.UUID) ([]*TestCase, error) {
	query := `
		SELECT id, requirement_id, title, description, status, created_at, updated_at
		FROM test_cases WHERE requirement_id = $1
		ORDER BY created_at, title
	`
	rows, err := r.db.QueryContext(ctx, query, requirementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*TestCase
	for rows.Next() {
		tc := &TestCase{}
		if err := rows.Scan(
			&tc.ID, &tc.RequirementID, &tc.Title, &tc.Description, &tc.Status,
			&tc.CreatedAt, &tc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}
