// Package storage provides database models and repositories for persisting
// generated requirements and their derived test cases.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/healthspec-ai/healthspec/internal/domain"
)

// TestCaseStatus represents the workflow status of a test case.
type TestCaseStatus string

const (
	TestCaseStatusDraft  TestCaseStatus = "draft"
	TestCaseStatusReady  TestCaseStatus = "ready"
	TestCaseStatusPassed TestCaseStatus = "passed"
	TestCaseStatusFailed TestCaseStatus = "failed"
)

// Project groups requirements generated from one or more documents.
type Project struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Requirement is the persisted form of a generated requirement. List-valued
// fields are stored as JSON columns.
type Requirement struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	ProjectID          uuid.UUID       `json:"project_id" db:"project_id"`
	JobID              string          `json:"job_id" db:"job_id"`
	ReqKey             string          `json:"req_key" db:"req_key"` // job-local key, e.g. REQ-001
	Title              string          `json:"title" db:"title"`
	Description        string          `json:"description" db:"description"`
	Category           string          `json:"category" db:"category"`
	Priority           string          `json:"priority" db:"priority"`
	Source             string          `json:"source" db:"source"`
	AcceptanceCriteria json.RawMessage `json:"acceptance_criteria" db:"acceptance_criteria"`
	Compliance         json.RawMessage `json:"compliance" db:"compliance"`
	UserStory          string          `json:"user_story" db:"user_story"`
	TestScenarios      json.RawMessage `json:"test_scenarios" db:"test_scenarios"`
	Dependencies       json.RawMessage `json:"dependencies" db:"dependencies"`
	Risks              json.RawMessage `json:"risks" db:"risks"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// TestCase is one executable check derived from a requirement's test scenarios.
type TestCase struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	RequirementID uuid.UUID      `json:"requirement_id" db:"requirement_id"`
	Title         string         `json:"title" db:"title"`
	Description   string         `json:"description" db:"description"`
	Status        TestCaseStatus `json:"status" db:"status"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// FromGenerated converts a pipeline requirement into its persisted form.
func FromGenerated(projectID uuid.UUID, jobID string, req domain.GeneratedRequirement) (*Requirement, error) {
	marshal := func(v []string) (json.RawMessage, error) {
		if v == nil {
			v = []string{}
		}
		return json.Marshal(v)
	}

	acceptance, err := marshal(req.AcceptanceCriteria)
	if err != nil {
		return nil, err
	}
	compliance, err := marshal(req.Compliance)
	if err != nil {
		return nil, err
	}
	scenarios, err := marshal(req.TestScenarios)
	if err != nil {
		return nil, err
	}
	dependencies, err := marshal(req.Dependencies)
	if err != nil {
		return nil, err
	}
	risks, err := marshal(req.Risks)
	if err != nil {
		return nil, err
	}

	return &Requirement{
		ProjectID:          projectID,
		JobID:              jobID,
		ReqKey:             req.ID,
		Title:              req.Title,
		Description:        req.Description,
		Category:           string(req.Category),
		Priority:           string(req.Priority),
		Source:             req.Source,
		AcceptanceCriteria: acceptance,
		Compliance:         compliance,
		UserStory:          req.UserStory,
		TestScenarios:      scenarios,
		Dependencies:       dependencies,
		Risks:              risks,
	}, nil
}

// ToGenerated converts a persisted requirement back to the pipeline shape.
func (r *Requirement) ToGenerated() (domain.GeneratedRequirement, error) {
	unmarshal := func(raw json.RawMessage) ([]string, error) {
		if len(raw) == 0 {
			return nil, nil
		}
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}

	acceptance, err := unmarshal(r.AcceptanceCriteria)
	if err != nil {
		return domain.GeneratedRequirement{}, err
	}
	compliance, err := unmarshal(r.Compliance)
	if err != nil {
		return domain.GeneratedRequirement{}, err
	}
	scenarios, err := unmarshal(r.TestScenarios)
	if err != nil {
		return domain.GeneratedRequirement{}, err
	}
	dependencies, err := unmarshal(r.Dependencies)
	if err != nil {
		return domain.GeneratedRequirement{}, err
	}
	risks, err := unmarshal(r.Risks)
	if err != nil {
		return domain.GeneratedRequirement{}, err
	}

	return domain.GeneratedRequirement{
		ID:                 r.ReqKey,
		Title:              r.Title,
		Description:        r.Description,
		Category:           domain.RequirementCategory(r.Category),
		Priority:           domain.RequirementPriority(r.Priority),
		Source:             r.Source,
		AcceptanceCriteria: acceptance,
		Compliance:         compliance,
		UserStory:          r.UserStory,
		TestScenarios:      scenarios,
		Dependencies:       dependencies,
		Risks:              risks,
	}, nil
}

// TestCasesFrom derives draft test cases from a persisted requirement's
// scenarios.
func TestCasesFrom(req *Requirement) ([]TestCase, error) {
	var scenarios []string
	if len(req.TestScenarios) > 0 {
		if err := json.Unmarshal(req.TestScenarios, &scenarios); err != nil {
			return nil, err
		}
	}

	cases := make([]TestCase, 0, len(scenarios))
	for i, scenario := range scenarios {
		cases = append(cases, TestCase{
			RequirementID: req.ID,
			Title:         fmt.Sprintf("%s test %d", req.ReqKey, i+1),
			Description:   scenario,
			Status:        TestCaseStatusDraft,
		})
	}
	return cases, nil
}
