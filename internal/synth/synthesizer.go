// Package synth turns extracted document text and gap-filling answers into
// structured requirement records. Synthesis never fails the pipeline: when the
// model output cannot be parsed, a deterministic line-scan fallback guarantees
// at least one requirement.
package synth

import (
	"context"
	"fmt"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/llm"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

// Synthesizer generates requirements from document content and answers.
type Synthesizer struct {
	client domain.CompletionClient
	logger *observability.Logger
}

// NewSynthesizer creates a requirement synthesizer.
func NewSynthesizer(client domain.CompletionClient, logger *observability.Logger) *Synthesizer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Synthesizer{client: client, logger: logger}
}

// rawRequirement is the tolerant shape requirements are unmarshalled into
// before normalization.
type rawRequirement struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Priority           string   `json:"priority"`
	Source             string   `json:"source"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Compliance         []string `json:"compliance"`
	UserStory          string   `json:"userStory"`
	TestScenarios      []string `json:"testScenarios"`
	Dependencies       []string `json:"dependencies"`
	Risks              []string `json:"risks"`
}

// Generate synthesizes requirements from the extracted content and the user's
// answers to the gap questions. It always returns at least one requirement.
// The second return value reports whether the line-scan fallback produced the
// result instead of parsed model output.
func (s *Synthesizer) Generate(ctx context.Context, content *domain.ExtractedContent, questions []domain.GapQuestion, answers map[string]domain.Answer) ([]domain.GeneratedRequirement, bool) {
	prompt := synthesisPrompt(content, questions, answers)

	resp, err := s.client.Complete(ctx, prompt, domain.CompletionOptions{
		Temperature: 0.3,
		MaxTokens:   8192,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Requirement synthesis call failed, using line-scan fallback")
		return s.normalize(lineScanFallback(content.Text)), true
	}

	raw, tier := parseRequirements(resp)
	if raw == nil {
		s.logger.Warn().Msg("Requirement synthesis output unparseable, using line-scan fallback")
		return s.normalize(lineScanFallback(content.Text)), true
	}

	s.logger.Info().
		Int("requirements", len(raw)).
		Str("parse_tier", tier).
		Msg("Requirement synthesis complete")

	return s.normalize(raw), false
}

// parseRequirements tries the two JSON tiers: an object with a requirements
// array, then a bare array. Returns nil when neither applies.
func parseRequirements(resp string) ([]rawRequirement, string) {
	var obj struct {
		Requirements []rawRequirement `json:"requirements"`
	}
	if err := llm.ParseObject(resp, &obj); err == nil && obj.Requirements != nil {
		return obj.Requirements, "object"
	}

	var arr []rawRequirement
	if err := llm.ParseArray(resp, &arr); err == nil {
		return arr, "array"
	}

	return nil, ""
}

// normalize assigns sequential ids and enforces the structural guarantees
// every output requirement carries.
func (s *Synthesizer) normalize(raw []rawRequirement) []domain.GeneratedRequirement {
	if len(raw) == 0 {
		raw = []rawRequirement{genericRequirement()}
	}

	out := make([]domain.GeneratedRequirement, 0, len(raw))
	for i, r := range raw {
		req := domain.GeneratedRequirement{
			ID:                 fmt.Sprintf("REQ-%03d", i+1),
			Title:              r.Title,
			Description:        r.Description,
			Category:           domain.NormalizeRequirementCategory(r.Category),
			Priority:           domain.NormalizeRequirementPriority(r.Priority),
			Source:             r.Source,
			AcceptanceCriteria: r.AcceptanceCriteria,
			Compliance:         r.Compliance,
			UserStory:          r.UserStory,
			TestScenarios:      r.TestScenarios,
			Dependencies:       r.Dependencies,
			Risks:              r.Risks,
		}

		if req.Title == "" {
			req.Title = fmt.Sprintf("Requirement %d", i+1)
		}
		if req.Description == "" {
			req.Description = req.Title
		}
		if req.Source == "" {
			req.Source = "document analysis"
		}
		if len(req.AcceptanceCriteria) == 0 {
			req.AcceptanceCriteria = []string{fmt.Sprintf("Verify that the system satisfies: %s", req.Title)}
		}
		if len(req.TestScenarios) == 0 {
			req.TestScenarios = []string{fmt.Sprintf("Test that %s behaves as described under normal operation", req.Title)}
		}
		// Healthcare context defaults toward over-inclusive tagging.
		if len(req.Compliance) == 0 {
			req.Compliance = []string{"HIPAA", "FDA"}
		}

		out = append(out, req)
	}
	return out
}
