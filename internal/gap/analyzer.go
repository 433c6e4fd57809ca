// Package gap analyzes extracted document text for missing compliance and
// requirements information. Analysis never fails the pipeline: call or parse
// errors degrade to a low-confidence result that flags the failure itself as
// the critical gap.
package gap

import (
	"context"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/llm"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

const degradedConfidence = 0.3

// maxSeverityGaps bounds the combined critical+important gap count so the
// question set downstream stays answerable.
const maxSeverityGaps = 10

// Analyzer runs the gap analysis completion and enforces structural invariants
// on its output.
type Analyzer struct {
	client domain.CompletionClient
	logger *observability.Logger
}

// NewAnalyzer creates a gap analyzer.
func NewAnalyzer(client domain.CompletionClient, logger *observability.Logger) *Analyzer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Analyzer{client: client, logger: logger}
}

// analysisResponse is the raw shape the model is asked to produce. Suggested
// questions ride along with the analysis and are normalized downstream.
type analysisResponse struct {
	domain.GapAnalysis
	SuggestedQuestions []domain.GapQuestion `json:"suggestedQuestions"`
}

// Analyze inspects the document for compliance and requirements gaps. It
// returns the analysis plus any model-suggested clarification questions.
// It never returns an error: failures produce a degraded analysis whose
// critical gap list names the failure.
func (a *Analyzer) Analyze(ctx context.Context, content *domain.ExtractedContent) (*domain.GapAnalysis, []domain.GapQuestion) {
	resp, err := a.client.Complete(ctx, analysisPrompt(content), domain.CompletionOptions{
		Temperature: 0.2,
		MaxTokens:   4096,
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("Gap analysis call failed, using degraded result")
		return a.degraded(content), nil
	}

	var parsed analysisResponse
	if err := llm.ParseObject(resp, &parsed); err != nil {
		a.logger.Warn().Err(err).Msg("Gap analysis parse failed, using degraded result")
		return a.degraded(content), nil
	}

	analysis := parsed.GapAnalysis
	analysis.TotalPages = content.Metadata.TotalPages
	analysis.Degraded = false

	a.enforceInvariants(&analysis)

	a.logger.Info().
		Str("project_type", analysis.ProjectType).
		Int("critical_gaps", len(analysis.CriticalGaps)).
		Int("important_gaps", len(analysis.ImportantGaps)).
		Float64("confidence", analysis.Confidence).
		Msg("Gap analysis complete")

	return &analysis, parsed.SuggestedQuestions
}

// degraded builds the fallback analysis used when the model cannot be consulted.
func (a *Analyzer) degraded(content *domain.ExtractedContent) *domain.GapAnalysis {
	return &domain.GapAnalysis{
		ProjectType:  "unknown",
		CriticalGaps: []string{domain.GapAnalysisFailed},
		Confidence:   degradedConfidence,
		TotalPages:   content.Metadata.TotalPages,
		Degraded:     true,
	}
}

// enforceInvariants appends structurally required gaps the model omitted and
// bounds the severity lists.
func (a *Analyzer) enforceInvariants(analysis *domain.GapAnalysis) {
	if len(analysis.ComplianceStandards) == 0 && !analysis.HasGap(domain.GapComplianceStandards) {
		analysis.CriticalGaps = append(analysis.CriticalGaps, domain.GapComplianceStandards)
	}
	if analysis.IsDeviceLike() && analysis.RiskLevel == "" && !analysis.HasGap(domain.GapRiskClassification) {
		analysis.CriticalGaps = append(analysis.CriticalGaps, domain.GapRiskClassification)
	}
	if len(analysis.Regions) == 0 && !analysis.HasGap(domain.GapDeploymentRegions) {
		analysis.ImportantGaps = append(analysis.ImportantGaps, domain.GapDeploymentRegions)
	}

	// Critical gaps always survive; important gaps absorb the overflow.
	if over := len(analysis.CriticalGaps) + len(analysis.ImportantGaps) - maxSeverityGaps; over > 0 {
		keep := len(analysis.ImportantGaps) - over
		if keep < 0 {
			keep = 0
		}
		analysis.ImportantGaps = analysis.ImportantGaps[:keep]
	}
}
