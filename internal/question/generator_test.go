package question

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

func newTestGenerator() *Generator {
	return NewGenerator(observability.Nop())
}

func TestGenerate_CannedTemplatesForKnownGaps(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps:  []string{domain.GapComplianceStandards, domain.GapRiskClassification},
		ImportantGaps: []string{domain.GapDeploymentRegions},
	}

	questions, _ := newTestGenerator().Generate(analysis, nil)
	require.Len(t, questions, 3)

	assert.Equal(t, domain.GapComplianceStandards, questions[0].ID)
	assert.Equal(t, domain.CategoryCritical, questions[0].Category)
	assert.Equal(t, domain.QuestionMultiple, questions[0].Type)
	assert.NotEmpty(t, questions[0].Options)

	assert.Equal(t, domain.GapRiskClassification, questions[1].ID)
	assert.Equal(t, domain.QuestionSingle, questions[1].Type)
	assert.Len(t, questions[1].Options, 3)

	assert.Equal(t, domain.GapDeploymentRegions, questions[2].ID)
	assert.Equal(t, domain.CategoryImportant, questions[2].Category)
}

func TestGenerate_PadsToMinimum(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps: []string{domain.GapComplianceStandards},
	}

	questions, _ := newTestGenerator().Generate(analysis, nil)
	require.Len(t, questions, 3)
	assert.Equal(t, "performance-expectations", questions[1].ID)
}

func TestGenerate_CapsAtMaximumCriticalFirst(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps: []string{
			domain.GapComplianceStandards, domain.GapRiskClassification,
			domain.GapTargetUsers, domain.GapDataHandling,
			domain.GapClinicalValidation, domain.GapInteroperability,
		},
		ImportantGaps: []string{domain.GapDeploymentRegions, "audit-logging", "backup-policy"},
		OptionalGaps:  []string{"branding", "localization", "training-materials"},
	}

	questions, _ := newTestGenerator().Generate(analysis, nil)
	require.Len(t, questions, 10)

	for i := 0; i < 6; i++ {
		assert.Equal(t, domain.CategoryCritical, questions[i].Category, "question %d", i)
	}
	// Optional overflow is dropped, never critical.
	for _, q := range questions {
		assert.NotEqual(t, "training-materials", q.ID)
	}
}

func TestGenerate_UnknownGapGetsGenericQuestion(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps: []string{"audit-logging"},
	}

	questions, _ := newTestGenerator().Generate(analysis, nil)
	require.NotEmpty(t, questions)

	q := questions[0]
	assert.Equal(t, "audit-logging", q.ID)
	assert.Equal(t, domain.QuestionTextarea, q.Type)
	assert.Contains(t, q.Question, "audit logging")
}

func TestGenerate_AnalysisFailureAsksForManualContext(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps: []string{domain.GapAnalysisFailed},
		Degraded:     true,
	}

	questions, _ := newTestGenerator().Generate(analysis, nil)
	require.NotEmpty(t, questions)
	assert.Equal(t, domain.GapAnalysisFailed, questions[0].ID)
	assert.Equal(t, domain.QuestionTextarea, questions[0].Type)
}

func TestGenerate_MergesDynamicQuestions(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps: []string{domain.GapComplianceStandards},
	}
	dynamic := []domain.GapQuestion{
		{
			Category: domain.CategoryCritical,
			Type:     domain.QuestionSingle,
			Question: "Which EHR vendor is in use?",
			Options:  []domain.QuestionOption{{Value: "epic", Label: "Epic"}},
		},
	}

	questions, resolver := newTestGenerator().Generate(analysis, dynamic)
	require.GreaterOrEqual(t, len(questions), 3)

	var dyn *domain.GapQuestion
	for i := range questions {
		if questions[i].Question == "Which EHR vendor is in use?" {
			dyn = &questions[i]
		}
	}
	require.NotNil(t, dyn)
	assert.Equal(t, "dynamic-question-0", dyn.ID)
	assert.Equal(t, "q0-opt0", dyn.Options[0].Value)
	assert.Equal(t, "epic", dyn.Options[0].OriginalValue)

	original, remapped := resolver.ResolveAnswer("q0-opt0")
	assert.True(t, remapped)
	assert.Equal(t, "epic", original)
}

func TestNormalizeDynamic_CollidingValuesStayUnique(t *testing.T) {
	dynamic := []domain.GapQuestion{
		{
			Question: "Primary deployment region?",
			Options:  []domain.QuestionOption{{Value: "usa", Label: "USA"}},
		},
		{
			Question: "Data residency region?",
			Options:  []domain.QuestionOption{{Value: "usa", Label: "USA"}},
		},
	}

	normalized, resolver := newTestGenerator().NormalizeDynamic(dynamic)
	require.Len(t, normalized, 2)

	v1 := normalized[0].Options[0].Value
	v2 := normalized[1].Options[0].Value
	assert.NotEqual(t, v1, v2)

	o1, _ := resolver.ResolveAnswer(v1)
	o2, _ := resolver.ResolveAnswer(v2)
	assert.Equal(t, "usa", o1)
	assert.Equal(t, "usa", o2)

	assert.Equal(t, "usa", normalized[0].Options[0].OriginalValue)
	assert.Equal(t, "usa", normalized[1].Options[0].OriginalValue)
}

func TestNormalizeDynamic_AssignsMissingIDsAndDefaults(t *testing.T) {
	dynamic := []domain.GapQuestion{
		{Question: "first"},
		{ID: "keep-me", Question: "second"},
		{Question: "third"},
	}

	normalized, _ := newTestGenerator().NormalizeDynamic(dynamic)
	assert.Equal(t, "dynamic-question-0", normalized[0].ID)
	assert.Equal(t, "keep-me", normalized[1].ID)
	assert.Equal(t, "dynamic-question-2", normalized[2].ID)
	assert.Equal(t, domain.CategoryOptional, normalized[0].Category)
	assert.Equal(t, domain.QuestionText, normalized[0].Type)
}

func TestResolveAnswer_PassthroughForUnmappedValues(t *testing.T) {
	_, resolver := newTestGenerator().NormalizeDynamic(nil)

	original, remapped := resolver.ResolveAnswer("hipaa")
	assert.False(t, remapped)
	assert.Equal(t, "hipaa", original)
}

func TestGenerate_OptionValuesUniqueAcrossWholeSet(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps:  []string{domain.GapComplianceStandards, domain.GapInteroperability},
		ImportantGaps: []string{domain.GapDeploymentRegions},
	}
	dynamic := []domain.GapQuestion{
		{
			Category: domain.CategoryImportant,
			Question: "Preferred messaging standard?",
			Options: []domain.QuestionOption{
				{Value: "hl7-fhir", Label: "HL7/FHIR"}, // collides with canned values pre-remap
				{Value: "dicom", Label: "DICOM"},
			},
		},
	}

	questions, _ := newTestGenerator().Generate(analysis, dynamic)

	seen := make(map[string]string)
	for _, q := range questions {
		for _, opt := range q.Options {
			prev, dup := seen[opt.Value]
			require.False(t, dup, "value %q used by both %q and %q", opt.Value, prev, q.ID)
			seen[opt.Value] = q.ID
		}
	}
}

func TestGenerate_NeverExceedsMaxWithManyDynamics(t *testing.T) {
	analysis := &domain.GapAnalysis{
		CriticalGaps: []string{domain.GapComplianceStandards},
	}
	var dynamic []domain.GapQuestion
	for i := 0; i < 15; i++ {
		dynamic = append(dynamic, domain.GapQuestion{
			Category: domain.CategoryImportant,
			Question: fmt.Sprintf("dynamic %d", i),
		})
	}

	questions, _ := newTestGenerator().Generate(analysis, dynamic)
	assert.Len(t, questions, 10)
	assert.Equal(t, domain.GapComplianceStandards, questions[0].ID)
}
