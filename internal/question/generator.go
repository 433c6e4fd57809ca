// Package question turns gap analysis results into the bounded interactive
// question set presented to the user. Questions come from two sources: canned
// templates keyed by well-known gap identifiers, and free-form questions the
// analyzer suggested, which are normalized so ids and option values are unique
// across the whole set.
package question

import (
	"fmt"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

const (
	minQuestions = 3
	maxQuestions = 10
)

// Generator builds question sets.
type Generator struct {
	logger *observability.Logger
}

// NewGenerator creates a question generator.
func NewGenerator(logger *observability.Logger) *Generator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Generator{logger: logger}
}

// OptionResolver maps job-unique option values back to the semantic value the
// option was generated from. Needed when persisting answers to remapped
// dynamic questions.
type OptionResolver map[string]string

// ResolveAnswer returns the original semantic value for a remapped option
// value. Values that were never remapped resolve to themselves.
func (r OptionResolver) ResolveAnswer(value string) (string, bool) {
	if original, ok := r[value]; ok {
		return original, true
	}
	return value, false
}

// Generate produces the question set for a job: canned questions for the
// analysis gap lists merged with normalized dynamic questions, critical first,
// bounded to [3, 10].
func (g *Generator) Generate(analysis *domain.GapAnalysis, dynamic []domain.GapQuestion) ([]domain.GapQuestion, OptionResolver) {
	normalized, resolver := g.NormalizeDynamic(dynamic)

	covered := make(map[string]bool, len(normalized))
	for _, q := range normalized {
		covered[q.ID] = true
	}

	var critical, important, optional []domain.GapQuestion

	appendGaps := func(ids []string, category domain.QuestionCategory, bucket *[]domain.GapQuestion) {
		for _, id := range ids {
			if covered[id] {
				continue
			}
			covered[id] = true
			q, ok := cannedTemplates[id]
			if !ok {
				q = genericQuestion(id, category)
			}
			q.Category = category
			*bucket = append(*bucket, q)
		}
	}

	appendGaps(analysis.CriticalGaps, domain.CategoryCritical, &critical)
	appendGaps(analysis.ImportantGaps, domain.CategoryImportant, &important)
	appendGaps(analysis.OptionalGaps, domain.CategoryOptional, &optional)

	for _, q := range normalized {
		switch q.Category {
		case domain.CategoryCritical:
			critical = append(critical, q)
		case domain.CategoryImportant:
			important = append(important, q)
		default:
			optional = append(optional, q)
		}
	}

	questions := make([]domain.GapQuestion, 0, len(critical)+len(important)+len(optional))
	questions = append(questions, critical...)
	questions = append(questions, important...)
	questions = append(questions, optional...)

	if len(questions) > maxQuestions {
		questions = questions[:maxQuestions]
	}
	for _, pad := range paddingQuestions {
		if len(questions) >= minQuestions {
			break
		}
		if covered[pad.ID] {
			continue
		}
		covered[pad.ID] = true
		questions = append(questions, pad)
	}

	g.logger.Debug().
		Int("critical", len(critical)).
		Int("important", len(important)).
		Int("optional", len(optional)).
		Int("total", len(questions)).
		Msg("Generated question set")

	return questions, resolver
}

// NormalizeDynamic enforces global invariants on analyzer-supplied questions:
// every question gets an id, and every option value is remapped to the
// deterministic form q<questionIndex>-opt<optionIndex> so values stay unique
// even when separate questions reuse the same literal value. The original
// value is retained on the option and in the returned resolver.
func (g *Generator) NormalizeDynamic(questions []domain.GapQuestion) ([]domain.GapQuestion, OptionResolver) {
	resolver := make(OptionResolver)
	if len(questions) == 0 {
		return nil, resolver
	}

	out := make([]domain.GapQuestion, len(questions))
	for qi, q := range questions {
		if q.ID == "" {
			q.ID = fmt.Sprintf("dynamic-question-%d", qi)
		}
		if q.Category == "" {
			q.Category = domain.CategoryOptional
		}
		if q.Type == "" {
			q.Type = domain.QuestionText
		}

		if len(q.Options) > 0 {
			options := make([]domain.QuestionOption, len(q.Options))
			for oi, opt := range q.Options {
				unique := fmt.Sprintf("q%d-opt%d", qi, oi)
				resolver[unique] = opt.Value
				opt.OriginalValue = opt.Value
				opt.Value = unique
				options[oi] = opt
			}
			q.Options = options
		}
		out[qi] = q
	}
	return out, resolver
}
