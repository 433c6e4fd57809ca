// Package pipeline orchestrates the document-to-requirements flow: convert,
// extract, analyze, question, and on a second call synthesize and persist.
// Stages run strictly sequentially; progress events are emitted per stage and
// polled by clients independently of the processing goroutine.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
	"github.com/healthspec-ai/healthspec/internal/question"
	"github.com/healthspec-ai/healthspec/internal/storage"
)

// ConverterFactory builds a fresh converter per job. Converters hold job
// scoped temp directory state and must not be shared across jobs.
type ConverterFactory func() domain.Converter

// TextExtractor extracts aggregated text from page images.
type TextExtractor interface {
	Extract(ctx context.Context, jobID string, images []domain.PageImage) (*domain.ExtractedContent, error)
}

// GapAnalyzer analyzes extracted content for missing information.
type GapAnalyzer interface {
	Analyze(ctx context.Context, content *domain.ExtractedContent) (*domain.GapAnalysis, []domain.GapQuestion)
}

// QuestionGenerator builds the bounded question set.
type QuestionGenerator interface {
	Generate(analysis *domain.GapAnalysis, dynamic []domain.GapQuestion) ([]domain.GapQuestion, question.OptionResolver)
}

// RequirementSynthesizer turns content and answers into requirements. The
// bool reports whether a fallback produced the result.
type RequirementSynthesizer interface {
	Generate(ctx context.Context, content *domain.ExtractedContent, questions []domain.GapQuestion, answers map[string]domain.Answer) ([]domain.GeneratedRequirement, bool)
}

// RequirementStore persists requirements.
type RequirementStore interface {
	Create(ctx context.Context, req *storage.Requirement) error
}

// TestCaseStore persists test cases.
type TestCaseStore interface {
	Create(ctx context.Context, tc *storage.TestCase) error
}

// defaultStateTTL bounds how long a job's intermediate state is retained when
// no answers arrive. Matches the progress tracker's default retention.
const defaultStateTTL = 6 * time.Hour

// jobState carries intermediate results between Run and Synthesize.
type jobState struct {
	job       domain.ProcessingJob
	content   *domain.ExtractedContent
	analysis  *domain.GapAnalysis
	questions []domain.GapQuestion
	resolver  question.OptionResolver
	createdAt time.Time
}

// Service wires the pipeline stages together.
type Service struct {
	newConverter ConverterFactory
	extractor    TextExtractor
	analyzer     GapAnalyzer
	generator    QuestionGenerator
	synthesizer  RequirementSynthesizer
	requirements RequirementStore
	testCases    TestCaseStore
	progress     domain.ProgressSink
	logger       *observability.Logger
	stateTTL     time.Duration

	mu   sync.Mutex
	jobs map[string]*jobState
}

// Options configure a pipeline service.
type Options struct {
	Converter    ConverterFactory
	Extractor    TextExtractor
	Analyzer     GapAnalyzer
	Generator    QuestionGenerator
	Synthesizer  RequirementSynthesizer
	Requirements RequirementStore
	TestCases    TestCaseStore
	Progress     domain.ProgressSink
	Logger       *observability.Logger
	StateTTL     time.Duration // retention for unanswered job state; default 6h
}

// NewService creates a pipeline service.
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = defaultStateTTL
	}
	return &Service{
		newConverter: opts.Converter,
		extractor:    opts.Extractor,
		analyzer:     opts.Analyzer,
		generator:    opts.Generator,
		synthesizer:  opts.Synthesizer,
		requirements: opts.Requirements,
		testCases:    opts.TestCases,
		progress:     opts.Progress,
		logger:       opts.Logger,
		stateTTL:     opts.StateTTL,
		jobs:         make(map[string]*jobState),
	}
}

// Run executes convert, extract, analyze, and question generation for one job.
// Pre-check failures return an error before any progress event is emitted;
// after that, stage degradation is reported through progress events and the
// flow continues to a terminal completed event carrying the analysis and
// question set.
func (s *Service) Run(ctx context.Context, job domain.ProcessingJob, filePath string) error {
	if job.ProjectID == "" {
		return domain.ValidationError("job has no project", nil)
	}
	if _, err := os.Stat(filePath); err != nil {
		return domain.ValidationError("uploaded file not found", err)
	}

	log := s.logger.WithJob(job.JobID)

	s.emit(ctx, job.JobID, domain.ProgressEvent{
		Step:    domain.StageConvert,
		Status:  domain.StatusProcessing,
		Message: fmt.Sprintf("Converting %s to page images", job.FileName),
	})

	converter := s.newConverter()
	defer func() {
		if err := converter.Cleanup(); err != nil {
			log.Warn().Err(err).Msg("Temp image cleanup failed")
		}
	}()

	result, err := converter.Convert(ctx, filePath, job.FileType)
	if err != nil {
		s.emit(ctx, job.JobID, domain.ProgressEvent{
			Step:    domain.StageConvert,
			Status:  domain.StatusError,
			Message: fmt.Sprintf("Conversion failed: %v", err),
		})
		return domain.ConversionError("document conversion failed", err)
	}

	s.emit(ctx, job.JobID, domain.ProgressEvent{
		Step:    domain.StageConvert,
		Status:  domain.StatusCompleted,
		Current: result.PageCount,
		Total:   result.PageCount,
		Message: fmt.Sprintf("Converted %d pages", result.PageCount),
		Details: map[string]any{"placeholder": result.Placeholder},
	})

	content, err := s.extractor.Extract(ctx, job.JobID, result.Images)
	if err != nil {
		s.emit(ctx, job.JobID, domain.ProgressEvent{
			Step:    domain.StageExtract,
			Status:  domain.StatusError,
			Message: fmt.Sprintf("Extraction failed: %v", err),
		})
		return err
	}

	s.emit(ctx, job.JobID, domain.ProgressEvent{
		Step:    domain.StageAnalyze,
		Status:  domain.StatusProcessing,
		Message: "Analyzing document for compliance and requirements gaps",
	})

	analysis, dynamic := s.analyzer.Analyze(ctx, content)

	s.emit(ctx, job.JobID, domain.ProgressEvent{
		Step:    domain.StageAnalyze,
		Status:  domain.StatusCompleted,
		Message: fmt.Sprintf("Analysis complete: %d critical gaps, %d important gaps", len(analysis.CriticalGaps), len(analysis.ImportantGaps)),
		Details: map[string]any{"degraded": analysis.Degraded, "confidence": analysis.Confidence},
	})

	questions, resolver := s.generator.Generate(analysis, dynamic)

	s.mu.Lock()
	s.evictStaleLocked()
	s.jobs[job.JobID] = &jobState{
		job:       job,
		content:   content,
		analysis:  analysis,
		questions: questions,
		resolver:  resolver,
		createdAt: time.Now(),
	}
	s.mu.Unlock()

	s.emit(ctx, job.JobID, domain.ProgressEvent{
		Step:    domain.StageQuestions,
		Status:  domain.StatusCompleted,
		Message: fmt.Sprintf("Generated %d clarification questions", len(questions)),
		Details: map[string]any{
			"analysis":  analysis,
			"questions": questions,
			"degraded":  analysis.Degraded,
		},
	})

	log.Info().
		Int("pages", result.PageCount).
		Int("questions", len(questions)).
		Bool("degraded", analysis.Degraded).
		Msg("Document processing complete, awaiting answers")

	return nil
}

// Questions returns the question set generated for a job.
func (s *Service) Questions(jobID string) ([]domain.GapQuestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return state.questions, true
}

// SynthesisResult reports the outcome of requirement synthesis. Degraded is
// true when the requirements came from the line-scan fallback rather than
// parsed model output.
type SynthesisResult struct {
	Requirements []domain.GeneratedRequirement `json:"requirements"`
	SavedCount   int                           `json:"savedCount"`
	TotalCount   int                           `json:"totalCount"`
	Degraded     bool                          `json:"degraded"`
}

// Synthesize generates requirements from the job's content and the supplied
// answers, then persists them. Per-requirement persistence failures are logged
// and skipped; the terminal event reports how many of the generated
// requirements were saved.
func (s *Service) Synthesize(ctx context.Context, jobID string, answers map[string]domain.Answer) (*SynthesisResult, error) {
	s.mu.Lock()
	state, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ValidationError("unknown job", nil)
	}

	log := s.logger.WithJob(jobID)

	s.emit(ctx, jobID, domain.ProgressEvent{
		Step:    domain.StageSynthesize,
		Status:  domain.StatusProcessing,
		Message: "Generating requirements",
	})

	resolved := s.resolveAnswers(state.resolver, answers)
	requirements, degraded := s.synthesizer.Generate(ctx, state.content, state.questions, resolved)

	s.emit(ctx, jobID, domain.ProgressEvent{
		Step:    domain.StageSynthesize,
		Status:  domain.StatusCompleted,
		Current: len(requirements),
		Total:   len(requirements),
		Message: fmt.Sprintf("Generated %d requirements", len(requirements)),
		Details: map[string]any{"degraded": degraded},
	})

	saved := s.persist(ctx, state, requirements)

	s.emit(ctx, jobID, domain.ProgressEvent{
		Step:    domain.StagePersist,
		Status:  domain.StatusCompleted,
		Current: saved,
		Total:   len(requirements),
		Message: fmt.Sprintf("%d of %d requirements saved", saved, len(requirements)),
		Details: map[string]any{"requirements": requirements, "degraded": degraded},
	})

	// The job is finished; release its buffered content and analysis.
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()

	log.Info().
		Int("generated", len(requirements)).
		Int("saved", saved).
		Bool("degraded", degraded).
		Msg("Requirement synthesis complete")

	return &SynthesisResult{
		Requirements: requirements,
		SavedCount:   saved,
		TotalCount:   len(requirements),
		Degraded:     degraded,
	}, nil
}

// evictStaleLocked drops job state whose questions were never answered within
// the retention window. Caller holds s.mu.
func (s *Service) evictStaleLocked() {
	cutoff := time.Now().Add(-s.stateTTL)
	for id, state := range s.jobs {
		if state.createdAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

// resolveAnswers maps remapped option values back to their original semantic
// values before they reach the synthesizer.
func (s *Service) resolveAnswers(resolver question.OptionResolver, answers map[string]domain.Answer) map[string]domain.Answer {
	if len(answers) == 0 || resolver == nil {
		return answers
	}

	out := make(map[string]domain.Answer, len(answers))
	for id, ans := range answers {
		if ans.Text != "" {
			if original, ok := resolver.ResolveAnswer(ans.Text); ok {
				ans.Text = original
			}
		}
		if len(ans.Values) > 0 {
			values := make([]string, len(ans.Values))
			for i, v := range ans.Values {
				values[i], _ = resolver.ResolveAnswer(v)
			}
			ans.Values = values
		}
		out[id] = ans
	}
	return out
}

// persist saves requirements and their derived test cases, skipping failures.
func (s *Service) persist(ctx context.Context, state *jobState, requirements []domain.GeneratedRequirement) int {
	if s.requirements == nil {
		return 0
	}

	log := s.logger.WithJob(state.job.JobID).WithStage(domain.StagePersist)

	projectID, err := uuid.Parse(state.job.ProjectID)
	if err != nil {
		log.Warn().Err(err).Str("project_id", state.job.ProjectID).Msg("Invalid project id, skipping persistence")
		return 0
	}

	saved := 0
	for _, req := range requirements {
		rec, err := storage.FromGenerated(projectID, state.job.JobID, req)
		if err != nil {
			log.Warn().Err(err).Str("req", req.ID).Msg("Failed to encode requirement, skipping")
			continue
		}
		if err := s.requirements.Create(ctx, rec); err != nil {
			log.Warn().Err(err).Str("req", req.ID).Msg("Failed to save requirement, skipping")
			continue
		}
		saved++

		if s.testCases == nil {
			continue
		}
		cases, err := storage.TestCasesFrom(rec)
		if err != nil {
			log.Warn().Err(err).Str("req", req.ID).Msg("Failed to derive test cases")
			continue
		}
		for i := range cases {
			if err := s.testCases.Create(ctx, &cases[i]); err != nil {
				log.Warn().Err(err).Str("req", req.ID).Msg("Failed to save test case")
			}
		}
	}
	return saved
}

func (s *Service) emit(ctx context.Context, jobID string, event domain.ProgressEvent) {
	if s.progress == nil {
		return
	}
	event.JobID = jobID
	s.progress.Emit(ctx, event)
}
