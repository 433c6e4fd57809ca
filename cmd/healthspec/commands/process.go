package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/healthspec-ai/healthspec/cmd/healthspec/ui"
	"github.com/healthspec-ai/healthspec/internal/config"
	"github.com/healthspec-ai/healthspec/internal/convert"
	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/extract"
	"github.com/healthspec-ai/healthspec/internal/gap"
	"github.com/healthspec-ai/healthspec/internal/llm"
	"github.com/healthspec-ai/healthspec/internal/observability"
	"github.com/healthspec-ai/healthspec/internal/pipeline"
	"github.com/healthspec-ai/healthspec/internal/question"
	"github.com/healthspec-ai/healthspec/internal/storage"
	"github.com/healthspec-ai/healthspec/internal/synth"
)

var (
	processFilePath    string
	processProjectID   string
	processAnswersPath string
	processOutputPath  string
	processDBPath      string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a document into requirements",
	Long: `Process a healthcare software document through the full pipeline: convert
to page images, extract text, analyze for gaps, and generate clarification
questions. When an answers file is supplied the pipeline continues through
requirement synthesis and writes the generated requirements as JSON.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processFilePath, "file", "f", "", "Path to document (required)")
	processCmd.Flags().StringVarP(&processProjectID, "project", "p", "", "Project UUID (generated when omitted)")
	processCmd.Flags().StringVarP(&processAnswersPath, "answers", "a", "", "Path to JSON answers file; enables synthesis")
	processCmd.Flags().StringVarP(&processOutputPath, "output", "o", "", "Output path for generated JSON (default stdout)")
	processCmd.Flags().StringVar(&processDBPath, "db", "", "SQLite database path; enables persistence")
	processCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := "warn"
	if verbose {
		logLevel = cfg.Observability.LogLevel
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       logLevel,
		Format:      "console",
		ServiceName: "healthspec",
	})

	client, err := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		VisionModel: cfg.LLM.VisionModel,
		BaseURL:     cfg.LLM.BaseURL,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("create completion client: %w", err)
	}

	if processProjectID == "" {
		processProjectID = uuid.NewString()
	} else if _, err := uuid.Parse(processProjectID); err != nil {
		return fmt.Errorf("invalid project id %q: %w", processProjectID, err)
	}

	var requirementStore pipeline.RequirementStore
	var testCaseStore pipeline.TestCaseStore
	if processDBPath != "" {
		db, err := storage.Open("sqlite", processDBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := storage.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("apply database schema: %w", err)
		}
		requirementStore = storage.NewRequirementRepository(db)
		testCaseStore = storage.NewTestCaseRepository(db)
	}

	sink := &terminalSink{}

	svc := pipeline.NewService(pipeline.Options{
		Converter: func() domain.Converter {
			return convert.NewConverter(convert.Options{
				DPI:         cfg.Pipeline.TargetDPI,
				TargetWidth: cfg.Pipeline.TargetWidth,
				MaxPages:    cfg.Pipeline.MaxPages,
				SofficePath: cfg.Pipeline.SofficePath,
				TempRoot:    cfg.Pipeline.TempDir,
				Logger:      logger,
			})
		},
		Extractor: extract.NewExtractor(extract.Options{
			Client:      client,
			Progress:    sink,
			Logger:      logger,
			Concurrency: cfg.Pipeline.ExtractionConcurrency,
			PageTimeout: cfg.Pipeline.PageCallTimeout,
		}),
		Analyzer:     gap.NewAnalyzer(client, logger),
		Generator:    question.NewGenerator(logger),
		Synthesizer:  synth.NewSynthesizer(client, logger),
		Requirements: requirementStore,
		TestCases:    testCaseStore,
		Progress:     sink,
		Logger:       logger,
		StateTTL:     cfg.Progress.TTL,
	})

	job := domain.ProcessingJob{
		JobID:     uuid.NewString(),
		ProjectID: processProjectID,
		FileName:  filepath.Base(processFilePath),
		CreatedAt: time.Now(),
	}

	ui.Section("Document Processing")
	ui.Info("File: %s", processFilePath)
	ui.Info("Project: %s", processProjectID)

	if err := svc.Run(ctx, job, processFilePath); err != nil {
		return fmt.Errorf("process document: %w", err)
	}

	questions, _ := svc.Questions(job.JobID)

	if processAnswersPath == "" {
		ui.Success("Generated %d clarification questions", len(questions))
		return writeOutput(map[string]any{
			"jobId":     job.JobID,
			"projectId": processProjectID,
			"questions": questions,
		})
	}

	answers, err := loadAnswers(processAnswersPath)
	if err != nil {
		return err
	}

	result, err := svc.Synthesize(ctx, job.JobID, answers)
	if err != nil {
		return fmt.Errorf("synthesize requirements: %w", err)
	}

	ui.Success("Generated %d requirements (%d saved)", result.TotalCount, result.SavedCount)
	return writeOutput(map[string]any{
		"jobId":        job.JobID,
		"projectId":    processProjectID,
		"questions":    questions,
		"requirements": result.Requirements,
		"savedCount":   result.SavedCount,
		"totalCount":   result.TotalCount,
		"degraded":     result.Degraded,
	})
}

// loadAnswers reads a question-id to answer map from a JSON file.
func loadAnswers(path string) (map[string]domain.Answer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers file: %w", err)
	}
	var answers map[string]domain.Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parse answers file: %w", err)
	}
	return answers, nil
}

func writeOutput(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')

	if processOutputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(processOutputPath, data, 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	ui.Success("Output written to %s", processOutputPath)
	return nil
}

// terminalSink renders pipeline progress events on the terminal. Extraction
// progress drives a page-count progress bar; other stages print one line each.
type terminalSink struct {
	bar *ui.ProgressBar
}

func (s *terminalSink) Emit(ctx context.Context, event domain.ProgressEvent) {
	if event.Step == domain.StageExtract {
		switch event.Status {
		case domain.StatusProcessing:
			if event.Total > 0 {
				if s.bar == nil {
					s.bar = ui.NewProgressBar(int64(event.Total), "Extracting text")
				}
				s.bar.Set(int64(event.Current))
			}
		case domain.StatusCompleted:
			if s.bar != nil {
				s.bar.Finish()
				s.bar = nil
			}
			ui.Success("%s", event.Message)
		case domain.StatusError:
			if s.bar != nil {
				s.bar.Finish()
				s.bar = nil
			}
			ui.Error("%s", event.Message)
		}
		return
	}

	switch event.Status {
	case domain.StatusError:
		ui.Error("%s", event.Message)
	case domain.StatusCompleted:
		ui.Success("%s", event.Message)
	default:
		ui.Info("%s", event.Message)
	}
}
