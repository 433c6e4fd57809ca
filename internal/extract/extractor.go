// Package extract implements page-level text extraction over a vision
// completion client, followed by best-effort section and metadata analysis of
// the aggregated document text.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/llm"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

const (
	defaultConcurrency = 10
	defaultPageTimeout = 90 * time.Second
)

// Extractor pulls text out of page images in bounded concurrent batches.
type Extractor struct {
	client      domain.CompletionClient
	progress    domain.ProgressSink
	logger      *observability.Logger
	concurrency int
	pageTimeout time.Duration
}

// Options configure an Extractor.
type Options struct {
	Client      domain.CompletionClient
	Progress    domain.ProgressSink
	Logger      *observability.Logger
	Concurrency int
	PageTimeout time.Duration
}

// NewExtractor creates an extractor.
func NewExtractor(opts Options) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	if opts.Logger == nil {
		opts.Logger = observability.Nop()
	}

	return &Extractor{
		client:      opts.Client,
		progress:    opts.Progress,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		pageTimeout: opts.PageTimeout,
	}
}

// Extract processes all page images and returns the aggregated content.
// Pages run in parallel batches of fixed size; results are stored by page
// index so the aggregate is always in ascending page order regardless of
// completion order. A failed page yields a placeholder marker for that page
// only and never aborts the batch or the job.
func (e *Extractor) Extract(ctx context.Context, jobID string, images []domain.PageImage) (*domain.ExtractedContent, error) {
	if len(images) == 0 {
		return nil, domain.ValidationError("no page images to extract", nil)
	}

	log := e.logger.WithJob(jobID).WithStage(domain.StageExtract)
	total := len(images)

	e.emit(ctx, jobID, domain.ProgressEvent{
		Step:    domain.StageExtract,
		Status:  domain.StatusProcessing,
		Current: 0,
		Total:   total,
		Message: fmt.Sprintf("Extracting text from %d pages", total),
	})

	pageTexts := make([]string, total)
	extractedChars := 0
	failedPages := 0

	for batchStart := 0; batchStart < total; batchStart += e.concurrency {
		batchEnd := batchStart + e.concurrency
		if batchEnd > total {
			batchEnd = total
		}

		e.emit(ctx, jobID, domain.ProgressEvent{
			Step:    domain.StageExtract,
			Status:  domain.StatusProcessing,
			Current: batchStart,
			Total:   total,
			Message: fmt.Sprintf("Processing pages %d-%d", batchStart+1, batchEnd),
		})

		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(e.concurrency)

		for i := batchStart; i < batchEnd; i++ {
			idx := i
			page := images[i]

			eg.Go(func() error {
				text, err := e.extractPage(gctx, page)
				if err != nil {
					log.Warn().Err(err).Int("page", page.PageNumber).Msg("Page extraction failed")
					pageTexts[idx] = fmt.Sprintf("[Error extracting text from page %d]", page.PageNumber)
					return nil // isolate the failure to this page
				}
				pageTexts[idx] = text
				return nil
			})
		}

		// Per-page errors are swallowed above; Wait only fails on context
		// cancellation of the whole group.
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		extractedChars = 0
		failedPages = 0
		for _, t := range pageTexts[:batchEnd] {
			extractedChars += len(t)
			if strings.HasPrefix(t, "[Error extracting text from page") {
				failedPages++
			}
		}

		e.emit(ctx, jobID, domain.ProgressEvent{
			Step:    domain.StageExtract,
			Status:  domain.StatusProcessing,
			Current: batchEnd,
			Total:   total,
			Message: fmt.Sprintf("Extracted %d of %d pages (%d characters)", batchEnd, total, extractedChars),
			Details: map[string]any{"characters": extractedChars, "failedPages": failedPages},
		})
	}

	aggregated := strings.Join(pageTexts, domain.PageBreakMarker)

	sections := e.extractSections(ctx, aggregated)
	metadata := e.extractMetadata(ctx, aggregated)
	metadata.TotalPages = total

	e.emit(ctx, jobID, domain.ProgressEvent{
		Step:    domain.StageExtract,
		Status:  domain.StatusCompleted,
		Current: total,
		Total:   total,
		Message: fmt.Sprintf("Text extraction complete: %d pages, %d sections", total, len(sections)),
		Details: map[string]any{"characters": len(aggregated), "failedPages": failedPages},
	})

	log.Info().
		Int("pages", total).
		Int("failed_pages", failedPages).
		Int("characters", len(aggregated)).
		Msg("Extraction complete")

	return &domain.ExtractedContent{
		Text:     aggregated,
		Sections: sections,
		Metadata: metadata,
	}, nil
}

// extractPage runs one vision call for a single page under the per-call timeout.
func (e *Extractor) extractPage(ctx context.Context, page domain.PageImage) (string, error) {
	imageData, err := os.ReadFile(page.ImagePath)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to read page %d image", page.PageNumber), err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	text, err := e.client.CompleteWithImage(callCtx, pageExtractionPrompt, imageData, domain.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   8192,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// extractSections segments the aggregated text into logical sections.
// Best-effort: any call or parse failure yields an empty list.
func (e *Extractor) extractSections(ctx context.Context, text string) []domain.Section {
	resp, err := e.client.Complete(ctx, sectionsPrompt(text), domain.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   4096,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Section analysis call failed")
		return []domain.Section{}
	}

	var parsed struct {
		Sections []domain.Section `json:"sections"`
	}
	if err := llm.ParseObject(resp, &parsed); err != nil {
		var bare []domain.Section
		if err := llm.ParseArray(resp, &bare); err == nil {
			return bare
		}
		e.logger.Warn().Err(err).Msg("Section analysis parse failed")
		return []domain.Section{}
	}
	if parsed.Sections == nil {
		return []domain.Section{}
	}
	return parsed.Sections
}

// extractMetadata derives document-level metadata from the aggregated text.
// Best-effort: any call or parse failure yields empty defaults.
func (e *Extractor) extractMetadata(ctx context.Context, text string) domain.DocumentMetadata {
	resp, err := e.client.Complete(ctx, metadataPrompt(text), domain.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   1024,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("Metadata analysis call failed")
		return domain.DocumentMetadata{}
	}

	var metadata domain.DocumentMetadata
	if err := llm.ParseObject(resp, &metadata); err != nil {
		e.logger.Warn().Err(err).Msg("Metadata analysis parse failed")
		return domain.DocumentMetadata{}
	}
	return metadata
}

func (e *Extractor) emit(ctx context.Context, jobID string, event domain.ProgressEvent) {
	if e.progress == nil {
		return
	}
	event.JobID = jobID
	e.progress.Emit(ctx, event)
}
