package extract

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
)

// fakeClient scripts vision responses per page content and records concurrency.
type fakeClient struct {
	mu         sync.Mutex
	inFlight   int
	maxSeen    int
	delay      bool
	failPages  map[string]bool // keyed by image payload
	completeFn func(prompt string) (string, error)
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	if f.completeFn != nil {
		return f.completeFn(prompt)
	}
	return "", fmt.Errorf("no completion scripted")
}

func (f *fakeClient) CompleteWithImage(ctx context.Context, prompt string, pngImage []byte, opts domain.CompletionOptions) (string, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	if f.delay {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	payload := string(pngImage)
	if f.failPages[payload] {
		return "", fmt.Errorf("vision call failed")
	}
	return "text of " + payload, nil
}

// recordingSink collects emitted progress events.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (s *recordingSink) Emit(ctx context.Context, event domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) all() []domain.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ProgressEvent, len(s.events))
	copy(out, s.events)
	return out
}

// writePages creates n page image files whose payload identifies the page.
func writePages(t *testing.T, n int) []domain.PageImage {
	t.Helper()
	dir := t.TempDir()

	pages := make([]domain.PageImage, n)
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("page_%03d.png", i+1))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("page-%d", i+1)), 0o644))
		pages[i] = domain.PageImage{PageNumber: i + 1, ImagePath: path}
	}
	return pages
}

func newTestExtractor(client domain.CompletionClient, sink domain.ProgressSink) *Extractor {
	return NewExtractor(Options{
		Client:   client,
		Progress: sink,
		Logger:   observability.Nop(),
	})
}

func TestExtract_PreservesPageOrder(t *testing.T) {
	client := &fakeClient{
		delay: true,
		completeFn: func(string) (string, error) {
			return `{"sections": []}`, nil
		},
	}
	ex := newTestExtractor(client, nil)

	pages := writePages(t, 25)
	content, err := ex.Extract(context.Background(), "job-1", pages)
	require.NoError(t, err)

	parts := strings.Split(content.Text, domain.PageBreakMarker)
	require.Len(t, parts, 25)
	for i, part := range parts {
		assert.Equal(t, fmt.Sprintf("text of page-%d", i+1), part, "page %d out of order", i+1)
	}
	assert.Equal(t, 25, content.Metadata.TotalPages)
}

func TestExtract_BoundedConcurrency(t *testing.T) {
	client := &fakeClient{
		delay: true,
		completeFn: func(string) (string, error) {
			return "{}", nil
		},
	}
	ex := NewExtractor(Options{
		Client:      client,
		Logger:      observability.Nop(),
		Concurrency: 4,
	})

	pages := writePages(t, 20)
	_, err := ex.Extract(context.Background(), "job-1", pages)
	require.NoError(t, err)

	assert.LessOrEqual(t, client.maxSeen, 4)
}

func TestExtract_FailedPageIsIsolated(t *testing.T) {
	client := &fakeClient{
		failPages: map[string]bool{"page-3": true},
		completeFn: func(string) (string, error) {
			return "{}", nil
		},
	}
	ex := newTestExtractor(client, nil)

	pages := writePages(t, 5)
	content, err := ex.Extract(context.Background(), "job-1", pages)
	require.NoError(t, err)

	parts := strings.Split(content.Text, domain.PageBreakMarker)
	require.Len(t, parts, 5)
	assert.Equal(t, "[Error extracting text from page 3]", parts[2])
	assert.Equal(t, "text of page-2", parts[1])
	assert.Equal(t, "text of page-4", parts[3])
}

func TestExtract_UnreadableImageYieldsPlaceholder(t *testing.T) {
	client := &fakeClient{
		completeFn: func(string) (string, error) {
			return "{}", nil
		},
	}
	ex := newTestExtractor(client, nil)

	pages := writePages(t, 3)
	pages[1].ImagePath = filepath.Join(t.TempDir(), "missing.png")

	content, err := ex.Extract(context.Background(), "job-1", pages)
	require.NoError(t, err)

	parts := strings.Split(content.Text, domain.PageBreakMarker)
	assert.Equal(t, "[Error extracting text from page 2]", parts[1])
}

func TestExtract_EmptyInput(t *testing.T) {
	ex := newTestExtractor(&fakeClient{}, nil)

	_, err := ex.Extract(context.Background(), "job-1", nil)
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrorTypeValidation, derr.Type)
}

func TestExtract_SectionAndMetadataParsing(t *testing.T) {
	client := &fakeClient{
		completeFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "document structure analyst") {
				return "```json\n{\"sections\": [{\"title\": \"Overview\", \"content\": \"intro\"}]}\n```", nil
			}
			return `{"documentType": "Software Requirements Specification", "complianceStandards": ["HIPAA"]}`, nil
		},
	}
	ex := newTestExtractor(client, nil)

	pages := writePages(t, 2)
	content, err := ex.Extract(context.Background(), "job-1", pages)
	require.NoError(t, err)

	require.Len(t, content.Sections, 1)
	assert.Equal(t, "Overview", content.Sections[0].Title)
	assert.Equal(t, "Software Requirements Specification", content.Metadata.DocumentType)
	assert.Equal(t, []string{"HIPAA"}, content.Metadata.ComplianceStandards)
}

func TestExtract_AnalysisFailuresDegradeToEmpty(t *testing.T) {
	client := &fakeClient{
		completeFn: func(string) (string, error) {
			return "", fmt.Errorf("model unavailable")
		},
	}
	ex := newTestExtractor(client, nil)

	pages := writePages(t, 2)
	content, err := ex.Extract(context.Background(), "job-1", pages)
	require.NoError(t, err)

	assert.Empty(t, content.Sections)
	assert.Empty(t, content.Metadata.DocumentType)
	assert.Equal(t, 2, content.Metadata.TotalPages)
}

func TestExtract_ProgressEvents(t *testing.T) {
	client := &fakeClient{
		completeFn: func(string) (string, error) {
			return "{}", nil
		},
	}
	sink := &recordingSink{}
	ex := NewExtractor(Options{
		Client:      client,
		Progress:    sink,
		Logger:      observability.Nop(),
		Concurrency: 10,
	})

	pages := writePages(t, 15)
	_, err := ex.Extract(context.Background(), "job-7", pages)
	require.NoError(t, err)

	events := sink.all()
	require.NotEmpty(t, events)

	first := events[0]
	assert.Equal(t, "job-7", first.JobID)
	assert.Equal(t, domain.StageExtract, first.Step)
	assert.Equal(t, 0, first.Current)
	assert.Equal(t, 15, first.Total)

	last := events[len(events)-1]
	assert.Equal(t, domain.StatusCompleted, last.Status)
	assert.Equal(t, 15, last.Current)

	// Two batches of 10 and 5, each with a start and a completion event.
	var batchCompletions int
	for _, ev := range events {
		if ev.Status == domain.StatusProcessing && ev.Details != nil {
			batchCompletions++
		}
	}
	assert.Equal(t, 2, batchCompletions)
}
