package domain

import "context"

// Converter defines the interface for turning a source document into page images
type Converter interface {
	// Convert renders the document at filePath into ordered page images
	Convert(ctx context.Context, filePath, fileType string) (*ConversionResult, error)

	// Cleanup removes temporary files created during conversion
	Cleanup() error
}

// ConversionResult holds the output of a document conversion.
type ConversionResult struct {
	Images      []PageImage
	PageCount   int
	Format      string
	Placeholder bool // true when native tooling was unavailable and a diagnostic image was produced
}

// CompletionClient defines the LLM capability the pipeline consumes: plain
// text completion and vision completion over a single inline image.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
	CompleteWithImage(ctx context.Context, prompt string, pngImage []byte, opts CompletionOptions) (string, error)
}

// CompletionOptions bound a single completion call.
type CompletionOptions struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// ProgressSink receives status updates from pipeline stages.
type ProgressSink interface {
	Emit(ctx context.Context, event ProgressEvent)
}
