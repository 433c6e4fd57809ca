package synth

import (
	"fmt"
	"regexp"
	"strings"
)

// requirementLineRe matches lines that look like requirement statements.
var requirementLineRe = regexp.MustCompile(`(?i)REQ-\d+|requirement|shall|must|should`)

const (
	// minSummaryTextLen is the document length below which no summary
	// requirement is produced.
	minSummaryTextLen = 100
	maxScannedLines   = 10
	summarySnippetLen = 500
)

// lineScanFallback deterministically derives requirements from raw document
// text when the model produced nothing usable.
func lineScanFallback(text string) []rawRequirement {
	var out []rawRequirement

	trimmed := strings.TrimSpace(text)
	if len(trimmed) >= minSummaryTextLen {
		snippet := trimmed
		if len(snippet) > summarySnippetLen {
			snippet = snippet[:summarySnippetLen] + "..."
		}
		out = append(out, rawRequirement{
			Title:       "Document Summary Requirement",
			Description: fmt.Sprintf("The system shall implement the functionality described in the source document: %s", snippet),
			Category:    "functional",
			Priority:    "high",
			Source:      "document text",
		})
	}

	matched := 0
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !requirementLineRe.MatchString(line) {
			continue
		}
		if matched >= maxScannedLines {
			break
		}
		matched++

		title := line
		if len(title) > 80 {
			title = title[:80] + "..."
		}
		out = append(out, rawRequirement{
			Title:       title,
			Description: line,
			Category:    "functional",
			Priority:    "medium",
			Source:      "line scan",
		})
	}

	if len(out) == 0 {
		out = append(out, genericRequirement())
	}
	return out
}

// genericRequirement is the last-resort output when even the line scan found
// nothing.
func genericRequirement() rawRequirement {
	return rawRequirement{
		Title:       "Document Processing",
		Description: "The system shall process and manage the uploaded document content according to applicable healthcare software practices.",
		Category:    "functional",
		Priority:    "medium",
		Source:      "fallback",
	}
}
