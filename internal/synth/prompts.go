package synth

import (
	"fmt"
	"strings"

	"github.com/healthspec-ai/healthspec/internal/domain"
)

// synthesisTextLimit bounds the document text included in the prompt.
const synthesisTextLimit = 8000

// synthesisPrompt builds the requirement generation prompt from document text
// and the question/answer transcript.
func synthesisPrompt(content *domain.ExtractedContent, questions []domain.GapQuestion, answers map[string]domain.Answer) string {
	text := content.Text
	if len(text) > synthesisTextLimit {
		text = text[:synthesisTextLimit]
	}

	var b strings.Builder
	b.WriteString(`You are a healthcare software requirements engineer. Generate structured, testable requirements from the document below and the clarification answers supplied by the user.

Return ONLY a valid JSON object with this structure:

{
  "requirements": [
    {
      "title": "string (short, imperative)",
      "description": "string (complete requirement statement, testable)",
      "category": "functional|non-functional|technical|business",
      "priority": "critical|high|medium|low",
      "source": "string (the document section or answer the requirement derives from)",
      "acceptanceCriteria": ["string (at least one per requirement)"],
      "compliance": ["string (applicable standards)"],
      "userStory": "string (As a <role>, I want <capability>, so that <benefit>)",
      "testScenarios": ["string (at least one per requirement)"],
      "dependencies": ["string"],
      "risks": ["string"]
    }
  ]
}

COMPLIANCE TAGGING (tag every requirement, over-include rather than omit):
- Standards taxonomy: FDA, ISO, IEC, HIPAA, GDPR, NIST, HL7/FHIR, DICOM, SOC2, OWASP
- Any handling of patient data implies HIPAA
- Any medical device or clinical software implies FDA and ISO 13485
- Any EU deployment implies GDPR
- Any health data exchange implies HL7/FHIR
- Any medical imaging implies DICOM
- Any security-sensitive functionality implies OWASP and NIST

RULES:
- Every requirement must be individually testable
- Cover both functional behavior and non-functional qualities (security, performance, auditability)
- Incorporate the user's answers as authoritative; they override document silence
- Do NOT wrap the JSON in markdown code fences

`)

	if transcript := formatTranscript(questions, answers); transcript != "" {
		b.WriteString("CLARIFICATION ANSWERS:\n")
		b.WriteString(transcript)
		b.WriteString("\n")
	}

	b.WriteString("DOCUMENT TEXT:\n")
	b.WriteString(text)

	return b.String()
}

// formatTranscript renders the question/answer pairs as prompt text. Empty
// answers are skipped.
func formatTranscript(questions []domain.GapQuestion, answers map[string]domain.Answer) string {
	if len(answers) == 0 {
		return ""
	}

	var b strings.Builder
	// Question order, then any answers without a matching question.
	seen := make(map[string]bool, len(answers))
	for _, q := range questions {
		ans, ok := answers[q.ID]
		if !ok || ans.IsEmpty() {
			continue
		}
		seen[q.ID] = true
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", q.Question, ans.String())
	}
	for id, ans := range answers {
		if seen[id] || ans.IsEmpty() {
			continue
		}
		fmt.Fprintf(&b, "Q: %s\nA: %s\n", id, ans.String())
	}
	return b.String()
}
