package gap

import (
	"fmt"
	"strings"

	"github.com/healthspec-ai/healthspec/internal/domain"
)

// analysisTextLimit bounds the document text included in the analysis prompt.
const analysisTextLimit = 12000

// analysisPrompt builds the healthcare-compliance gap analysis prompt.
func analysisPrompt(content *domain.ExtractedContent) string {
	text := content.Text
	if len(text) > analysisTextLimit {
		text = text[:analysisTextLimit]
	}

	var sectionList strings.Builder
	for _, s := range content.Sections {
		sectionList.WriteString("- ")
		sectionList.WriteString(s.Title)
		sectionList.WriteString("\n")
	}

	return fmt.Sprintf(`You are a healthcare software compliance analyst. Analyze the following document for missing information that would block writing complete, testable requirements.

ANALYSIS AREAS:
1. Device classification and intended use (is this Software as a Medical Device? what risk class?)
2. Compliance standards (HIPAA, FDA 21 CFR, ISO 13485, IEC 62304, GDPR, HL7 FHIR, DICOM, SOC2)
3. Clinical validation (studies, evidence, validation protocols)
4. Data integrity and handling (PHI storage, encryption, retention, audit trails)
5. Interoperability (EHR integration, HL7/FHIR interfaces, DICOM)
6. Performance and reliability expectations
7. Target users and deployment regions

Return ONLY a valid JSON object with this structure:

{
  "projectType": "string (e.g., medical device software, clinical decision support, patient portal, telehealth platform, health data analytics)",
  "softwareName": "string or empty",
  "targetUsers": ["string"],
  "complianceStandards": ["string (ONLY standards the document explicitly addresses)"],
  "regions": ["string (deployment regions the document names)"],
  "dataHandling": "string (how the document says patient data is handled, or empty)",
  "integrations": ["string"],
  "riskLevel": "string (risk classification the document states, or empty)",
  "clinicalFeatures": ["string"],
  "requirements": ["string (explicit requirements the document already contains)"],
  "criticalGaps": ["string (kebab-case gap identifiers for missing information that blocks requirement writing)"],
  "importantGaps": ["string"],
  "optionalGaps": ["string"],
  "confidence": 0.0-1.0,
  "sectionConfidence": {"sectionName": 0.0-1.0},
  "suggestedQuestions": [
    {
      "id": "string or empty",
      "category": "critical|important|optional",
      "type": "single|multiple|text|textarea|cards",
      "question": "string",
      "reason": "string",
      "options": [{"value": "string", "label": "string", "description": "string"}]
    }
  ]
}

RULES:
- Use these gap identifiers where they apply: compliance-standards, risk-classification, deployment-regions, target-users, data-handling, clinical-validation, interoperability
- Report ONLY what the document states; absence of a topic is a gap, not a guess
- suggestedQuestions may be empty; include one only when a canned clarification would not fit the gap
- Do NOT wrap the JSON in markdown code fences

DOCUMENT SECTIONS:
%s
DOCUMENT TEXT:
%s`, sectionList.String(), text)
}
