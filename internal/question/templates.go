package question

import (
	"fmt"
	"strings"

	"github.com/healthspec-ai/healthspec/internal/domain"
)

// Canned clarification templates keyed by gap identifier. Option values here
// are stable semantic identifiers; only dynamically supplied questions need
// value remapping.
var cannedTemplates = map[string]domain.GapQuestion{
	domain.GapComplianceStandards: {
		ID:       domain.GapComplianceStandards,
		Type:     domain.QuestionMultiple,
		Question: "Which compliance standards must this software meet?",
		Reason:   "The document does not state which regulatory standards apply.",
		Options: []domain.QuestionOption{
			{Value: "hipaa", Label: "HIPAA", Description: "US patient data privacy and security (US)"},
			{Value: "fda-21-cfr", Label: "FDA 21 CFR", Description: "US medical device quality regulation (US)"},
			{Value: "nist", Label: "NIST", Description: "US cybersecurity framework (US)"},
			{Value: "gdpr", Label: "GDPR", Description: "EU personal data protection (EU)"},
			{Value: "iso-13485", Label: "ISO 13485", Description: "Medical device quality management (International)"},
			{Value: "iec-62304", Label: "IEC 62304", Description: "Medical device software lifecycle (International)"},
			{Value: "hl7-fhir", Label: "HL7/FHIR", Description: "Health data interoperability (International)"},
			{Value: "dicom", Label: "DICOM", Description: "Medical imaging interchange (International)"},
			{Value: "soc2", Label: "SOC2", Description: "Service organization security controls (International)"},
			{Value: "owasp", Label: "OWASP", Description: "Application security practices (International)"},
		},
		SkipLabel: "Not sure yet",
	},
	domain.GapRiskClassification: {
		ID:       domain.GapRiskClassification,
		Type:     domain.QuestionSingle,
		Question: "What is the risk classification of this software?",
		Reason:   "The project resembles a medical device but states no risk class.",
		Options: []domain.QuestionOption{
			{Value: "low", Label: "Low risk", Description: "Administrative or wellness functionality, no clinical decisions"},
			{Value: "medium", Label: "Medium risk", Description: "Informs clinical decisions, clinician remains in the loop"},
			{Value: "high", Label: "High risk", Description: "Drives or automates clinical decisions, potential for patient harm"},
		},
		SkipLabel: "Not classified yet",
	},
	domain.GapDeploymentRegions: {
		ID:       domain.GapDeploymentRegions,
		Type:     domain.QuestionMultiple,
		Question: "In which regions will this software be deployed?",
		Reason:   "Deployment regions determine which regulations apply.",
		Options: []domain.QuestionOption{
			{Value: "usa", Label: "United States"},
			{Value: "eu", Label: "European Union"},
			{Value: "uk", Label: "United Kingdom"},
			{Value: "canada", Label: "Canada"},
			{Value: "apac", Label: "Asia-Pacific"},
			{Value: "global", Label: "Global"},
		},
	},
	domain.GapTargetUsers: {
		ID:       domain.GapTargetUsers,
		Type:     domain.QuestionMultiple,
		Question: "Who are the primary users of this software?",
		Reason:   "The document does not identify its user roles.",
		Options: []domain.QuestionOption{
			{Value: "physicians", Label: "Physicians"},
			{Value: "nurses", Label: "Nurses"},
			{Value: "patients", Label: "Patients"},
			{Value: "caregivers", Label: "Caregivers"},
			{Value: "lab-technicians", Label: "Lab technicians"},
			{Value: "administrators", Label: "Administrative staff"},
			{Value: "researchers", Label: "Researchers"},
		},
	},
	domain.GapDataHandling: {
		ID:       domain.GapDataHandling,
		Type:     domain.QuestionSingle,
		Question: "How will patient data be stored and processed?",
		Reason:   "Data handling is unspecified, which blocks privacy requirements.",
		Options: []domain.QuestionOption{
			{Value: "cloud", Label: "Cloud hosted", Description: "Data stored with a cloud provider"},
			{Value: "on-premise", Label: "On-premise", Description: "Data stays inside the healthcare organization"},
			{Value: "hybrid", Label: "Hybrid", Description: "Mix of cloud and on-premise storage"},
			{Value: "no-phi", Label: "No patient data", Description: "The software never touches PHI"},
		},
	},
	domain.GapClinicalValidation: {
		ID:       domain.GapClinicalValidation,
		Type:     domain.QuestionSingle,
		Question: "What clinical validation is planned or completed?",
		Reason:   "Clinical claims need validation evidence.",
		Options: []domain.QuestionOption{
			{Value: "completed-study", Label: "Completed clinical study"},
			{Value: "planned-study", Label: "Study planned"},
			{Value: "literature", Label: "Literature-based validation"},
			{Value: "not-needed", Label: "No clinical validation needed"},
		},
	},
	domain.GapInteroperability: {
		ID:       domain.GapInteroperability,
		Type:     domain.QuestionMultiple,
		Question: "Which systems must this software integrate with?",
		Reason:   "Integration targets are unspecified.",
		Options: []domain.QuestionOption{
			{Value: "ehr", Label: "EHR systems", Description: "Epic, Cerner, or similar"},
			{Value: "fhir-interfaces", Label: "HL7/FHIR interfaces"},
			{Value: "dicom-imaging", Label: "DICOM imaging systems"},
			{Value: "lis", Label: "Laboratory information systems"},
			{Value: "billing", Label: "Billing and claims systems"},
			{Value: "no-integrations", Label: "No integrations"},
		},
	},
	domain.GapAnalysisFailed: {
		ID:       domain.GapAnalysisFailed,
		Type:     domain.QuestionTextarea,
		Question: "Automatic document analysis was incomplete. Please describe the software, its intended users, and any regulatory context.",
		Reason:   "The document could not be analyzed, so requirements need manual context.",
	},
}

// paddingQuestions are asked in order when fewer than the minimum number of
// gap-driven questions exist.
var paddingQuestions = []domain.GapQuestion{
	{
		ID:       "performance-expectations",
		Category: domain.CategoryOptional,
		Type:     domain.QuestionSingle,
		Question: "What are the performance and reliability expectations for this software?",
		Reason:   "Performance targets shape non-functional requirements.",
		Options: []domain.QuestionOption{
			{Value: "standard", Label: "Standard", Description: "Business-hours availability, best-effort response times"},
			{Value: "high-availability", Label: "High availability", Description: "24/7 operation, sub-second interactive response"},
			{Value: "safety-critical", Label: "Safety critical", Description: "Continuous operation with defined failover behavior"},
		},
		SkipLabel: "Decide later",
	},
	{
		ID:       "scale-expectations",
		Category: domain.CategoryOptional,
		Type:     domain.QuestionSingle,
		Question: "How many concurrent users should the software support at launch?",
		Reason:   "Expected scale drives capacity and load-test requirements.",
		Options: []domain.QuestionOption{
			{Value: "under-100", Label: "Under 100"},
			{Value: "100-1000", Label: "100 to 1,000"},
			{Value: "over-1000", Label: "Over 1,000"},
		},
		SkipLabel: "Decide later",
	},
	{
		ID:       "release-constraints",
		Category: domain.CategoryOptional,
		Type:     domain.QuestionTextarea,
		Question: "Are there release timeline or budget constraints that should shape the requirements?",
		Reason:   "Delivery constraints affect requirement prioritization.",
		SkipLabel: "No constraints",
	},
}

// genericQuestion covers gap identifiers without a canned template.
func genericQuestion(gapID string, category domain.QuestionCategory) domain.GapQuestion {
	topic := strings.ReplaceAll(gapID, "-", " ")
	return domain.GapQuestion{
		ID:       gapID,
		Category: category,
		Type:     domain.QuestionTextarea,
		Question: fmt.Sprintf("The document is missing information about %s. Please provide details.", topic),
		Reason:   fmt.Sprintf("Identified gap: %s.", topic),
	}
}
