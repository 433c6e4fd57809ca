package extract

import "fmt"

// pageExtractionPrompt is sent with every page image. Output is plain text,
// not JSON, because page content flows straight into the aggregated document.
const pageExtractionPrompt = `You are a document text extraction expert. Extract ALL text content from this page of a healthcare software document.

EXTRACTION RULES:
- Extract every piece of readable text: headings, body text, lists, tables, captions, footnotes, headers, footers
- Preserve the document's reading order (top to bottom, left to right, column by column)
- Render tables as plain text rows, one row per line, cells separated by " | "
- Keep numbered and bulleted lists with their markers
- Do NOT summarize, paraphrase, or omit anything
- Do NOT add commentary, explanations, or markdown code fences
- If the page contains diagrams or images, describe each briefly in square brackets, e.g. [Diagram: system architecture showing three tiers]
- If the page is blank or contains no readable text, respond with exactly: [No text content on this page]

Return ONLY the extracted text.`

// sectionsPrompt asks for a logical segmentation of the aggregated document.
func sectionsPrompt(text string) string {
	return fmt.Sprintf(`You are a document structure analyst. Segment the following healthcare software document into its logical sections.

Return ONLY a valid JSON object with this structure:

{
  "sections": [
    {"title": "string (section heading or a short descriptive title)", "content": "string (the full text of the section)"}
  ]
}

SEGMENTATION RULES:
- Use the document's own headings where present
- A section without an explicit heading gets a short descriptive title you infer from its content
- Every part of the document belongs to exactly one section
- Do NOT invent content that is not in the document
- Do NOT wrap the JSON in markdown code fences

DOCUMENT:
%s`, text)
}

// metadataPrompt asks for document-level attributes.
func metadataPrompt(text string) string {
	return fmt.Sprintf(`You are a healthcare documentation analyst. Determine document-level metadata for the following document.

Return ONLY a valid JSON object with this structure:

{
  "documentType": "string (e.g., Product Requirements Document, Software Requirements Specification, Clinical Protocol, Design Document, User Manual, Regulatory Submission, Other)",
  "complianceStandards": ["string (standards the document explicitly mentions, e.g., HIPAA, FDA 21 CFR Part 820, ISO 13485, IEC 62304, GDPR, HL7 FHIR, DICOM)"]
}

RULES:
- List ONLY compliance standards the document actually names; an empty list is valid
- Do NOT wrap the JSON in markdown code fences

DOCUMENT:
%s`, text)
}
