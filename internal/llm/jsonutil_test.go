package llm

import (
	"testing"
)

func TestCleanJSON_FencedWithTrailingComma(t *testing.T) {
	// A fenced response with a trailing comma must parse to the same object
	// as the equivalent clean JSON.
	fenced := "```json\n{\n  \"projectType\": \"SaMD\",\n  \"riskLevel\": \"high\",\n}\n```"
	clean := `{"projectType":"SaMD","riskLevel":"high"}`

	type payload struct {
		ProjectType string `json:"projectType"`
		RiskLevel   string `json:"riskLevel"`
	}

	var fromFenced, fromClean payload
	if err := ParseObject(fenced, &fromFenced); err != nil {
		t.Fatalf("ParseObject(fenced) failed: %v", err)
	}
	if err := ParseObject(clean, &fromClean); err != nil {
		t.Fatalf("ParseObject(clean) failed: %v", err)
	}
	if fromFenced != fromClean {
		t.Errorf("fenced and clean JSON parsed differently: %+v vs %+v", fromFenced, fromClean)
	}
}

func TestCleanJSON_SurroundingProse(t *testing.T) {
	content := `Sure! Here is the analysis you asked for:

{"confidence": 0.8, "criticalGaps": ["compliance-standards"]}

Let me know if you need anything else.`

	var parsed struct {
		Confidence   float64  `json:"confidence"`
		CriticalGaps []string `json:"criticalGaps"`
	}
	if err := ParseObject(content, &parsed); err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	if parsed.Confidence != 0.8 || len(parsed.CriticalGaps) != 1 {
		t.Errorf("unexpected parse result: %+v", parsed)
	}
}

func TestCleanJSON_BracesInsideStrings(t *testing.T) {
	content := `{"title": "Handle {braces} in values", "note": "ok"}`

	cleaned, err := CleanJSON(content)
	if err != nil {
		t.Fatalf("CleanJSON failed: %v", err)
	}
	if cleaned != content {
		t.Errorf("balanced block mangled string braces: %q", cleaned)
	}
}

func TestCleanJSON_CommasBeforeClosersInsideStrings(t *testing.T) {
	// Commas preceding "]" or "}" inside string values are content, not
	// trailing commas, and must survive cleaning.
	content := `{"description": "items include [a, b, ], and more, }", "title": "x"}`

	var parsed struct {
		Description string `json:"description"`
		Title       string `json:"title"`
	}
	if err := ParseObject(content, &parsed); err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	if parsed.Description != "items include [a, b, ], and more, }" {
		t.Errorf("string value was rewritten: %q", parsed.Description)
	}
	if parsed.Title != "x" {
		t.Errorf("unexpected title: %q", parsed.Title)
	}
}

func TestCleanJSON_TrailingCommaAfterStringValue(t *testing.T) {
	content := `{"sections": [{"title": "A, }", "content": "c",},], "n": 1,}`

	var parsed struct {
		Sections []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"sections"`
		N int `json:"n"`
	}
	if err := ParseObject(content, &parsed); err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	if len(parsed.Sections) != 1 || parsed.Sections[0].Title != "A, }" || parsed.N != 1 {
		t.Errorf("unexpected parse result: %+v", parsed)
	}
}

func TestCleanJSON_BareArray(t *testing.T) {
	content := "```\n[{\"id\": \"REQ-001\"}, {\"id\": \"REQ-002\"},]\n```"

	var items []struct {
		ID string `json:"id"`
	}
	if err := ParseArray(content, &items); err != nil {
		t.Fatalf("ParseArray failed: %v", err)
	}
	if len(items) != 2 || items[1].ID != "REQ-002" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestCleanJSON_NoJSON(t *testing.T) {
	if _, err := CleanJSON("I could not analyze this document, sorry."); err == nil {
		t.Error("expected error for prose-only response")
	}
}

func TestCleanJSON_NestedTrailingCommas(t *testing.T) {
	content := `{"sections": [{"title": "Intro", "content": "text",},], "metadata": {"totalPages": 3,},}`

	var parsed struct {
		Sections []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"sections"`
		Metadata struct {
			TotalPages int `json:"totalPages"`
		} `json:"metadata"`
	}
	if err := ParseObject(content, &parsed); err != nil {
		t.Fatalf("ParseObject failed: %v", err)
	}
	if len(parsed.Sections) != 1 || parsed.Metadata.TotalPages != 3 {
		t.Errorf("unexpected parse result: %+v", parsed)
	}
}
