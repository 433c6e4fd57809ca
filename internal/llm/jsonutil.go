package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LLM responses routinely wrap JSON in markdown fences, prepend prose, or
// leave trailing commas. These helpers normalize that output before parsing.

// CleanJSON strips markdown code fences and surrounding prose, extracts the
// first balanced JSON object or array, and removes trailing commas. Returns
// the cleaned JSON text, or an error when no JSON block is present.
func CleanJSON(content string) (string, error) {
	content = StripFences(content)

	block := firstBalancedBlock(content)
	if block == "" {
		return "", fmt.Errorf("no valid JSON found in response")
	}

	return stripTrailingCommas(block), nil
}

// stripTrailingCommas removes commas that directly precede a closing brace or
// bracket. The scan tracks string literals, so commas inside values survive.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			b.WriteByte(ch)
			continue
		}

		switch ch {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// StripFences removes a surrounding markdown code fence if present.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// ParseObject cleans the content and unmarshals the first JSON object into dst.
func ParseObject(content string, dst any) error {
	cleaned, err := CleanJSON(content)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(cleaned, "{") {
		return fmt.Errorf("response is not a JSON object")
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// ParseArray cleans the content and unmarshals the first JSON array into dst.
func ParseArray(content string, dst any) error {
	cleaned, err := CleanJSON(content)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(cleaned, "[") {
		return fmt.Errorf("response is not a JSON array")
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// firstBalancedBlock returns the first balanced {...} or [...] block in the
// content, whichever opens earlier. String literals are respected so braces
// inside values do not break the balance count.
func firstBalancedBlock(content string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if content[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	// Unbalanced: fall back to last closing delimiter, matching how lenient
	// parsers salvage truncated model output.
	end := strings.LastIndexByte(content, close)
	if end > start {
		return content[start : end+1]
	}
	return ""
}
