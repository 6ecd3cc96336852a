package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe       = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")
	jsonObjectRe  = regexp.MustCompile(`(?s)\{.*\}`)
	singleQuoteRe = regexp.MustCompile(`'([^']*)'`)
)

// StripCodeFences removes a surrounding markdown code fence, if any, and
// trims whitespace. Models wrap structured output in fences often enough
// that every structured-output caller goes through this.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// DecodeJSONObject extracts and decodes the first JSON object found in a
// model completion into dst. It tolerates code fences, leading prose, and
// falls back to rewriting single-quoted strings when strict decoding fails.
func DecodeJSONObject(raw string, dst any) error {
	s := StripCodeFences(raw)

	obj := jsonObjectRe.FindString(s)
	if obj == "" {
		return fmt.Errorf("no JSON object found in completion")
	}

	if err := json.Unmarshal([]byte(obj), dst); err == nil {
		return nil
	}

	// Some models emit Python-style single quotes. Rewriting them rescues
	// the common cases without a full parser.
	rescued := singleQuoteRe.ReplaceAllString(obj, `"$1"`)
	if err := json.Unmarshal([]byte(rescued), dst); err != nil {
		return fmt.Errorf("failed to decode completion as JSON: %w", err)
	}
	return nil
}
