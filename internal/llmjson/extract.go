// Package llmjson extracts JSON payloads from model output that may be
// wrapped in prose or markdown fences.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed indicates no parseable JSON could be recovered from the text.
var ErrMalformed = errors.New("no parseable JSON found in model output")

// MalformedError wraps ErrMalformed with a preview of the offending text.
type MalformedError struct {
	// Preview is a truncated copy of the raw model output.
	Preview string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%v (output: %s)", ErrMalformed, e.Preview)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

// Unmarshal parses model output into target using a three-stage pipeline:
// direct parse, fenced code block extraction, then a scan for the first
// balanced top-level object or array. Parse failures never escape as panics
// or raw json errors; the caller always gets either a populated target or a
// MalformedError.
func Unmarshal(raw string, target any) error {
	trimmed := strings.TrimSpace(raw)

	// Stage 1: the whole response is JSON.
	if json.Unmarshal([]byte(trimmed), target) == nil {
		return nil
	}

	// Stage 2: JSON inside a ``` fence, optionally tagged with a language.
	if block := fencedBlock(trimmed); block != "" {
		if json.Unmarshal([]byte(block), target) == nil {
			return nil
		}
	}

	// Stage 3: first balanced {...} or [...] span anywhere in the text.
	if span := balancedSpan(trimmed, '{', '}'); span != "" {
		if json.Unmarshal([]byte(span), target) == nil {
			return nil
		}
	}
	if span := balancedSpan(trimmed, '[', ']'); span != "" {
		if json.Unmarshal([]byte(span), target) == nil {
			return nil
		}
	}

	return &MalformedError{Preview: truncate(trimmed, 200)}
}

// fencedBlock returns the contents of the first fenced code block, or "".
func fencedBlock(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return ""
	}
	rest := s[start+3:]
	// Drop a language hint such as "json" on the fence line.
	if idx := strings.IndexByte(rest, '\n'); idx != -1 {
		rest = rest[idx+1:]
	}
	end := strings.Index(rest, "```")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// balancedSpan returns the first balanced open..close span, or "".
// Quoted strings are respected so braces inside values don't miscount.
func balancedSpan(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
