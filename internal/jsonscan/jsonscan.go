// Package jsonscan implements the tolerant, hand-rolled JSON scanning primitives
// shared by the document, query, and wire codecs.
//
// None of these codecs use encoding/json. The wire protocol requires verbatim
// preservation of request fragments (the "data" and "query" sub-documents are
// passed through to the collection layer byte-for-byte) and documents never
// escape their string values on write, so a conforming JSON unmarshaler would
// not round-trip them faithfully. Instead every caller walks the input with
// the same small set of primitives: trim whitespace, test for an integer
// literal, find a `"key":` marker, and scan one value (string, object/array,
// or bare literal) starting at a given offset.
package jsonscan

import "fmt"

// Trim removes leading and trailing ASCII whitespace (space, tab, CR, LF),
// matching the character set the rest of the scanner treats as insignificant.
func Trim(s string) string {
	start := 0
	for start < len(s) && isSpace(s[start]) {
		start++
	}
	end := len(s)
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// IsInteger reports whether s (after trimming) is a signed decimal integer
// literal: an optional '+'/'-' followed by one or more digits. Leading zeros
// are accepted. An empty string is not an integer.
func IsInteger(s string) bool {
	t := Trim(s)
	if t == "" {
		return false
	}
	i := 0
	if t[0] == '+' || t[0] == '-' {
		i = 1
		if i == len(t) {
			return false
		}
	}
	for ; i < len(t); i++ {
		if t[i] < '0' || t[i] > '9' {
			return false
		}
	}
	return true
}

// ParseInt parses a value already known to satisfy IsInteger. It panics if
// called on a non-integer string; callers must check IsInteger first.
func ParseInt(s string) int64 {
	t := Trim(s)
	neg := false
	i := 0
	switch t[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}
	var n int64
	for ; i < len(t); i++ {
		n = n*10 + int64(t[i]-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// FindMatchingClose returns the index of the closer that matches the opener
// at s[open] ('{' matched by '}', '[' matched by ']'), counting nested
// openers/closers of the same kind naively — quoted strings inside are not
// tokenized separately, so a literal brace inside a quoted value will corrupt
// the scan. This mirrors the source system's known limitation.
func FindMatchingClose(s string, open int) (int, bool) {
	if open >= len(s) {
		return 0, false
	}
	var openCh, closeCh byte
	switch s[open] {
	case '{':
		openCh, closeCh = '{', '}'
	case '[':
		openCh, closeCh = '[', ']'
	default:
		return 0, false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// FindKey locates the first `"key":` marker in s starting at or after from,
// and returns the index of the first non-whitespace byte of its value. The
// search is a plain substring search, so it will also match the key inside a
// nested object; callers that need the top-level key only should scan field
// by field instead (see query.parseObjectFields).
func FindKey(s, key string, from int) (valueStart int, ok bool) {
	marker := "\"" + key + "\":"
	idx := indexFrom(s, marker, from)
	if idx < 0 {
		return 0, false
	}
	i := idx + len(marker)
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i >= len(s) {
		return 0, false
	}
	return i, true
}

func indexFrom(s, substr string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := indexOf(s[from:], substr)
	if idx < 0 {
		return -1
	}
	return idx + from
}

func indexOf(s, substr string) int {
	n := len(substr)
	if n == 0 {
		return 0
	}
	for i := 0; i+n <= len(s); i++ {
		if s[i:i+n] == substr {
			return i
		}
	}
	return -1
}

// ScanValue reads one JSON-ish value starting at s[start], which must be the
// first non-whitespace byte of the value. It returns the value's raw text,
// whether it was a quoted string (in which case text is the content between
// the quotes, unescaped-as-is), and the index of the first byte after the
// value (at the closing quote+1, the matching closer+1, or the terminating
// ',' / '}' / end of string for a bare literal).
func ScanValue(s string, start int) (text string, quoted bool, next int, err error) {
	if start >= len(s) {
		return "", false, start, fmt.Errorf("jsonscan: no value at end of input")
	}
	switch s[start] {
	case '"':
		end := indexFrom(s, "\"", start+1)
		if end < 0 {
			return "", false, start, fmt.Errorf("jsonscan: unterminated string starting at %d", start)
		}
		return s[start+1 : end], true, end + 1, nil
	case '{', '[':
		end, ok := FindMatchingClose(s, start)
		if !ok {
			return "", false, start, fmt.Errorf("jsonscan: unbalanced %q starting at %d", s[start], start)
		}
		return s[start : end+1], false, end + 1, nil
	default:
		end := start
		for end < len(s) && s[end] != ',' && s[end] != '}' {
			end++
		}
		return Trim(s[start:end]), false, end, nil
	}
}

// UnquoteIfString strips a single pair of surrounding double quotes from a
// scalar that came from a bare-literal scan, used when a literal has already
// been trimmed but may still carry quotes collected by a caller operating on
// raw substrings (e.g. array elements split by comma).
func UnquoteIfString(s string) string {
	t := Trim(s)
	if len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
		return t[1 : len(t)-1]
	}
	return t
}
