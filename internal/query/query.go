// Package query implements the filter language used by find and delete
// operations: a small set of comparison operators plus $and/$or
// combinators over an implicit-AND object of field predicates.
//
// A filter is parsed once into a predicate tree and then evaluated against
// every candidate document during a collection scan, rather than being
// re-scanned as text for each document. The tree shape mirrors the filter
// text directly: an implicit-AND node holds one predicate per field, a
// field predicate holds either a bare equality value or an AND of operator
// clauses, and $or/$and nodes hold one implicit-AND sub-predicate per
// array element.
package query

import (
	"fmt"

	"github.com/dreamware/linedb/internal/jsonscan"
)

// Fields is anything a predicate can resolve a field name against. Both
// "_id" and ordinary field names are resolved through the same method, so
// the document package's Lookup implements this directly.
type Fields interface {
	Lookup(name string) (string, bool)
}

// Predicate is a parsed filter, ready to be evaluated against any number of
// documents without re-parsing.
type Predicate interface {
	Match(f Fields) bool
}

// Parse builds a Predicate tree from filter text. An empty string or "{}"
// produces a predicate that matches every document.
func Parse(filterText string) (Predicate, error) {
	s := jsonscan.Trim(filterText)
	if s == "" || s == "{}" {
		return andPredicate{}, nil
	}

	entries, err := parseObjectFields(s)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if len(entries) == 0 {
		return andPredicate{}, nil
	}

	switch entries[0].Key {
	case "$or":
		preds, err := parseCombinatorArray(entries[0])
		if err != nil {
			return nil, err
		}
		return orPredicate{preds: preds}, nil
	case "$and":
		preds, err := parseCombinatorArray(entries[0])
		if err != nil {
			return nil, err
		}
		return explicitAndPredicate{preds: preds}, nil
	default:
		preds, err := buildFieldPredicates(entries)
		if err != nil {
			return nil, err
		}
		return andPredicate{preds: preds}, nil
	}
}

// parseCombinatorArray parses the array value of a top-level $or/$and entry
// into one implicit-AND predicate per array element. Each element is parsed
// as a plain object of field predicates — it is never itself treated as a
// nested combinator, even if its own first key happens to be "$or"/"$and".
func parseCombinatorArray(e fieldEntry) ([]Predicate, error) {
	if e.Quoted || len(e.Raw) == 0 || e.Raw[0] != '[' {
		return nil, fmt.Errorf("query: %q requires an array value", e.Key)
	}
	objTexts, err := splitArrayObjects(e.Raw)
	if err != nil {
		return nil, err
	}
	preds := make([]Predicate, 0, len(objTexts))
	for _, objText := range objTexts {
		entries, err := parseObjectFields(objText)
		if err != nil {
			return nil, err
		}
		fieldPreds, err := buildFieldPredicates(entries)
		if err != nil {
			return nil, err
		}
		preds = append(preds, andPredicate{preds: fieldPreds})
	}
	return preds, nil
}

// andPredicate is an implicit AND over field predicates. A nil/empty slice
// matches every document — this is also used for the empty filter.
type andPredicate struct {
	preds []Predicate
}

func (p andPredicate) Match(f Fields) bool {
	for _, sub := range p.preds {
		if !sub.Match(f) {
			return false
		}
	}
	return true
}

// explicitAndPredicate is the $and combinator. Unlike andPredicate, an empty
// array never matches — there is no sub-predicate to vacuously satisfy.
type explicitAndPredicate struct {
	preds []Predicate
}

func (p explicitAndPredicate) Match(f Fields) bool {
	if len(p.preds) == 0 {
		return false
	}
	for _, sub := range p.preds {
		if !sub.Match(f) {
			return false
		}
	}
	return true
}

// orPredicate is the $or combinator. An empty array never matches.
type orPredicate struct {
	preds []Predicate
}

func (p orPredicate) Match(f Fields) bool {
	for _, sub := range p.preds {
		if sub.Match(f) {
			return true
		}
	}
	return false
}

// fieldPredicate tests a single field's value against a condition. A field
// absent from the document (and not "_id") fails the predicate outright.
type fieldPredicate struct {
	field string
	cond  condition
}

func (p fieldPredicate) Match(f Fields) bool {
	val, ok := f.Lookup(p.field)
	if !ok {
		return false
	}
	return p.cond.match(val)
}

func buildFieldPredicates(entries []fieldEntry) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(entries))
	for _, e := range entries {
		cond, err := buildCondition(e)
		if err != nil {
			return nil, err
		}
		preds = append(preds, fieldPredicate{field: e.Key, cond: cond})
	}
	return preds, nil
}

// buildCondition turns one field's raw value text into a condition. A
// quoted or bare scalar becomes an equality test; an object becomes the AND
// of its recognized operator clauses.
func buildCondition(e fieldEntry) (condition, error) {
	if e.Quoted {
		return eqCondition{literal: e.Raw}, nil
	}
	if len(e.Raw) > 0 && e.Raw[0] == '{' {
		return parseOperatorObject(e.Raw)
	}
	return eqCondition{literal: e.Raw}, nil
}

// condition tests one already-resolved field value.
type condition interface {
	match(value string) bool
}

// parseOperatorObject parses a condition object's recognized operator keys
// into an AND of clauses. An object with none of the recognized keys
// matches nothing — documented behaviour, not an error — so that an
// unrecognized or misspelled operator fails closed instead of silently
// matching everything.
func parseOperatorObject(objText string) (condition, error) {
	entries, err := parseObjectFields(objText)
	if err != nil {
		return nil, err
	}

	var clauses []condition
	for _, e := range entries {
		switch e.Key {
		case "$eq":
			clauses = append(clauses, eqCondition{literal: operatorValue(e)})
		case "$gt":
			clauses = append(clauses, gtCondition{literal: operatorValue(e)})
		case "$lt":
			clauses = append(clauses, ltCondition{literal: operatorValue(e)})
		case "$like":
			clauses = append(clauses, likeCondition{pattern: operatorValue(e)})
		case "$in":
			items, err := parseInArray(e)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, inCondition{literals: items})
		}
	}

	if len(clauses) == 0 {
		return noMatchCondition{}, nil
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	return andConditions{clauses: clauses}, nil
}

func operatorValue(e fieldEntry) string {
	return e.Raw
}

func parseInArray(e fieldEntry) ([]string, error) {
	if e.Quoted || len(e.Raw) == 0 || e.Raw[0] != '[' {
		return nil, fmt.Errorf("query: $in requires an array value")
	}
	inner := jsonscan.Trim(e.Raw[1 : len(e.Raw)-1])
	if inner == "" {
		return nil, nil
	}
	parts := splitTopLevelCSV(inner)
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		items = append(items, jsonscan.UnquoteIfString(p))
	}
	return items, nil
}

// andConditions is the AND of two or more operator clauses within a single
// condition object, e.g. {"$gt": 10, "$lt": 20}.
type andConditions struct {
	clauses []condition
}

func (c andConditions) match(value string) bool {
	for _, clause := range c.clauses {
		if !clause.match(value) {
			return false
		}
	}
	return true
}

// noMatchCondition always fails. Used for a condition object with no
// recognized operator key.
type noMatchCondition struct{}

func (noMatchCondition) match(string) bool { return false }

// eqCondition matches on equality, refined to integer comparison when both
// the document value and the literal are valid signed decimal integers
// (so "7" and "007" compare equal), falling back to byte-for-byte string
// comparison otherwise.
type eqCondition struct {
	literal string
}

func (c eqCondition) match(value string) bool {
	if jsonscan.IsInteger(value) && jsonscan.IsInteger(c.literal) {
		return jsonscan.ParseInt(value) == jsonscan.ParseInt(c.literal)
	}
	return value == c.literal
}

type gtCondition struct {
	literal string
}

func (c gtCondition) match(value string) bool {
	if jsonscan.IsInteger(value) && jsonscan.IsInteger(c.literal) {
		return jsonscan.ParseInt(value) > jsonscan.ParseInt(c.literal)
	}
	return value > c.literal
}

type ltCondition struct {
	literal string
}

func (c ltCondition) match(value string) bool {
	if jsonscan.IsInteger(value) && jsonscan.IsInteger(c.literal) {
		return jsonscan.ParseInt(value) < jsonscan.ParseInt(c.literal)
	}
	return value < c.literal
}

// inCondition matches if value equals any of literals, using the same
// integer refinement as eqCondition per element. An empty literal set never
// matches.
type inCondition struct {
	literals []string
}

func (c inCondition) match(value string) bool {
	valueIsInt := jsonscan.IsInteger(value)
	var valueInt int64
	if valueIsInt {
		valueInt = jsonscan.ParseInt(value)
	}
	for _, lit := range c.literals {
		if valueIsInt && jsonscan.IsInteger(lit) {
			if valueInt == jsonscan.ParseInt(lit) {
				return true
			}
			continue
		}
		if value == lit {
			return true
		}
	}
	return false
}

// likeCondition matches value against a pattern where '%' stands for any
// run of zero or more characters and '_' stands for exactly one character;
// every other character matches itself literally. There is no escape
// syntax, matching the pack's find filter semantics exactly.
type likeCondition struct {
	pattern string
}

func (c likeCondition) match(value string) bool {
	return likeMatch(value, c.pattern)
}

// likeMatch is a bottom-up dynamic-programming glob matcher: dp[i][j] is
// true when value[i:] matches pattern[j:]. This avoids the exponential
// blowup a naive recursive matcher hits on patterns with runs of '%'.
func likeMatch(value, pattern string) bool {
	n, m := len(value), len(pattern)
	dp := make([][]bool, n+1)
	for i := range dp {
		dp[i] = make([]bool, m+1)
	}
	dp[n][m] = true
	for j := m - 1; j >= 0; j-- {
		if pattern[j] == '%' {
			dp[n][j] = dp[n][j+1]
		}
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch pattern[j] {
			case '%':
				dp[i][j] = dp[i][j+1] || dp[i+1][j]
			case '_':
				dp[i][j] = dp[i+1][j+1]
			default:
				dp[i][j] = value[i] == pattern[j] && dp[i+1][j+1]
			}
		}
	}
	return dp[0][0]
}

// fieldEntry is one "key":value pair lifted from an object's top level,
// with the value left as unresolved raw text (and a flag for whether it was
// a quoted string) so that the caller can decide how to interpret it.
type fieldEntry struct {
	Key    string
	Raw    string
	Quoted bool
}

// parseObjectFields splits a '{'...'}' object into its top-level key/value
// entries, using jsonscan.ScanValue to capture each value's raw text
// (unquoted string content, or a brace/bracket-matched substring for nested
// objects and arrays, or a trimmed bare literal). This is the query
// package's analogue of document.Deserialize's field loop, generalized to
// keep composite values intact instead of requiring scalars.
func parseObjectFields(s string) ([]fieldEntry, error) {
	t := jsonscan.Trim(s)
	if len(t) < 2 || t[0] != '{' || t[len(t)-1] != '}' {
		return nil, fmt.Errorf("not an object: %q", s)
	}

	var out []fieldEntry
	i, end := 1, len(t)-1
	for i < end {
		for i < end && isFieldSkip(t[i]) {
			i++
		}
		if i >= end {
			break
		}
		if t[i] != '"' {
			return nil, fmt.Errorf("expected '\"' at position %d in %q", i, s)
		}
		keyEnd := -1
		for j := i + 1; j < end; j++ {
			if t[j] == '"' {
				keyEnd = j
				break
			}
		}
		if keyEnd < 0 {
			return nil, fmt.Errorf("unterminated key in %q", s)
		}
		key := t[i+1 : keyEnd]
		i = keyEnd + 1

		for i < end && isSpaceByte(t[i]) {
			i++
		}
		if i >= end || t[i] != ':' {
			return nil, fmt.Errorf("expected ':' after key %q in %q", key, s)
		}
		i++
		for i < end && isSpaceByte(t[i]) {
			i++
		}
		if i >= end {
			return nil, fmt.Errorf("missing value for key %q in %q", key, s)
		}

		text, quoted, next, err := jsonscan.ScanValue(t, i)
		if err != nil {
			return nil, err
		}
		out = append(out, fieldEntry{Key: key, Raw: text, Quoted: quoted})
		i = next
	}
	return out, nil
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isFieldSkip(b byte) bool {
	return isSpaceByte(b) || b == ','
}

// splitArrayObjects walks a '['...']' array and returns the raw text of
// each top-level '{'...'}' element, using brace matching to find each
// element's extent. This replaces the source system's find_last_of(']')
// approach, which mistook the last ']' of a nested array value for the end
// of the enclosing combinator array whenever an element itself contained
// an array-valued field.
func splitArrayObjects(s string) ([]string, error) {
	t := jsonscan.Trim(s)
	if len(t) < 2 || t[0] != '[' || t[len(t)-1] != ']' {
		return nil, fmt.Errorf("not an array: %q", s)
	}

	var out []string
	i, end := 1, len(t)-1
	for i < end {
		for i < end && isFieldSkip(t[i]) {
			i++
		}
		if i >= end {
			break
		}
		if t[i] != '{' {
			return nil, fmt.Errorf("expected object in combinator array, at position %d in %q", i, s)
		}
		close, ok := jsonscan.FindMatchingClose(t, i)
		if !ok {
			return nil, fmt.Errorf("unbalanced object in combinator array: %q", s)
		}
		out = append(out, t[i:close+1])
		i = close + 1
	}
	return out, nil
}

// splitTopLevelCSV splits s on commas that are not inside a quoted string
// or a nested '{'/'[' span. Used for $in array elements, which are always
// scalars but may themselves be quoted strings containing no commas of
// their own significance.
func splitTopLevelCSV(s string) []string {
	var items []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
			// inside a quoted string, nothing is significant
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
		case c == ',' && depth == 0:
			items = append(items, s[start:i])
			start = i + 1
		}
	}
	items = append(items, s[start:])
	return items
}
