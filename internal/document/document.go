// Package document implements the database's schema-less document type: an
// ordered list of (field, text-value) pairs plus a mandatory identifier,
// together with the tolerant text encoding used on disk and on the wire.
//
// Every field value is text. There is no escaping on write and no escape
// processing on read: a value containing '"', '\', ',', '{', '}', or a
// newline/tab will not round-trip correctly through Serialize/Deserialize.
// That restriction is deliberate — see the package-level notes in the design
// ledger — rather than an oversight.
package document

import (
	"fmt"
	"strings"

	"github.com/dreamware/linedb/internal/jsonscan"
)

// field is a single (key, value) pair, kept in insertion order.
type field struct {
	key   string
	value string
}

// Document is an ordered set of text fields plus a mandatory ID. The ID is
// never duplicated into the field list.
//
// A Document is owned by exactly one Store bucket chain at a time. New and
// Deserialize are the constructors; Collection.Insert builds its documents
// through Deserialize.
type Document struct {
	id     string
	fields []field
}

// New creates an empty document with the given id. Use AddField to populate it.
func New(id string) *Document {
	return &Document{id: id}
}

// ID returns the document's identifier.
func (d *Document) ID() string {
	return d.id
}

// AddField adds or overwrites a field. If key is already present the value is
// replaced in place, preserving field order; otherwise the field is appended.
func (d *Document) AddField(key, value string) {
	for i := range d.fields {
		if d.fields[i].key == key {
			d.fields[i].value = value
			return
		}
	}
	d.fields = append(d.fields, field{key: key, value: value})
}

// Lookup resolves a predicate field name against the document, special-casing
// the pseudo-field "_id" to resolve to the document's identifier instead of
// its field list.
func (d *Document) Lookup(name string) (string, bool) {
	if name == "_id" {
		return d.id, true
	}
	return d.GetField(name)
}

// GetField returns the field's value and true if present, or ("", false)
// otherwise. The pseudo-field "_id" is not resolved here — callers that need
// to look up "_id" uniformly with other fields should check for it first.
func (d *Document) GetField(key string) (string, bool) {
	for _, f := range d.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return "", false
}

// Fields returns the non-id fields in insertion order. The returned slice
// must not be mutated by the caller.
func (d *Document) Fields() []struct{ Key, Value string } {
	out := make([]struct{ Key, Value string }, len(d.fields))
	for i, f := range d.fields {
		out[i] = struct{ Key, Value string }{f.key, f.value}
	}
	return out
}

// Serialize renders the document as one line of JSON-ish text:
// {"_id":"<id>","<key>":"<value>",...}
//
// No escaping is performed on keys or values. Callers must not pass values
// containing '"', '\', ',', '{', or '}' if they need a faithful round trip.
func (d *Document) Serialize() string {
	var b strings.Builder
	b.Grow(32 + len(d.fields)*16)
	b.WriteString(`{"_id":"`)
	b.WriteString(d.id)
	b.WriteString(`"`)
	for _, f := range d.fields {
		b.WriteString(`,"`)
		b.WriteString(f.key)
		b.WriteString(`":"`)
		b.WriteString(f.value)
		b.WriteString(`"`)
	}
	b.WriteString("}")
	return b.String()
}

// Deserialize parses a single JSON-object line into a Document.
//
// Grammar: '{' then a comma-separated list of "key":value pairs then '}'.
// A value is either a double-quoted string (verbatim content, no escape
// processing) or an unquoted literal taken up to the next ',' or '}' and
// trimmed. Whitespace is skipped between tokens. The first "_id" occurrence
// wins and is not added as a field; later "_id" occurrences are discarded.
// A document with no "_id" by the end of parsing is an error.
func Deserialize(line string) (*Document, error) {
	s := jsonscan.Trim(line)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("document: not a JSON object: %q", line)
	}

	doc := &Document{}
	haveID := false
	i := 1
	end := len(s) - 1

	for i < end {
		for i < end && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r' || s[i] == ',') {
			i++
		}
		if i >= end {
			break
		}
		if s[i] != '"' {
			return nil, fmt.Errorf("document: expected '\"' at position %d in %q", i, line)
		}
		keyEnd := strings.IndexByte(s[i+1:end], '"')
		if keyEnd < 0 {
			return nil, fmt.Errorf("document: unterminated key in %q", line)
		}
		keyEnd += i + 1
		key := s[i+1 : keyEnd]
		i = keyEnd + 1

		for i < end && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
		if i >= end || s[i] != ':' {
			return nil, fmt.Errorf("document: expected ':' after key %q in %q", key, line)
		}
		i++
		for i < end && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
		if i >= end {
			return nil, fmt.Errorf("document: missing value for key %q in %q", key, line)
		}

		var value string
		if s[i] == '"' {
			valEnd := strings.IndexByte(s[i+1:end], '"')
			if valEnd < 0 {
				return nil, fmt.Errorf("document: unterminated string value for key %q in %q", key, line)
			}
			valEnd += i + 1
			value = s[i+1 : valEnd]
			i = valEnd + 1
		} else {
			valEnd := strings.IndexAny(s[i:end], ",}")
			if valEnd < 0 {
				value = jsonscan.Trim(s[i:end])
				i = end
			} else {
				value = jsonscan.Trim(s[i : i+valEnd])
				i += valEnd
			}
		}

		if key == "_id" {
			if !haveID {
				doc.id = value
				haveID = true
			}
		} else {
			doc.AddField(key, value)
		}
	}

	if doc.id == "" {
		return nil, fmt.Errorf("document: missing _id in %q", line)
	}
	return doc, nil
}
