package batch

import (
	"net/http"
	"regexp"
	"strings"
)

// Header names used by the batch format
const (
	HeaderContentType             = "Content-Type"
	HeaderContentTransferEncoding = "Content-Transfer-Encoding"
	HeaderContentLength           = "Content-Length"
	HeaderContentID               = "Content-Id"
	HeaderLocation                = "Location"

	BinaryEncoding = "binary"
)

// Expected content types of the parts of a batch body
var (
	PatternMultipartMixed  = regexp.MustCompile(`(?i)^multipart/mixed(\s*;.*)?$`)
	PatternApplicationHTTP = regexp.MustCompile(`(?i)^application/http(\s*;.*)?$`)
	PatternBatchPart       = regexp.MustCompile(`(?i)^(multipart/mixed|application/http)(\s*;.*)?$`)
)

// HeaderField is a single header name along with every value
// it was given and the line it was first seen on
type HeaderField struct {
	Name       string
	Values     []string
	LineNumber int
}

// Value returns the first value of the field
func (f *HeaderField) Value() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// Header is a block of header fields of a batch part or of an
// embedded request. Field names are matched case-insensitively.
type Header struct {
	LineNumber int

	fields map[string]*HeaderField
	// order keeps the lower cased names in insertion order
	order []string
}

// NewHeader creates an empty Header block starting at lineNumber
func NewHeader(lineNumber int) *Header {
	return &Header{
		LineNumber: lineNumber,
		fields:     make(map[string]*HeaderField),
	}
}

// Add appends value to the field called name
func (h *Header) Add(name string, value string, lineNumber int) {
	key := strings.ToLower(name)

	field, exists := h.fields[key]
	if !exists {
		field = &HeaderField{
			Name:       name,
			LineNumber: lineNumber,
		}
		h.fields[key] = field
		h.order = append(h.order, key)
	}

	field.Values = append(field.Values, value)
}

// Set replaces every value of the field called name with value
func (h *Header) Set(name string, value string, lineNumber int) {
	h.Del(name)
	h.Add(name, value, lineNumber)
}

// Del removes the field called name
func (h *Header) Del(name string) {
	key := strings.ToLower(name)
	if _, exists := h.fields[key]; !exists {
		return
	}

	delete(h.fields, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Field returns the field called name or nil if absent
func (h *Header) Field(name string) *HeaderField {
	return h.fields[strings.ToLower(name)]
}

// Values returns every value of the field called name
func (h *Header) Values(name string) []string {
	field := h.Field(name)
	if field == nil {
		return nil
	}
	return field.Values
}

// Get returns the first value of the field called name
// or the empty string if absent
func (h *Header) Get(name string) string {
	field := h.Field(name)
	if field == nil {
		return ""
	}
	return field.Value()
}

// Matches reports whether the field called name has exactly
// one value and that value matches pattern
func (h *Header) Matches(name string, pattern *regexp.Regexp) bool {
	values := h.Values(name)
	if len(values) != 1 {
		return false
	}
	return pattern.MatchString(strings.TrimSpace(values[0]))
}

// Fields returns the fields in the order they were first added
func (h *Header) Fields() []*HeaderField {
	fields := make([]*HeaderField, 0, len(h.order))
	for _, key := range h.order {
		fields = append(fields, h.fields[key])
	}
	return fields
}

// Clone returns a deep copy of the header block
func (h *Header) Clone() *Header {
	clone := NewHeader(h.LineNumber)
	for _, field := range h.Fields() {
		for _, value := range field.Values {
			clone.Add(field.Name, value, field.LineNumber)
		}
	}
	return clone
}

// HTTPHeader converts the header block to an http.Header
func (h *Header) HTTPHeader() http.Header {
	header := make(http.Header, len(h.order))
	for _, field := range h.Fields() {
		for _, value := range field.Values {
			header.Add(field.Name, value)
		}
	}
	return header
}
