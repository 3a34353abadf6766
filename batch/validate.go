package batch

import (
	"regexp"
	"strconv"
	"strings"
)

// content lengths are plain decimal numbers, a sign other than "-"
// is not accepted
var patternContentLength = regexp.MustCompile(`^-?[0-9]+$`)

// ValidateContentType checks the header block carries exactly one
// content type matching pattern, for example PatternMultipartMixed
// for a change set or PatternApplicationHTTP for a single request
func ValidateContentType(headers *Header, pattern *regexp.Regexp) error {
	field := headers.Field(HeaderContentType)
	if field == nil || len(field.Values) == 0 {
		return NewError(MissingContentType, "missing content type", headers.LineNumber)
	}

	if !headers.Matches(HeaderContentType, pattern) {
		return NewError(InvalidContentType, "invalid content type "+field.Value()+", expected "+pattern.String(), field.LineNumber)
	}

	return nil
}

// ValidateContentTransferEncoding checks the header block declares
// a single binary content transfer encoding
func ValidateContentTransferEncoding(headers *Header) error {
	field := headers.Field(HeaderContentTransferEncoding)
	if field == nil {
		return NewError(MissingContentTransferEncoding, "missing mandatory content transfer encoding", headers.LineNumber)
	}

	if len(field.Values) != 1 {
		return NewError(InvalidHeader, "invalid header "+HeaderContentTransferEncoding, field.LineNumber)
	}

	if !strings.EqualFold(BinaryEncoding, strings.TrimSpace(field.Value())) {
		return NewError(InvalidContentTransferEncoding, "invalid content transfer encoding "+field.Value(), field.LineNumber)
	}

	return nil
}

// GetContentLength returns the declared content length, or -1
// if the header block does not declare one
func GetContentLength(headers *Header) (int, error) {
	field := headers.Field(HeaderContentLength)
	if field == nil {
		return -1, nil
	}

	if len(field.Values) != 1 {
		return 0, NewError(InvalidHeader, "invalid header "+HeaderContentLength, field.LineNumber)
	}

	value := strings.TrimSpace(field.Value())
	if !patternContentLength.MatchString(value) {
		return 0, NewError(InvalidHeader, "invalid header "+HeaderContentLength+" value "+field.Value(), field.LineNumber)
	}

	contentLength, err := strconv.Atoi(value)
	if err != nil {
		return 0, NewError(InvalidHeader, "invalid header "+HeaderContentLength+" value "+field.Value(), field.LineNumber)
	}

	if contentLength < 0 {
		return 0, NewError(InvalidContentLength, "invalid content length "+field.Value(), field.LineNumber)
	}

	return contentLength, nil
}
