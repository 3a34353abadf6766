package batch

import (
	"errors"
	"fmt"
	"net/http"
)

// MessageKey identifies the kind of a batch protocol error
type MessageKey string

const (
	MissingContentType             MessageKey = "MISSING_CONTENT_TYPE"
	InvalidContentType             MessageKey = "INVALID_CONTENT_TYPE"
	MissingContentTransferEncoding MessageKey = "MISSING_CONTENT_TRANSFER_ENCODING"
	InvalidContentTransferEncoding MessageKey = "INVALID_CONTENT_TRANSFER_ENCODING"
	InvalidContentLength           MessageKey = "INVALID_CONTENT_LENGTH"
	InvalidHeader                  MessageKey = "INVALID_HEADER"
	InvalidBoundary                MessageKey = "INVALID_BOUNDARY"
	MissingBoundaryDelimiter       MessageKey = "MISSING_BOUNDARY_DELIMITER"
	MissingCloseDelimiter          MessageKey = "MISSING_CLOSE_DELIMITER"
	MissingBlankLine               MessageKey = "MISSING_BLANK_LINE"
	InvalidRequestLine             MessageKey = "INVALID_REQUEST_LINE"
	InvalidMethod                  MessageKey = "INVALID_METHOD"
	InvalidURI                     MessageKey = "INVALID_URI"
	InvalidChangeSetMethod         MessageKey = "INVALID_CHANGESET_METHOD"
	EmptyChangeSet                 MessageKey = "EMPTY_CHANGESET"
	DuplicateContentID             MessageKey = "DUPLICATE_CONTENT_ID"
	ReferenceCycle                 MessageKey = "REFERENCE_CYCLE"
	RequiredContentIDNotFound      MessageKey = "REQUIRED_CONTENT_ID_NOT_FOUND"
)

// Error is a framing or reference error raised while decoding
// or executing a batch request. LineNumber is the line of the
// batch body the error originates from, or 0 when unknown.
type Error struct {
	Message    string
	Key        MessageKey
	LineNumber int
}

// Error implements the error interface for Error.
func (e *Error) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s (line %d)", e.Message, e.LineNumber)
	}
	return e.Message
}

// Is matches any *Error with the same message key, which allows
// callers to use the sentinel errors below with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Key == e.Key
}

// StatusCode implements StatusCoder, every protocol error is the client's fault
func (e *Error) StatusCode() int {
	return http.StatusBadRequest
}

// NewError creates an Error for key
func NewError(key MessageKey, message string, lineNumber int) *Error {
	return &Error{
		Message:    message,
		Key:        key,
		LineNumber: lineNumber,
	}
}

// Sentinel errors for use with errors.Is
var (
	ErrMissingContentType             = &Error{Key: MissingContentType, Message: "missing content type"}
	ErrInvalidContentType             = &Error{Key: InvalidContentType, Message: "invalid content type"}
	ErrMissingContentTransferEncoding = &Error{Key: MissingContentTransferEncoding, Message: "missing mandatory content transfer encoding"}
	ErrInvalidContentTransferEncoding = &Error{Key: InvalidContentTransferEncoding, Message: "invalid content transfer encoding"}
	ErrInvalidContentLength           = &Error{Key: InvalidContentLength, Message: "invalid content length"}
	ErrInvalidHeader                  = &Error{Key: InvalidHeader, Message: "invalid header"}
	ErrInvalidBoundary                = &Error{Key: InvalidBoundary, Message: "invalid boundary"}
	ErrMissingBoundaryDelimiter       = &Error{Key: MissingBoundaryDelimiter, Message: "missing boundary delimiter"}
	ErrMissingCloseDelimiter          = &Error{Key: MissingCloseDelimiter, Message: "missing close delimiter"}
	ErrMissingBlankLine               = &Error{Key: MissingBlankLine, Message: "missing blank line"}
	ErrInvalidRequestLine             = &Error{Key: InvalidRequestLine, Message: "invalid request line"}
	ErrInvalidMethod                  = &Error{Key: InvalidMethod, Message: "invalid method"}
	ErrInvalidURI                     = &Error{Key: InvalidURI, Message: "invalid uri"}
	ErrInvalidChangeSetMethod         = &Error{Key: InvalidChangeSetMethod, Message: "invalid change set method"}
	ErrEmptyChangeSet                 = &Error{Key: EmptyChangeSet, Message: "empty change set"}
	ErrDuplicateContentID             = &Error{Key: DuplicateContentID, Message: "duplicate content id"}
	ErrReferenceCycle                 = &Error{Key: ReferenceCycle, Message: "reference cycle"}
	ErrRequiredContentIDNotFound      = &Error{Key: RequiredContentIDNotFound, Message: "required content id not found"}
)

// IsReferenceError reports whether err was raised while ordering
// a change set or resolving one of its Content-Id references
func IsReferenceError(err error) bool {
	return errors.Is(err, ErrDuplicateContentID) ||
		errors.Is(err, ErrReferenceCycle) ||
		errors.Is(err, ErrRequiredContentIDNotFound)
}

// StatusCoder is implemented by errors that know which
// HTTP status they should be rendered with
type StatusCoder interface {
	StatusCode() int
}

// ChangeSetFailedError is returned when a request of a change set
// was answered with an error status, which fails the whole change set
type ChangeSetFailedError struct {
	Request  *Request
	Response *Response
}

// Error implements the error interface for ChangeSetFailedError.
func (e *ChangeSetFailedError) Error() string {
	return fmt.Sprintf("change set request %s %s failed with status %d", e.Request.Method, e.Request.ODataPath, e.Response.StatusCode)
}

// StatusCode implements StatusCoder
func (e *ChangeSetFailedError) StatusCode() int {
	return e.Response.StatusCode
}
