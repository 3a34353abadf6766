package batch

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Request is a single HTTP request extracted from a batch body
type Request struct {
	Method string
	// RawURI is the request target exactly as written in the batch body
	RawURI string
	// BaseURI is the path of the service root the batch was posted to
	BaseURI string
	// ODataPath is the target path relative to BaseURI, it always starts with "/"
	ODataPath string
	RawQuery  string
	Header    *Header
	Body      []byte
	ContentID string
	// Reference is set when ODataPath starts with a Content-Id reference
	Reference *Reference
	// BodyReferences lists the Content-Ids of sibling requests
	// referenced from the body, see NewChangeSet
	BodyReferences []string
	LineNumber     int
}

// RequestURI returns the absolute path and query of the request
func (r *Request) RequestURI() string {
	uri := strings.TrimSuffix(r.BaseURI, "/") + r.ODataPath
	if r.RawQuery != "" {
		uri += "?" + r.RawQuery
	}
	return uri
}

// IsCreate reports whether the request creates a new resource
// whose address is assigned by the server
func (r *Request) IsCreate() bool {
	return r.Method == http.MethodPost
}

// ReferencedContentIDs returns the Content-Ids the request refers to
func (r *Request) ReferencedContentIDs() []string {
	var ids []string
	if r.Reference != nil {
		ids = append(ids, r.Reference.ContentID)
	}
	for _, id := range r.BodyReferences {
		if r.Reference != nil && id == r.Reference.ContentID {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Response is the result of processing a single Request
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse creates a Response with an empty header
func NewResponse(statusCode int, body []byte) *Response {
	return &Response{
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       body,
	}
}

// Failed reports whether the response carries an error status
func (r *Response) Failed() bool {
	return r.StatusCode >= http.StatusBadRequest
}

// setContentID copies the Content-Id of the request onto the response,
// a response to a request without one carries none
func (r *Response) setContentID(contentID string) {
	if contentID == "" {
		r.Header.Del(HeaderContentID)
		return
	}
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(HeaderContentID, contentID)
}

// odataError is the OData JSON error format
type odataError struct {
	Error odataErrorDetail `json:"error"`
}

type odataErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse renders err as an OData JSON error response, using the
// status of the first StatusCoder in err's chain or 500 if there is none
func ErrorResponse(err error) *Response {
	statusCode := http.StatusInternalServerError
	var coder StatusCoder
	if errors.As(err, &coder) {
		statusCode = coder.StatusCode()
	}

	code := ""
	var batchErr *Error
	if errors.As(err, &batchErr) {
		code = string(batchErr.Key)
	}

	body, marshalErr := json.Marshal(odataError{
		Error: odataErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
	if marshalErr != nil {
		body = []byte(err.Error())
	}

	response := NewResponse(statusCode, body)
	response.Header.Set(HeaderContentType, "application/json")
	return response
}
