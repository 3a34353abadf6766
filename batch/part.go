package batch

import "errors"

// Part is one unit of a batch request, either an *IndependentRequest
// or a *ChangeSet
type Part interface {
	IsChangeSet() bool
	Requests() []*Request

	isPart()
}

// IndependentRequest is a batch part holding a single request
// that is executed on its own
type IndependentRequest struct {
	Request *Request
}

var _ Part = (*IndependentRequest)(nil)

// NewIndependentRequest wraps req in a batch part
func NewIndependentRequest(req *Request) *IndependentRequest {
	return &IndependentRequest{Request: req}
}

func (p *IndependentRequest) IsChangeSet() bool { return false }

func (p *IndependentRequest) Requests() []*Request { return []*Request{p.Request} }

func (p *IndependentRequest) isPart() {}

// ChangeSet is a batch part holding requests that succeed or fail
// as a unit and may reference each other by Content-Id
type ChangeSet struct {
	LineNumber int

	requests []*Request
}

var _ Part = (*ChangeSet)(nil)

// NewChangeSet creates a change set from requests in submission order.
// The bodies of the requests are scanned for references to Content-Ids
// declared by the other requests of the set.
func NewChangeSet(requests []*Request) *ChangeSet {
	declared := make(map[string]bool, len(requests))
	for _, req := range requests {
		if req.ContentID != "" {
			declared[req.ContentID] = true
		}
	}

	for _, req := range requests {
		req.BodyReferences = findBodyReferences(req.Body, declared, req.ContentID)
	}

	return &ChangeSet{requests: requests}
}

func (p *ChangeSet) IsChangeSet() bool { return true }

func (p *ChangeSet) Requests() []*Request { return p.requests }

func (p *ChangeSet) isPart() {}

// ResponsePart holds the responses of one batch part in the
// same shape as the part: a single response for an independent
// request, one response per request for a change set
type ResponsePart struct {
	Responses   []*Response
	IsChangeSet bool
	// Err is set when the part failed as a whole, Responses then
	// holds the single error response occupying the part's slot
	Err error
}

// Failed reports whether the part failed as a whole
func (p *ResponsePart) Failed() bool {
	return p.Err != nil
}

// newFailedResponsePart renders err as the only response of a part.
// When a change set request failed with an error status that
// response is used as is.
func newFailedResponsePart(err error, isChangeSet bool, contentID string) *ResponsePart {
	var response *Response

	var failed *ChangeSetFailedError
	if errors.As(err, &failed) {
		response = failed.Response
	} else {
		response = ErrorResponse(err)
		response.setContentID(contentID)
	}

	return &ResponsePart{
		Responses:   []*Response{response},
		IsChangeSet: isChangeSet,
		Err:         err,
	}
}
