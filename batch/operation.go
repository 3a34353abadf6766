package batch

import (
	"context"

	"github.com/kava-labs/odata-batch-service/logging"
)

// RequestProcessor executes a single decoded request
type RequestProcessor interface {
	Process(ctx context.Context, req *Request) (*Response, error)
}

// RequestProcessorFunc adapts a function to a RequestProcessor
type RequestProcessorFunc func(ctx context.Context, req *Request) (*Response, error)

// Process implements RequestProcessor
func (f RequestProcessorFunc) Process(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// ChangeSetProcessor executes the ordered requests of a change set.
// Implementations must run every request through op.Handle, in order,
// and stop at the first failure.
type ChangeSetProcessor interface {
	ExecuteChangeSet(ctx context.Context, op *Operation, requests []*Request, changeSet *ChangeSet) ([]*Response, error)
}

// Operation carries the state of one batch part through its execution.
// It owns the part's UriMapping, so references can only ever resolve to
// resources of the same part.
type Operation struct {
	processor RequestProcessor
	part      Part
	mapping   *UriMapping
	logger    *logging.ServiceLogger
}

func newOperation(processor RequestProcessor, part Part, logger *logging.ServiceLogger) *Operation {
	return &Operation{
		processor: processor,
		part:      part,
		mapping:   NewUriMapping(),
		logger:    logger,
	}
}

// Mapping returns the Content-Ids resolved so far
func (op *Operation) Mapping() *UriMapping {
	return op.mapping
}

// Handle executes req as part of the operation's batch part. For a
// change set the request's references are resolved before it is
// dispatched and its resource path is recorded afterwards. The request's
// Content-Id is copied onto the response.
func (op *Operation) Handle(ctx context.Context, req *Request) (*Response, error) {
	if op.part.IsChangeSet() {
		op.logger.Trace().Str("content_id", req.ContentID).Str("path", req.ODataPath).Msg("resolving references")

		if err := ResolveReferences(req, op.mapping); err != nil {
			return nil, err
		}
	}

	op.logger.Trace().Str("method", req.Method).Str("uri", req.RequestURI()).Msg("dispatching request")

	response, err := op.processor.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	if op.part.IsChangeSet() && !response.Failed() {
		op.record(req, response)
	}

	response.setContentID(req.ContentID)

	return response, nil
}

func (op *Operation) record(req *Request, res *Response) {
	if req.ContentID == "" {
		return
	}

	resourcePath, err := ResourcePath(req, res)
	if err != nil {
		op.logger.Debug().Err(err).Str("content_id", req.ContentID).Msg("no resource path to record")
		return
	}

	op.logger.Trace().Str("content_id", req.ContentID).Str("resource_path", resourcePath).Msg("recording result")

	op.mapping.Add(req.ContentID, resourcePath)
}

// SequentialChangeSetProcessor runs the requests of a change set
// one after another and stops at the first request that fails
type SequentialChangeSetProcessor struct{}

var _ ChangeSetProcessor = SequentialChangeSetProcessor{}

// ExecuteChangeSet implements ChangeSetProcessor
func (SequentialChangeSetProcessor) ExecuteChangeSet(ctx context.Context, op *Operation, requests []*Request, changeSet *ChangeSet) ([]*Response, error) {
	responses := make([]*Response, 0, len(requests))

	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return responses, err
		}

		response, err := op.Handle(ctx, req)
		if err != nil {
			return responses, err
		}

		responses = append(responses, response)

		if response.Failed() {
			return responses, &ChangeSetFailedError{Request: req, Response: response}
		}
	}

	return responses, nil
}
