package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kava-labs/odata-batch-service/logging"
)

var ErrNilRequestProcessor = errors.New("batch handler requires a request processor")

// HandlerConfig wraps values used to create a new Handler
type HandlerConfig struct {
	RequestProcessor RequestProcessor
	// ChangeSetProcessor defaults to SequentialChangeSetProcessor
	ChangeSetProcessor ChangeSetProcessor
	// PartConcurrency is the number of parts of one batch executed at
	// the same time, values below 1 mean one part at a time
	PartConcurrency int
	Logger          *logging.ServiceLogger
}

// Handler executes the parts of a batch request
type Handler struct {
	requestProcessor   RequestProcessor
	changeSetProcessor ChangeSetProcessor
	partConcurrency    int
	*logging.ServiceLogger
}

// NewHandler creates a Handler from config, returning the handler and error (if any)
func NewHandler(config HandlerConfig) (*Handler, error) {
	if config.RequestProcessor == nil {
		return nil, ErrNilRequestProcessor
	}

	changeSetProcessor := config.ChangeSetProcessor
	if changeSetProcessor == nil {
		changeSetProcessor = SequentialChangeSetProcessor{}
	}

	partConcurrency := config.PartConcurrency
	if partConcurrency < 1 {
		partConcurrency = 1
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Handler{
		requestProcessor:   config.RequestProcessor,
		changeSetProcessor: changeSetProcessor,
		partConcurrency:    partConcurrency,
		ServiceLogger:      logger,
	}, nil
}

// HandleBatch executes every part of a batch and returns one response
// part per input part, in the order the parts were given. The failure
// of one part never stops the others, failed parts are reported through
// ResponsePart.Err. An error is only returned if ctx is done before all
// parts were executed.
func (h *Handler) HandleBatch(ctx context.Context, parts []Part) ([]*ResponsePart, error) {
	responseParts := make([]*ResponsePart, len(parts))

	var group errgroup.Group
	group.SetLimit(h.partConcurrency)

	for i, part := range parts {
		i, part := i, part

		group.Go(func() error {
			responsePart, err := h.HandleBatchRequest(ctx, part)
			if err != nil {
				h.Debug().Err(err).Int("part", i).Bool("change_set", part.IsChangeSet()).Msg("batch part failed")
			}
			responseParts[i] = responsePart
			return nil
		})
	}

	group.Wait()

	if err := ctx.Err(); err != nil {
		return responseParts, err
	}

	return responseParts, nil
}

// HandleBatchRequest executes a single batch part. The returned
// response part is never nil, if the part failed as a whole the error
// is returned as well and the response part holds its error response.
func (h *Handler) HandleBatchRequest(ctx context.Context, part Part) (*ResponsePart, error) {
	switch p := part.(type) {
	case *ChangeSet:
		return h.handleChangeSet(ctx, p)
	case *IndependentRequest:
		return h.handleIndependentRequest(ctx, p)
	default:
		err := fmt.Errorf("unsupported batch part %T", part)
		return newFailedResponsePart(err, false, ""), err
	}
}

func (h *Handler) handleIndependentRequest(ctx context.Context, part *IndependentRequest) (*ResponsePart, error) {
	op := newOperation(h.requestProcessor, part, h.ServiceLogger)

	response, err := op.Handle(ctx, part.Request)
	if err != nil {
		return newFailedResponsePart(err, false, part.Request.ContentID), err
	}

	return &ResponsePart{
		Responses:   []*Response{response},
		IsChangeSet: false,
	}, nil
}

func (h *Handler) handleChangeSet(ctx context.Context, part *ChangeSet) (*ResponsePart, error) {
	h.Trace().Int("requests", len(part.Requests())).Msg("change set pending")

	ordered, err := NewChangeSetSorter(part.Requests()).OrderedRequests()
	if err != nil {
		h.Debug().Err(err).Msg("change set failed")
		return newFailedResponsePart(err, true, ""), err
	}

	op := newOperation(h.requestProcessor, part, h.ServiceLogger)

	responses, err := h.changeSetProcessor.ExecuteChangeSet(ctx, op, ordered, part)
	if err == nil {
		err = checkChangeSetResponses(ordered, responses)
	}
	if err != nil {
		h.Debug().Err(err).Int("executed", len(responses)).Msg("change set failed")
		return newFailedResponsePart(err, true, ""), err
	}

	h.Trace().Int("resolved_content_ids", op.Mapping().Len()).Msg("change set complete")

	return &ResponsePart{
		Responses:   inSubmissionOrder(part.Requests(), ordered, responses),
		IsChangeSet: true,
	}, nil
}

// inSubmissionOrder rearranges the responses of the ordered requests
// to match the order the requests were submitted in
func inSubmissionOrder(submitted []*Request, ordered []*Request, responses []*Response) []*Response {
	indexOf := make(map[*Request]int, len(submitted))
	for i, req := range submitted {
		indexOf[req] = i
	}

	arranged := make([]*Response, len(responses))
	for i, req := range ordered {
		arranged[indexOf[req]] = responses[i]
	}

	return arranged
}

// checkChangeSetResponses enforces that a change set only succeeds if
// every request was answered without an error status
func checkChangeSetResponses(requests []*Request, responses []*Response) error {
	if len(responses) != len(requests) {
		return fmt.Errorf("change set processor returned %d responses for %d requests", len(responses), len(requests))
	}

	for i, response := range responses {
		if response == nil {
			return fmt.Errorf("change set processor returned no response for %s %s", requests[i].Method, requests[i].ODataPath)
		}
		if response.Failed() {
			return &ChangeSetFailedError{Request: requests[i], Response: response}
		}
	}

	return nil
}
