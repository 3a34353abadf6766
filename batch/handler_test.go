package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-service/batch"
)

// recordingProcessor answers every request from a function
// and records the requests it was given
type recordingProcessor struct {
	mu         sync.Mutex
	dispatched []string
	respond    func(req *batch.Request) (*batch.Response, error)
}

func (p *recordingProcessor) Process(ctx context.Context, req *batch.Request) (*batch.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dispatched = append(p.dispatched, req.Method+" "+req.ODataPath)

	if p.respond != nil {
		return p.respond(req)
	}
	return batch.NewResponse(http.StatusOK, nil), nil
}

// entityStore creates entities with increasing keys starting at 42
func entityStore() func(req *batch.Request) (*batch.Response, error) {
	nextKey := 42
	return func(req *batch.Request) (*batch.Response, error) {
		if req.Method != http.MethodPost {
			return batch.NewResponse(http.StatusNoContent, nil), nil
		}
		res := batch.NewResponse(http.StatusCreated, nil)
		res.Header.Set(batch.HeaderLocation, fmt.Sprintf("/odata%s(%d)", req.ODataPath, nextKey))
		nextKey++
		return res, nil
	}
}

func newTestHandler(t *testing.T, processor batch.RequestProcessor) *batch.Handler {
	handler, err := batch.NewHandler(batch.HandlerConfig{RequestProcessor: processor})
	require.NoError(t, err)
	return handler
}

func TestUnitTestNewHandlerRequiresProcessor(t *testing.T) {
	_, err := batch.NewHandler(batch.HandlerConfig{})
	require.ErrorIs(t, err, batch.ErrNilRequestProcessor)
}

func TestUnitTestHandleChangeSetResolvesCreatedResource(t *testing.T) {
	processor := &recordingProcessor{respond: entityStore()}
	handler := newTestHandler(t, processor)

	// the PATCH is submitted first and must wait for the POST
	patch := newRequest(http.MethodPatch, "/$1", "2", `{"Name":"renamed"}`)
	post := newRequest(http.MethodPost, "/Entities", "1", `{"Name":"new"}`)
	changeSet := batch.NewChangeSet([]*batch.Request{patch, post})

	responsePart, err := handler.HandleBatchRequest(context.Background(), changeSet)
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /Entities", "PATCH /Entities(42)"}, processor.dispatched)
	assert.Equal(t, "/Entities(42)", patch.ODataPath)

	require.True(t, responsePart.IsChangeSet)
	require.False(t, responsePart.Failed())
	require.Len(t, responsePart.Responses, 2)

	// responses keep submission order
	assert.Equal(t, http.StatusNoContent, responsePart.Responses[0].StatusCode)
	assert.Equal(t, "2", responsePart.Responses[0].Header.Get(batch.HeaderContentID))
	assert.Equal(t, http.StatusCreated, responsePart.Responses[1].StatusCode)
	assert.Equal(t, "1", responsePart.Responses[1].Header.Get(batch.HeaderContentID))
}

func TestUnitTestHandleChangeSetUndeclaredReference(t *testing.T) {
	processor := &recordingProcessor{respond: entityStore()}
	handler := newTestHandler(t, processor)

	changeSet := batch.NewChangeSet([]*batch.Request{
		newRequest(http.MethodPost, "/Entities", "1", `{}`),
		newRequest(http.MethodPatch, "/$9", "2", `{}`),
		newRequest(http.MethodDelete, "/Entities(1)", "3", ""),
	})

	responsePart, err := handler.HandleBatchRequest(context.Background(), changeSet)
	require.ErrorIs(t, err, batch.ErrRequiredContentIDNotFound)
	assert.Contains(t, err.Error(), "Required Content-Id for reference")

	// nothing after the failing request is dispatched
	assert.Equal(t, []string{"POST /Entities"}, processor.dispatched)

	require.True(t, responsePart.Failed())
	require.True(t, responsePart.IsChangeSet)
	require.Len(t, responsePart.Responses, 1)
	assert.Equal(t, http.StatusBadRequest, responsePart.Responses[0].StatusCode)

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(responsePart.Responses[0].Body, &body))
	assert.Equal(t, string(batch.RequiredContentIDNotFound), body.Error.Code)
}

func TestUnitTestHandleChangeSetCycleDispatchesNothing(t *testing.T) {
	processor := &recordingProcessor{}
	handler := newTestHandler(t, processor)

	changeSet := batch.NewChangeSet([]*batch.Request{
		newRequest(http.MethodPatch, "/$B", "A", ""),
		newRequest(http.MethodPatch, "/$A", "B", ""),
	})

	responsePart, err := handler.HandleBatchRequest(context.Background(), changeSet)
	require.ErrorIs(t, err, batch.ErrReferenceCycle)
	assert.Empty(t, processor.dispatched)
	assert.True(t, responsePart.Failed())
}

func TestUnitTestHandleChangeSetStopsAtFailedResponse(t *testing.T) {
	processor := &recordingProcessor{
		respond: func(req *batch.Request) (*batch.Response, error) {
			if req.ContentID == "2" {
				return batch.NewResponse(http.StatusConflict, []byte(`{"error":{"code":"conflict","message":"exists"}}`)), nil
			}
			return batch.NewResponse(http.StatusNoContent, nil), nil
		},
	}
	handler := newTestHandler(t, processor)

	changeSet := batch.NewChangeSet([]*batch.Request{
		newRequest(http.MethodPatch, "/Entities(1)", "1", ""),
		newRequest(http.MethodPatch, "/Entities(2)", "2", ""),
		newRequest(http.MethodPatch, "/Entities(3)", "3", ""),
	})

	responsePart, err := handler.HandleBatchRequest(context.Background(), changeSet)

	var failed *batch.ChangeSetFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "2", failed.Request.ContentID)

	assert.Equal(t, []string{"PATCH /Entities(1)", "PATCH /Entities(2)"}, processor.dispatched)

	require.Len(t, responsePart.Responses, 1)
	assert.Equal(t, http.StatusConflict, responsePart.Responses[0].StatusCode)
	assert.Equal(t, "2", responsePart.Responses[0].Header.Get(batch.HeaderContentID))
}

func TestUnitTestHandleChangeSetProcessorError(t *testing.T) {
	processorErr := errors.New("backend unavailable")
	processor := &recordingProcessor{
		respond: func(req *batch.Request) (*batch.Response, error) {
			return nil, processorErr
		},
	}
	handler := newTestHandler(t, processor)

	changeSet := batch.NewChangeSet([]*batch.Request{
		newRequest(http.MethodPost, "/Entities", "1", ""),
		newRequest(http.MethodPost, "/$1/Children", "2", ""),
	})

	responsePart, err := handler.HandleBatchRequest(context.Background(), changeSet)
	require.ErrorIs(t, err, processorErr)
	assert.Len(t, processor.dispatched, 1)
	assert.Equal(t, http.StatusInternalServerError, responsePart.Responses[0].StatusCode)
}

func TestUnitTestHandleIndependentRequestCopiesContentID(t *testing.T) {
	processor := &recordingProcessor{}
	handler := newTestHandler(t, processor)

	responsePart, err := handler.HandleBatchRequest(context.Background(), batch.NewIndependentRequest(newRequest(http.MethodGet, "/Entities", "q1", "")))
	require.NoError(t, err)
	require.False(t, responsePart.IsChangeSet)
	require.Len(t, responsePart.Responses, 1)
	assert.Equal(t, "q1", responsePart.Responses[0].Header.Get(batch.HeaderContentID))

	responsePart, err = handler.HandleBatchRequest(context.Background(), batch.NewIndependentRequest(newRequest(http.MethodGet, "/Entities", "", "")))
	require.NoError(t, err)
	_, present := responsePart.Responses[0].Header[batch.HeaderContentID]
	assert.False(t, present)
}

func TestUnitTestHandleIndependentRequestDropsProcessorContentID(t *testing.T) {
	processor := &recordingProcessor{
		respond: func(req *batch.Request) (*batch.Response, error) {
			res := batch.NewResponse(http.StatusOK, nil)
			res.Header.Set(batch.HeaderContentID, "backend")
			return res, nil
		},
	}
	handler := newTestHandler(t, processor)

	responsePart, err := handler.HandleBatchRequest(context.Background(), batch.NewIndependentRequest(newRequest(http.MethodGet, "/Entities", "", "")))
	require.NoError(t, err)
	_, present := responsePart.Responses[0].Header[batch.HeaderContentID]
	assert.False(t, present)

	responsePart, err = handler.HandleBatchRequest(context.Background(), batch.NewIndependentRequest(newRequest(http.MethodGet, "/Entities", "q1", "")))
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, responsePart.Responses[0].Header.Values(batch.HeaderContentID))
}

func TestUnitTestHandleIndependentRequestDoesNotResolveReferences(t *testing.T) {
	processor := &recordingProcessor{}
	handler := newTestHandler(t, processor)

	_, err := handler.HandleBatchRequest(context.Background(), batch.NewIndependentRequest(newRequest(http.MethodGet, "/$1", "", "")))
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /$1"}, processor.dispatched)
}

func TestUnitTestHandleBatchIsolatesParts(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			processor := &recordingProcessor{respond: entityStore()}
			handler, err := batch.NewHandler(batch.HandlerConfig{
				RequestProcessor: processor,
				PartConcurrency:  concurrency,
			})
			require.NoError(t, err)

			parts := []batch.Part{
				batch.NewChangeSet([]*batch.Request{
					newRequest(http.MethodPost, "/Entities", "1", ""),
				}),
				// Content-Id 1 of the first change set is not visible here
				batch.NewChangeSet([]*batch.Request{
					newRequest(http.MethodPatch, "/$1", "2", ""),
				}),
				batch.NewIndependentRequest(newRequest(http.MethodGet, "/Entities", "3", "")),
			}

			responseParts, err := handler.HandleBatch(context.Background(), parts)
			require.NoError(t, err)
			require.Len(t, responseParts, 3)

			assert.False(t, responseParts[0].Failed())
			assert.True(t, responseParts[0].IsChangeSet)

			assert.True(t, responseParts[1].Failed())
			assert.ErrorIs(t, responseParts[1].Err, batch.ErrRequiredContentIDNotFound)

			assert.False(t, responseParts[2].Failed())
			assert.False(t, responseParts[2].IsChangeSet)
			assert.Equal(t, "3", responseParts[2].Responses[0].Header.Get(batch.HeaderContentID))
		})
	}
}

func TestUnitTestHandleBatchCancelled(t *testing.T) {
	processor := &recordingProcessor{}
	handler := newTestHandler(t, processor)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.HandleBatch(ctx, []batch.Part{
		batch.NewChangeSet([]*batch.Request{newRequest(http.MethodDelete, "/Entities(1)", "", "")}),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, processor.dispatched)
}
