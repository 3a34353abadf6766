package batchmdw

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kava-labs/odata-batch-service/batch"
	"github.com/kava-labs/odata-batch-service/decode"
	"github.com/kava-labs/odata-batch-service/logging"
)

const (
	ODataVersionHeaderKey   = "OData-Version"
	ODataVersionHeaderValue = "4.0"
	BatchIDHeaderKey        = "X-OData-Batch-Id"
)

type BatchMiddlewareConfig struct {
	ServiceLogger *logging.ServiceLogger

	// BaseURI is the path of the service root the batch endpoint belongs to
	BaseURI string
	// MaxBodyBytes limits the size of a batch body, values below 1 disable the limit
	MaxBodyBytes int64
}

// CreateBatchProcessingMiddleware returns a handler which decodes a batch body,
// executes its parts with handler and writes the multipart batch response
func CreateBatchProcessingMiddleware(handler *batch.Handler, config *BatchMiddlewareConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeErrorResponse(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed for batch requests", r.Method))
			return
		}

		body := r.Body
		if config.MaxBodyBytes > 0 {
			body = http.MaxBytesReader(w, r.Body, config.MaxBodyBytes)
		}

		rawBody, err := io.ReadAll(body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeErrorResponse(w, http.StatusRequestEntityTooLarge, fmt.Errorf("batch body exceeds %d bytes", maxBytesErr.Limit))
				return
			}

			config.ServiceLogger.Debug().Err(err).Msg("error reading batch body")
			writeErrorResponse(w, http.StatusBadRequest, err)
			return
		}

		batchID := uuid.New().String()
		logger := config.ServiceLogger.WithBatchID(batchID)

		parts, err := decode.DecodeBatchRequest(rawBody, r.Header.Get("Content-Type"), config.BaseURI)
		if err != nil {
			logger.Debug().Err(err).Msg("error decoding batch body")
			w.Header().Set(BatchIDHeaderKey, batchID)
			writeBatchError(w, err)
			return
		}

		logger.Debug().Int("parts", len(parts)).Msg("handling batch")

		ctx := WithBatchInfo(r.Context(), BatchInfo{
			ID:         batchID,
			Hostname:   r.Host,
			UserAgent:  r.UserAgent(),
			ReceivedAt: time.Now(),
		})

		responseParts, err := handler.HandleBatch(ctx, parts)
		if err != nil {
			// the client went away or the server is shutting down
			logger.Debug().Err(err).Msg("batch aborted")
			w.Header().Set(BatchIDHeaderKey, batchID)
			writeErrorResponse(w, http.StatusServiceUnavailable, err)
			return
		}

		brw := newBatchResponseWriter(w, batchID)
		if err := brw.FlushResponses(responseParts); err != nil {
			logger.Error().Err(err).Msg("error writing batch response")
			return
		}

		logger.Debug().Str("cache", brw.cacheStatus).Msg("batch complete")
	}
}

func writeBatchError(w http.ResponseWriter, err error) {
	response := batch.ErrorResponse(err)
	writeErrorResponse(w, response.StatusCode, err)
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, err error) {
	response := batch.ErrorResponse(err)
	for key, values := range response.Header {
		w.Header()[key] = values
	}
	w.Header().Set(ODataVersionHeaderKey, ODataVersionHeaderValue)
	w.WriteHeader(statusCode)
	w.Write(response.Body)
}
