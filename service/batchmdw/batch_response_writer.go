package batchmdw

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	"github.com/kava-labs/odata-batch-service/batch"
	"github.com/kava-labs/odata-batch-service/service/cachemdw"
)

const (
	batchResponseBoundaryPrefix     = "batchresponse_"
	changeSetResponseBoundaryPrefix = "changesetresponse_"
)

// batchResponseWriter renders the response parts of a batch as a
// multipart/mixed body and writes it to the underlying ResponseWriter
type batchResponseWriter struct {
	http.ResponseWriter

	batchID string
	// changeSets counts the nested boundaries written so far
	changeSets int
	// independent counts the responses of parts that are not change sets
	independent int
	// cacheHits tracks the number of cache hits across independent responses
	cacheHits   int
	cacheStatus string
}

// newBatchResponseWriter creates a new batchResponseWriter for the batch with batchID
func newBatchResponseWriter(w http.ResponseWriter, batchID string) *batchResponseWriter {
	return &batchResponseWriter{
		ResponseWriter: w,
		batchID:        batchID,
	}
}

// FlushResponses encodes responseParts in order and writes them to the
// underlying ResponseWriter along with the batch headers
func (w *batchResponseWriter) FlushResponses(responseParts []*batch.ResponsePart) error {
	var body bytes.Buffer

	mw := multipart.NewWriter(&body)
	if err := mw.SetBoundary(batchResponseBoundaryPrefix + w.batchID); err != nil {
		return err
	}

	for _, part := range responseParts {
		if err := w.writePart(mw, part); err != nil {
			return err
		}
	}

	if err := mw.Close(); err != nil {
		return err
	}

	// write cache hit header based on results of all independent requests
	w.cacheStatus = cacheHitValue(w.independent, w.cacheHits)

	header := w.ResponseWriter.Header()
	header.Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	header.Set("Content-Length", strconv.Itoa(body.Len()))
	header.Set(ODataVersionHeaderKey, ODataVersionHeaderValue)
	header.Set(BatchIDHeaderKey, w.batchID)
	header.Set(cachemdw.CacheHeaderKey, w.cacheStatus)

	w.ResponseWriter.WriteHeader(http.StatusOK)
	_, err := w.ResponseWriter.Write(body.Bytes())

	return err
}

func (w *batchResponseWriter) writePart(mw *multipart.Writer, part *batch.ResponsePart) error {
	if part == nil || len(part.Responses) == 0 {
		return fmt.Errorf("batch part has no response")
	}

	// a failed change set is answered with the single response it failed with
	if !part.IsChangeSet || part.Failed() {
		if !part.IsChangeSet {
			w.trackCacheStatus(part.Responses)
		}
		return writeResponse(mw, part.Responses[0])
	}

	w.changeSets++

	var nested bytes.Buffer
	cw := multipart.NewWriter(&nested)
	if err := cw.SetBoundary(fmt.Sprintf("%s%s_%d", changeSetResponseBoundaryPrefix, w.batchID, w.changeSets)); err != nil {
		return err
	}

	for _, response := range part.Responses {
		if err := writeResponse(cw, response); err != nil {
			return err
		}
	}

	if err := cw.Close(); err != nil {
		return err
	}

	pw, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"multipart/mixed; boundary=" + cw.Boundary()},
	})
	if err != nil {
		return err
	}

	_, err = pw.Write(nested.Bytes())
	return err
}

func (w *batchResponseWriter) trackCacheStatus(responses []*batch.Response) {
	for _, response := range responses {
		w.independent++
		if cachemdw.IsCacheHitHeaders(response.Header) {
			w.cacheHits++
		}
	}
}

// writeResponse writes response as an application/http part of mw
func writeResponse(mw *multipart.Writer, response *batch.Response) error {
	mimeHeader := textproto.MIMEHeader{
		"Content-Type":              {"application/http"},
		"Content-Transfer-Encoding": {"binary"},
	}
	if contentID := response.Header.Get(batch.HeaderContentID); contentID != "" {
		mimeHeader.Set("Content-ID", contentID)
	}

	pw, err := mw.CreatePart(mimeHeader)
	if err != nil {
		return err
	}

	_, err = pw.Write(encodeResponse(response))
	return err
}

// encodeResponse serializes response as an HTTP/1.1 response message
func encodeResponse(response *batch.Response) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", response.StatusCode, http.StatusText(response.StatusCode))

	header := make(http.Header, len(response.Header)+1)
	for key, values := range response.Header {
		if key == batch.HeaderContentID {
			continue
		}
		header[key] = values
	}
	header.Del("Content-Length")
	if len(response.Body) > 0 {
		header.Set("Content-Length", strconv.Itoa(len(response.Body)))
	}
	header.Write(&buf)

	buf.WriteString("\r\n")
	buf.Write(response.Body)

	return buf.Bytes()
}

// cacheHitValue handles the combined response's CacheHeader
func cacheHitValue(totalNum, cacheHits int) string {
	// totalNum is 0 for batches made only of change sets, which are never cached
	if cacheHits == 0 || totalNum == 0 {
		// case 1. no results from cache => MISS
		return cachemdw.CacheMissHeaderValue
	} else if cacheHits == totalNum {
		// case 2: all results from cache => HIT
		return cachemdw.CacheHitHeaderValue
	}
	//case 3: some results from cache => PARTIAL
	return cachemdw.CachePartialHeaderValue
}
