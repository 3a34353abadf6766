package batchmdw_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kava-labs/odata-batch-service/batch"
	"github.com/kava-labs/odata-batch-service/logging"
	"github.com/kava-labs/odata-batch-service/service/batchmdw"
	"github.com/kava-labs/odata-batch-service/service/cachemdw"
)

const testContentType = "multipart/mixed; boundary=batch_36522ad7"

func crlf(body string) []byte {
	return []byte(strings.ReplaceAll(body, "\n", "\r\n"))
}

var testBatchBody = crlf(`--batch_36522ad7
Content-Type: application/http
Content-Transfer-Encoding: binary
Content-ID: q1

GET Entities?$top=2 HTTP/1.1
Accept: application/json

--batch_36522ad7
Content-Type: multipart/mixed; boundary=changeset_77162fcd

--changeset_77162fcd
Content-Type: application/http
Content-Transfer-Encoding: binary
Content-ID: 2

PATCH $1 HTTP/1.1
Content-Type: application/json

{"Name":"renamed"}
--changeset_77162fcd
Content-Type: application/http
Content-Transfer-Encoding: binary
Content-ID: 1

POST /odata/Entities HTTP/1.1
Content-Type: application/json

{"Name":"new"}
--changeset_77162fcd--

--batch_36522ad7--
`)

// entityStore answers creates with a Location for key 42, reads
// as cache hits and everything else with 204
type entityStore struct {
	mu        sync.Mutex
	processed []string
	batchIDs  map[string]bool
}

func (s *entityStore) Process(ctx context.Context, req *batch.Request) (*batch.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed = append(s.processed, req.Method+" "+req.ODataPath)
	if info, ok := batchmdw.BatchInfoFromContext(ctx); ok {
		s.batchIDs[info.ID] = true
	}

	switch req.Method {
	case http.MethodPost:
		res := batch.NewResponse(http.StatusCreated, []byte(`{"ID":42}`))
		res.Header.Set(batch.HeaderLocation, "/odata"+req.ODataPath+"(42)")
		return res, nil
	case http.MethodGet:
		res := batch.NewResponse(http.StatusOK, []byte(`{"value":[]}`))
		res.Header.Set(cachemdw.CacheHeaderKey, cachemdw.CacheHitHeaderValue)
		return res, nil
	}

	return batch.NewResponse(http.StatusNoContent, nil), nil
}

func newTestServer(t *testing.T, maxBodyBytes int64) (*httptest.Server, *entityStore) {
	store := &entityStore{batchIDs: make(map[string]bool)}

	handler, err := batch.NewHandler(batch.HandlerConfig{
		RequestProcessor: store,
		PartConcurrency:  2,
	})
	require.NoError(t, err)

	server := httptest.NewServer(batchmdw.CreateBatchProcessingMiddleware(handler, &batchmdw.BatchMiddlewareConfig{
		ServiceLogger: logging.NewNop(),
		BaseURI:       "/odata",
		MaxBodyBytes:  maxBodyBytes,
	}))
	t.Cleanup(server.Close)

	return server, store
}

func postBatch(t *testing.T, server *httptest.Server, contentType string, body []byte) *http.Response {
	res, err := http.Post(server.URL+"/odata/$batch", contentType, bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func multipartReader(t *testing.T, contentType string, body io.Reader) *multipart.Reader {
	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)
	return multipart.NewReader(body, params["boundary"])
}

func readHTTPResponse(t *testing.T, part *multipart.Part) *http.Response {
	require.Equal(t, "application/http", part.Header.Get("Content-Type"))
	require.Equal(t, "binary", part.Header.Get("Content-Transfer-Encoding"))

	res, err := http.ReadResponse(bufio.NewReader(part), nil)
	require.NoError(t, err)
	return res
}

func TestUnitTestBatchProcessingMiddleware(t *testing.T) {
	server, store := newTestServer(t, 0)

	res := postBatch(t, server, testContentType, testBatchBody)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, batchmdw.ODataVersionHeaderValue, res.Header.Get(batchmdw.ODataVersionHeaderKey))
	assert.Equal(t, cachemdw.CacheHitHeaderValue, res.Header.Get(cachemdw.CacheHeaderKey))
	batchID := res.Header.Get(batchmdw.BatchIDHeaderKey)
	assert.True(t, store.batchIDs[batchID])

	reader := multipartReader(t, res.Header.Get("Content-Type"), res.Body)

	// independent request
	part, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "q1", part.Header.Get("Content-ID"))
	get := readHTTPResponse(t, part)
	assert.Equal(t, http.StatusOK, get.StatusCode)
	getBody, err := io.ReadAll(get.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"value":[]}`, string(getBody))

	// change set, responses in submission order
	part, err = reader.NextPart()
	require.NoError(t, err)
	changeSetReader := multipartReader(t, part.Header.Get("Content-Type"), part)

	patchPart, err := changeSetReader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "2", patchPart.Header.Get("Content-ID"))
	assert.Equal(t, http.StatusNoContent, readHTTPResponse(t, patchPart).StatusCode)

	postPart, err := changeSetReader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "1", postPart.Header.Get("Content-ID"))
	post := readHTTPResponse(t, postPart)
	assert.Equal(t, http.StatusCreated, post.StatusCode)
	assert.Equal(t, "/odata/Entities(42)", post.Header.Get("Location"))

	_, err = changeSetReader.NextPart()
	require.ErrorIs(t, err, io.EOF)

	_, err = reader.NextPart()
	require.ErrorIs(t, err, io.EOF)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Contains(t, store.processed, "PATCH /Entities(42)")
	assert.Contains(t, store.processed, "GET /Entities")
}

func TestUnitTestBatchProcessingMiddlewareFramingError(t *testing.T) {
	server, store := newTestServer(t, 0)

	body := bytes.TrimSuffix(testBatchBody, []byte("--batch_36522ad7--\r\n"))
	res := postBatch(t, server, testContentType, body)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.NotEmpty(t, res.Header.Get(batchmdw.BatchIDHeaderKey))

	var odataErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&odataErr))
	assert.Equal(t, string(batch.MissingCloseDelimiter), odataErr.Error.Code)

	assert.Empty(t, store.processed)
}

func TestUnitTestBatchProcessingMiddlewareInvalidContentType(t *testing.T) {
	server, _ := newTestServer(t, 0)

	res := postBatch(t, server, "application/json", testBatchBody)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestUnitTestBatchProcessingMiddlewareRejectsGet(t *testing.T) {
	server, _ := newTestServer(t, 0)

	res, err := http.Get(server.URL + "/odata/$batch")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Equal(t, http.MethodPost, res.Header.Get("Allow"))
}

func TestUnitTestBatchProcessingMiddlewareBodyLimit(t *testing.T) {
	server, store := newTestServer(t, 64)

	res := postBatch(t, server, testContentType, testBatchBody)
	require.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode)
	assert.Empty(t, store.processed)
}
