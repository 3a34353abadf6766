package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/negroni"
	"golang.org/x/time/rate"

	"github.com/kava-labs/odata-batch-service/batch"
	"github.com/kava-labs/odata-batch-service/logging"
)

// BackendError is returned when a request could not be forwarded
// to the backend or the backend did not answer it
type BackendError struct {
	Err error
}

// Error implements the error interface for BackendError.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend request failed: %s", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// StatusCode implements batch.StatusCoder
func (e *BackendError) StatusCode() int {
	return http.StatusBadGateway
}

// BackendProcessorConfig wraps values used to create a new BackendProcessor
type BackendProcessorConfig struct {
	BackendURL url.URL
	// BaseURI is the client visible service root, Location headers
	// pointing into the backend service root are rewritten to it
	BaseURI string
	// RequestsPerSecond limits the requests sent to the backend, 0 disables the limit
	RequestsPerSecond float64
	RequestBurst      int
	// Timeout bounds a single backend request, 0 disables the timeout
	Timeout time.Duration
	Logger  *logging.ServiceLogger
}

// BackendProcessor is a batch.RequestProcessor forwarding
// every request to the backend OData service
type BackendProcessor struct {
	backendURL url.URL
	baseURI    string
	proxy      *httputil.ReverseProxy
	limiter    *rate.Limiter
	timeout    time.Duration
	*logging.ServiceLogger
}

var _ batch.RequestProcessor = (*BackendProcessor)(nil)

// backendResponseWriter implements the interface for http.ResponseWriter
// and stores the status code and header and body of the backend response
type backendResponseWriter struct {
	negroni.ResponseWriter
	body *bytes.Buffer
	// err is set by the proxy when the backend could not be reached
	err error
}

// Write copies the response from the backend server
func (w *backendResponseWriter) Write(b []byte) (int, error) {
	if !w.Written() {
		// The status will be StatusOK if WriteHeader has not been called yet
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

// bufferResponseWriter is the base writer the negroni.ResponseWriter
// of a backendResponseWriter writes headers to
type bufferResponseWriter struct {
	header http.Header
}

func (w *bufferResponseWriter) Header() http.Header {
	return w.header
}

func (w *bufferResponseWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

func (w *bufferResponseWriter) WriteHeader(statusCode int) {}

func newBackendResponseWriter() *backendResponseWriter {
	return &backendResponseWriter{
		ResponseWriter: negroni.NewResponseWriter(&bufferResponseWriter{header: make(http.Header)}),
		body:           new(bytes.Buffer),
	}
}

// NewBackendProcessor creates a BackendProcessor from config
func NewBackendProcessor(config BackendProcessorConfig) *BackendProcessor {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	backendURL := config.BackendURL

	// create an http handler that will proxy any request to the backend service root
	proxy := httputil.NewSingleHostReverseProxy(&backendURL)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if bw, ok := w.(*backendResponseWriter); ok {
			bw.err = err
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.RequestBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &BackendProcessor{
		backendURL:    backendURL,
		baseURI:       strings.TrimSuffix(config.BaseURI, "/"),
		proxy:         proxy,
		limiter:       limiter,
		timeout:       config.Timeout,
		ServiceLogger: logger,
	}
}

// Process forwards req to the backend and returns the backend's response
func (p *BackendProcessor) Process(ctx context.Context, req *batch.Request) (*batch.Response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for backend rate limit: %w", err)
		}
	}

	// the proxy falls back to http.CloseNotifier for contexts that can't be canceled
	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	target := req.ODataPath
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	backendRequest, err := http.NewRequestWithContext(ctx, req.Method, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("building backend request for %s %s: %w", req.Method, target, err)
	}
	if req.Header != nil {
		backendRequest.Header = req.Header.HTTPHeader()
	}
	// the body may have changed size when references were resolved
	backendRequest.Header.Del("Content-Length")
	backendRequest.Header.Del(batch.HeaderContentID)

	p.Trace().Str("method", req.Method).Str("target", target).Msg("proxying request")

	proxyRequestAt := time.Now()

	bw := newBackendResponseWriter()
	p.proxy.ServeHTTP(bw, backendRequest)

	p.Debug().
		Str("method", req.Method).
		Str("target", target).
		Int("status", bw.Status()).
		Dur("latency", time.Since(proxyRequestAt)).
		Msg("backend response")

	if bw.err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &BackendError{Err: ctxErr}
		}
		return nil, &BackendError{Err: bw.err}
	}

	response := batch.NewResponse(bw.Status(), bw.body.Bytes())
	response.Header = bw.Header().Clone()
	response.Header.Del("Content-Length")
	response.Header.Del(batch.HeaderContentID)

	if location := response.Header.Get(batch.HeaderLocation); location != "" {
		response.Header.Set(batch.HeaderLocation, p.rewriteLocation(location))
	}

	return response, nil
}

// rewriteLocation maps a location inside the backend service
// root to the same resource under the client visible service root
func (p *BackendProcessor) rewriteLocation(location string) string {
	locationURL, err := url.Parse(location)
	if err != nil {
		return location
	}

	if locationURL.IsAbs() && locationURL.Host != p.backendURL.Host {
		return location
	}

	backendRoot := strings.TrimSuffix(p.backendURL.EscapedPath(), "/")
	path := locationURL.EscapedPath()
	if backendRoot != "" {
		if path != backendRoot && !strings.HasPrefix(path, backendRoot+"/") {
			return location
		}
		path = path[len(backendRoot):]
	}

	rewritten := p.baseURI + path
	if locationURL.RawQuery != "" {
		rewritten += "?" + locationURL.RawQuery
	}

	return rewritten
}
