package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DatabaseStatusPath = "/status/database"
)

// BatchServiceClient provides a client
// for making requests and decoding responses
// to the batch service API
type BatchServiceClient struct {
	*http.Client
	config            BatchServiceClientConfig
	DebugLogResponses bool
}

// BatchServiceClientConfig wraps values used to
// create a new BatchServiceClient
type BatchServiceClientConfig struct {
	// BatchServiceHostname is the scheme and host of the batch service
	BatchServiceHostname string
	// ServiceRootPath is the OData service root the batch endpoint belongs to
	ServiceRootPath   string
	DebugLogResponses bool
}

// NewBatchServiceClient creates a new BatchServiceClient
// using the provided config, returning the client and error (if any)
func NewBatchServiceClient(config BatchServiceClientConfig) (*BatchServiceClient, error) {
	httpClient := &http.Client{}
	return &BatchServiceClient{
		Client:            httpClient,
		DebugLogResponses: config.DebugLogResponses,
		config:            config,
	}, nil
}

// BatchResponse is the raw response to a posted batch
type BatchResponse struct {
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// PostBatch posts a multipart batch body with the given
// content type to the $batch endpoint of the service root
func (c *BatchServiceClient) PostBatch(ctx context.Context, contentType string, body []byte) (*BatchResponse, error) {
	url := strings.TrimSuffix(c.config.BatchServiceHostname, "/") + BatchPath(c.config.ServiceRootPath)

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{
			URL:     url,
			message: err.Error(),
		}
	}
	request.Header.Set("Content-Type", contentType)

	response, err := c.Do(request)
	if err != nil {
		return nil, &RequestError{
			URL:     url,
			message: err.Error(),
		}
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &RequestError{
			URL:        url,
			StatusCode: response.StatusCode,
			message:    err.Error(),
		}
	}

	if c.DebugLogResponses {
		fmt.Printf("Request Path %s \n Response Body %s \n  Response Status Code %d \n ", url, string(responseBody), response.StatusCode)
	}

	return &BatchResponse{
		StatusCode:  response.StatusCode,
		ContentType: response.Header.Get("Content-Type"),
		Header:      response.Header,
		Body:        responseBody,
	}, nil
}

// GetDatabaseStatus calls `DatabaseStatusPath` to
// get metadata related to batch service database operations
func (c *BatchServiceClient) GetDatabaseStatus(ctx context.Context) (DatabaseStatusResponse, error) {
	var response DatabaseStatusResponse
	url := c.config.BatchServiceHostname + DatabaseStatusPath

	request, err := CreateRequest(ctx, http.MethodGet, url, nil)

	if err != nil {
		return response, err
	}

	err = Call(*c, request, &response)

	return response, err
}

// RequestError provides additional details about the failed request.
type RequestError struct {
	message    string
	URL        string
	StatusCode int
}

// Error implements the error interface for RequestError.
func (err *RequestError) Error() string {
	return err.message
}

// NewError creates a new RequestError
func NewError(message, url string, statusCode int) error {
	return &RequestError{message, url, statusCode}
}

// CreateRequest isolates duplicate code in creating http search request.
func CreateRequest(ctx context.Context, method string, path string, params interface{}) (*http.Request, error) {
	var buf bytes.Buffer
	var req *http.Request
	err := json.NewEncoder(&buf).Encode(&params)
	if err != nil {
		return req, err
	}
	req, err = http.NewRequestWithContext(ctx, method, path, &buf)
	if err != nil {
		return req, &RequestError{
			URL:     path,
			message: err.Error(),
		}
	}
	return req, nil
}

// Call makes an http request to a JSON HTTP api
// decoding the JSON response to the result interface if non-nil
// returning error (if any)
func Call(client BatchServiceClient, request *http.Request, result interface{}) error {
	response, err := client.Do(request)

	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}

	defer response.Body.Close()

	if !(response.StatusCode >= 200 && response.StatusCode <= 299) {
		requestURL := request.URL.String()
		return &RequestError{
			StatusCode: response.StatusCode,
			URL:        requestURL,
			message:    fmt.Sprintf("request to %s error server http error %d", requestURL, response.StatusCode),
		}
	}

	// If no result is expected, don't attempt to decode a potentially
	// empty response stream and avoid incurring EOF errors
	if result == nil {
		return nil
	}
	// Check if debug is on
	if client.DebugLogResponses {
		var bodyBytes []byte
		if response.Body != nil {
			bodyBytes, err = io.ReadAll(response.Body)
			if err != nil {
				return &RequestError{
					URL:     request.URL.String(),
					message: err.Error(),
				}
			}
			fmt.Printf("Request Path %s \n Response Body %s \n  Response Status Code %d \n ", request.URL, string(bodyBytes), response.StatusCode)

		}
		// Repopulate body with the data read
		response.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	}
	err = json.NewDecoder(response.Body).Decode(&result)
	if err != nil {
		return &RequestError{
			URL:     request.URL.String(),
			message: err.Error(),
		}
	}
	return nil
}
