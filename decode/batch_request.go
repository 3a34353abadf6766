// package decode decodes the multipart/mixed body of an OData
// batch request into the parts executed by the batch package
package decode

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kava-labs/odata-batch-service/batch"
)

// HTTPVersion is the only protocol version accepted in the
// request line of an embedded request
const HTTPVersion = "HTTP/1.1"

// Methods that may be used by the requests of a batch
var BatchMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// IsBatchMethod returns true if method may be used by a request of a batch
func IsBatchMethod(method string) bool {
	for _, batchMethod := range BatchMethods {
		if method == batchMethod {
			return true
		}
	}

	return false
}

// DecodeBatchRequest decodes body, posted with contentType to the
// service root baseURI, into the parts of the batch in the order
// they were declared, returning the parts and error (if any).
// Any framing error fails the whole batch.
func DecodeBatchRequest(body []byte, contentType string, baseURI string) ([]batch.Part, error) {
	boundary, err := GetBoundary(contentType, 0)
	if err != nil {
		return nil, err
	}

	lines := splitLines(string(body), 1)

	rawParts, err := splitParts(lines, boundary, 1)
	if err != nil {
		return nil, err
	}

	d := &decoder{
		baseURI: strings.TrimSuffix(baseURI, "/"),
	}

	parts := make([]batch.Part, 0, len(rawParts))
	for _, rawPart := range rawParts {
		part, err := d.decodePart(rawPart, 1)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	return parts, nil
}

type decoder struct {
	// baseURI is the service root path without a trailing slash
	baseURI string
}

func (d *decoder) decodePart(lines []line, startLine int) (batch.Part, error) {
	header, rest, err := parseHeaderBlock(lines, startLine, true)
	if err != nil {
		return nil, err
	}

	if err := batch.ValidateContentType(header, batch.PatternBatchPart); err != nil {
		return nil, err
	}

	if header.Matches(batch.HeaderContentType, batch.PatternMultipartMixed) {
		return d.decodeChangeSet(header, rest)
	}

	req, err := d.decodeRequest(header, rest, false)
	if err != nil {
		return nil, err
	}

	return batch.NewIndependentRequest(req), nil
}

func (d *decoder) decodeChangeSet(header *batch.Header, lines []line) (*batch.ChangeSet, error) {
	field := header.Field(batch.HeaderContentType)

	boundary, err := GetBoundary(field.Value(), field.LineNumber)
	if err != nil {
		return nil, err
	}

	rawParts, err := splitParts(lines, boundary, header.LineNumber)
	if err != nil {
		return nil, err
	}

	if len(rawParts) == 0 {
		return nil, batch.NewError(batch.EmptyChangeSet, "change set contains no requests", header.LineNumber)
	}

	requests := make([]*batch.Request, 0, len(rawParts))
	for _, rawPart := range rawParts {
		partHeader, rest, err := parseHeaderBlock(rawPart, header.LineNumber, true)
		if err != nil {
			return nil, err
		}

		if err := batch.ValidateContentType(partHeader, batch.PatternApplicationHTTP); err != nil {
			return nil, err
		}

		req, err := d.decodeRequest(partHeader, rest, true)
		if err != nil {
			return nil, err
		}

		requests = append(requests, req)
	}

	changeSet := batch.NewChangeSet(requests)
	changeSet.LineNumber = header.LineNumber

	return changeSet, nil
}

// decodeRequest decodes the application/http part described by
// mimeHeader into the embedded request
func (d *decoder) decodeRequest(mimeHeader *batch.Header, lines []line, inChangeSet bool) (*batch.Request, error) {
	if err := batch.ValidateContentTransferEncoding(mimeHeader); err != nil {
		return nil, err
	}

	if _, err := batch.GetContentLength(mimeHeader); err != nil {
		return nil, err
	}

	for len(lines) > 0 && strings.TrimSpace(lines[0].text) == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return nil, batch.NewError(batch.InvalidRequestLine, "missing request line", mimeHeader.LineNumber)
	}

	requestLine := lines[0]
	method, target, err := parseRequestLine(requestLine)
	if err != nil {
		return nil, err
	}

	if inChangeSet && method == http.MethodGet {
		return nil, batch.NewError(batch.InvalidChangeSetMethod, "method "+method+" is not allowed in a change set", requestLine.number)
	}

	header, bodyLines, err := parseHeaderBlock(lines[1:], requestLine.number+1, false)
	if err != nil {
		return nil, err
	}

	body, err := readBody(header, bodyLines)
	if err != nil {
		return nil, err
	}

	odataPath, rawQuery, err := d.parseTarget(target, requestLine.number)
	if err != nil {
		return nil, err
	}

	contentID := mimeHeader.Get(batch.HeaderContentID)
	if contentID == "" {
		contentID = header.Get(batch.HeaderContentID)
	}

	return &batch.Request{
		Method:     method,
		RawURI:     target,
		BaseURI:    d.baseURI,
		ODataPath:  odataPath,
		RawQuery:   rawQuery,
		Header:     header,
		Body:       body,
		ContentID:  contentID,
		Reference:  batch.ParseReference(odataPath),
		LineNumber: requestLine.number,
	}, nil
}

// parseRequestLine splits "METHOD target HTTP/1.1"
func parseRequestLine(l line) (string, string, error) {
	fields := strings.Fields(l.text)
	if len(fields) != 3 || fields[2] != HTTPVersion {
		return "", "", batch.NewError(batch.InvalidRequestLine, "invalid request line "+l.text, l.number)
	}

	method := fields[0]
	if !IsBatchMethod(method) {
		return "", "", batch.NewError(batch.InvalidMethod, "invalid method "+method, l.number)
	}

	return method, fields[1], nil
}

// readBody returns the body of an embedded request, cut to
// its declared content length if it has one
func readBody(header *batch.Header, lines []line) ([]byte, error) {
	body := joinBody(lines)

	contentLength, err := batch.GetContentLength(header)
	if err != nil {
		return nil, err
	}
	if contentLength < 0 {
		return body, nil
	}

	if contentLength > len(body) {
		field := header.Field(batch.HeaderContentLength)
		return nil, batch.NewError(
			batch.InvalidContentLength,
			fmt.Sprintf("content length %d exceeds body of %d bytes", contentLength, len(body)),
			field.LineNumber,
		)
	}

	return body[:contentLength], nil
}

// parseTarget returns the path of target relative to the service
// root along with its query. Relative targets, including Content-Id
// references, are relative to the service root already. Absolute
// targets must address a resource below the service root.
func (d *decoder) parseTarget(target string, lineNumber int) (string, string, error) {
	targetURL, err := url.Parse(target)
	if err != nil {
		return "", "", batch.NewError(batch.InvalidURI, "invalid uri "+target+": "+err.Error(), lineNumber)
	}

	path := targetURL.EscapedPath()

	if targetURL.IsAbs() || strings.HasPrefix(path, "/") {
		if d.baseURI != "" {
			if path != d.baseURI && !strings.HasPrefix(path, d.baseURI+"/") {
				return "", "", batch.NewError(batch.InvalidURI, "uri "+target+" is not below service root "+d.baseURI, lineNumber)
			}
			path = path[len(d.baseURI):]
		}
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return path, targetURL.RawQuery, nil
}
