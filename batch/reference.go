package batch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
)

// system resources of an OData service that share the "$" prefix
// with Content-Id references
var systemResources = map[string]bool{
	"metadata": true,
	"batch":    true,
	"all":      true,
	"entity":   true,
	"root":     true,
	"count":    true,
	"value":    true,
	"ref":      true,
}

// Reference is a Content-Id reference at the start of a request target,
// e.g. the target "$1/Orders" is Reference{ContentID: "1", Remainder: "/Orders"}
type Reference struct {
	ContentID string
	Remainder string
}

// ParseReference extracts the reference an OData path starts with,
// returning nil when the path does not start with one
func ParseReference(odataPath string) *Reference {
	if !strings.HasPrefix(odataPath, "/$") {
		return nil
	}

	contentID, remainder := odataPath[2:], ""
	if i := strings.IndexByte(contentID, '/'); i >= 0 {
		contentID, remainder = contentID[:i], contentID[i:]
	}

	if contentID == "" || systemResources[contentID] || strings.HasPrefix(contentID, "crossjoin(") {
		return nil
	}

	return &Reference{
		ContentID: contentID,
		Remainder: remainder,
	}
}

// Resolve returns the path the reference stands for once the
// referenced request's resource path is known
func (r *Reference) Resolve(resourcePath string) string {
	return strings.TrimSuffix(resourcePath, "/") + r.Remainder
}

// String implements fmt.Stringer
func (r *Reference) String() string {
	return "$" + r.ContentID + r.Remainder
}

// UriMapping maps the Content-Id of an executed request to the path
// of the resource it created or modified. A mapping belongs to exactly
// one batch part and is not safe for concurrent use.
type UriMapping struct {
	uris map[string]string
}

// NewUriMapping creates an empty mapping
func NewUriMapping() *UriMapping {
	return &UriMapping{uris: make(map[string]string)}
}

// Get returns the resource path recorded for contentID
func (m *UriMapping) Get(contentID string) (string, bool) {
	uri, found := m.uris[contentID]
	return uri, found
}

// Add records resourcePath for contentID. Requests without a
// Content-Id are ignored, and the first path recorded for a
// Content-Id is kept.
func (m *UriMapping) Add(contentID string, resourcePath string) {
	if contentID == "" {
		return
	}
	if _, exists := m.uris[contentID]; exists {
		return
	}
	m.uris[contentID] = resourcePath
}

// Len returns the number of resolved Content-Ids
func (m *UriMapping) Len() int {
	return len(m.uris)
}

// ResolveReferences replaces the Content-Id references of req with the
// resource paths recorded in mapping. It fails without modifying req if
// any reference has not been resolved yet.
func ResolveReferences(req *Request, mapping *UriMapping) error {
	for _, contentID := range req.ReferencedContentIDs() {
		if _, found := mapping.Get(contentID); !found {
			return NewError(
				RequiredContentIDNotFound,
				fmt.Sprintf("Required Content-Id for reference %q not found.", contentID),
				req.LineNumber,
			)
		}
	}

	if req.Reference != nil {
		resourcePath, _ := mapping.Get(req.Reference.ContentID)
		req.ODataPath = req.Reference.Resolve(resourcePath)
		req.Reference = nil
	}

	if len(req.BodyReferences) > 0 {
		req.Body = replaceBodyReferences(req.Body, req.BodyReferences, mapping)
		req.BodyReferences = nil
	}

	return nil
}

// ResourcePath returns the path of the resource req acted on: for a
// create it is taken from the Location header of the response, for any
// other method it is the request's own path
func ResourcePath(req *Request, res *Response) (string, error) {
	if !req.IsCreate() {
		return req.ODataPath, nil
	}

	location := res.Header.Get(HeaderLocation)
	if location == "" {
		return "", fmt.Errorf("response to %s %s has no %s header", req.Method, req.ODataPath, HeaderLocation)
	}

	locationURL, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("error %s parsing %s header %s", err, HeaderLocation, location)
	}

	path := locationURL.EscapedPath()
	base := strings.TrimSuffix(req.BaseURI, "/")
	if base != "" && (path == base || strings.HasPrefix(path, base+"/")) {
		path = path[len(base):]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return path, nil
}

// findBodyReferences returns the ids of declared that occur in body as
// a JSON string starting with "$<id>", in order of first occurrence
func findBodyReferences(body []byte, declared map[string]bool, ownContentID string) []string {
	var found []string
	seen := make(map[string]bool)

	for i := 0; i+1 < len(body); i++ {
		if body[i] != '"' || body[i+1] != '$' {
			continue
		}

		id := readReferenceID(body[i+2:])
		if id == "" || id == ownContentID || !declared[id] || seen[id] {
			continue
		}

		seen[id] = true
		found = append(found, id)
	}

	return found
}

// readReferenceID reads an id up to the closing quote or the next path separator
func readReferenceID(b []byte) string {
	end := bytes.IndexAny(b, `"/`)
	if end <= 0 {
		return ""
	}
	return string(b[:end])
}

func replaceBodyReferences(body []byte, contentIDs []string, mapping *UriMapping) []byte {
	replacements := make([]string, 0, len(contentIDs)*4)
	for _, contentID := range contentIDs {
		resourcePath, _ := mapping.Get(contentID)
		replacements = append(replacements,
			`"$`+contentID+`"`, `"`+resourcePath+`"`,
			`"$`+contentID+`/`, `"`+strings.TrimSuffix(resourcePath, "/")+`/`,
		)
	}

	return []byte(strings.NewReplacer(replacements...).Replace(string(body)))
}
