package decode

import (
	"mime"
	"strings"

	"github.com/kava-labs/odata-batch-service/batch"
)

// RFC 2046 limit on the length of a multipart boundary
const maxBoundaryLength = 70

// line is a single line of a batch body without its line terminator
type line struct {
	text   string
	number int
}

// splitLines splits body into lines numbered from firstLine,
// accepting both CRLF and bare LF terminators
func splitLines(body string, firstLine int) []line {
	texts := strings.Split(body, "\n")
	lines := make([]line, 0, len(texts))
	for i, text := range texts {
		lines = append(lines, line{
			text:   strings.TrimSuffix(text, "\r"),
			number: firstLine + i,
		})
	}
	return lines
}

// GetBoundary validates contentType is a multipart/mixed media type
// and returns its boundary parameter
func GetBoundary(contentType string, lineNumber int) (string, error) {
	header := batch.NewHeader(lineNumber)
	if contentType != "" {
		header.Add(batch.HeaderContentType, contentType, lineNumber)
	}
	if err := batch.ValidateContentType(header, batch.PatternMultipartMixed); err != nil {
		return "", err
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", batch.NewError(batch.InvalidContentType, "invalid content type "+contentType+": "+err.Error(), lineNumber)
	}

	boundary := params["boundary"]
	if boundary == "" || len(boundary) > maxBoundaryLength || strings.TrimRight(boundary, " ") != boundary {
		return "", batch.NewError(batch.InvalidBoundary, "invalid boundary "+boundary, lineNumber)
	}

	return boundary, nil
}

// splitParts returns the lines of every body part delimited by boundary.
// The preamble before the first delimiter and the epilogue after the
// close delimiter are discarded.
func splitParts(lines []line, boundary string, startLine int) ([][]line, error) {
	delimiter := "--" + boundary
	closeDelimiter := delimiter + "--"

	var parts [][]line
	var current []line
	open := false

	for _, l := range lines {
		text := strings.TrimRight(l.text, " \t")

		switch text {
		case closeDelimiter:
			if open {
				parts = append(parts, current)
			}
			return parts, nil
		case delimiter:
			if open {
				parts = append(parts, current)
			}
			open = true
			current = nil
			continue
		}

		if open {
			current = append(current, l)
		}
	}

	if !open {
		return nil, batch.NewError(batch.MissingBoundaryDelimiter, "missing boundary delimiter "+delimiter, startLine)
	}

	lastLine := startLine
	if len(lines) > 0 {
		lastLine = lines[len(lines)-1].number
	}

	return nil, batch.NewError(batch.MissingCloseDelimiter, "missing close delimiter "+closeDelimiter, lastLine)
}

// parseHeaderBlock reads header fields up to the first blank line and
// returns them along with the lines following the blank line. If strict
// is set a missing blank line is an error, otherwise the block ends with
// the lines.
func parseHeaderBlock(lines []line, startLine int, strict bool) (*batch.Header, []line, error) {
	headerLine := startLine
	if len(lines) > 0 {
		headerLine = lines[0].number
	}
	header := batch.NewHeader(headerLine)

	type rawField struct {
		name  string
		value string
		line  int
	}
	var fields []rawField

	i := 0
	terminated := false
	for ; i < len(lines); i++ {
		text := lines[i].text

		if strings.TrimSpace(text) == "" {
			terminated = true
			i++
			break
		}

		// folded continuation of the previous field
		if (text[0] == ' ' || text[0] == '\t') && len(fields) > 0 {
			fields[len(fields)-1].value += " " + strings.TrimSpace(text)
			continue
		}

		colon := strings.IndexByte(text, ':')
		if colon <= 0 || strings.TrimSpace(text[:colon]) != text[:colon] {
			return nil, nil, batch.NewError(batch.InvalidHeader, "invalid header "+text, lines[i].number)
		}

		fields = append(fields, rawField{
			name:  text[:colon],
			value: strings.TrimSpace(text[colon+1:]),
			line:  lines[i].number,
		})
	}

	if !terminated && strict {
		lastLine := headerLine
		if len(lines) > 0 {
			lastLine = lines[len(lines)-1].number
		}
		return nil, nil, batch.NewError(batch.MissingBlankLine, "missing blank line after header block", lastLine)
	}

	for _, field := range fields {
		header.Add(field.name, field.value, field.line)
	}

	return header, lines[i:], nil
}

// joinBody joins lines with CRLF, leaving out trailing blank lines
func joinBody(lines []line) []byte {
	end := len(lines)
	for end > 0 && lines[end-1].text == "" {
		end--
	}
	if end == 0 {
		return nil
	}

	texts := make([]string, 0, end)
	for _, l := range lines[:end] {
		texts = append(texts, l.text)
	}

	return []byte(strings.Join(texts, "\r\n"))
}
