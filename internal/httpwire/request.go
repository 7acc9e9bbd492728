// Package httpwire implements the HTTP/1.x wire codec used by the DittoWeb
// server: parsing raw request bytes into a Request and serializing a Response
// back into bytes.
//
// The codec is intentionally a subset of RFC 9112:
//   - No chunked transfer encoding, header folding, or pipelining
//   - Header names are case-folded to lower case, last value wins
//   - The body is whatever follows the first blank line
//
// All functions are pure and safe for concurrent use from any number of
// workers.
package httpwire

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRequest indicates the raw bytes could not be parsed as an HTTP
// request: the head/body separator is missing or the request line does not
// have three tokens. Individual malformed header lines are skipped and do not
// produce this error.
//
// Parse failures are not recoverable mid-stream (the byte offset of the next
// request is unknown), so callers should respond 400 and close.
var ErrMalformedRequest = errors.New("malformed HTTP request")

const (
	headSeparator = "\r\n\r\n"
	lineSeparator = "\r\n"
)

// Request is a single parsed HTTP request. It is immutable after parsing and
// discarded once the response has been written.
type Request struct {
	Method  string
	Path    string
	Version string

	// Headers maps lower-cased header names to values. Duplicate headers
	// resolve last-one-wins.
	Headers map[string]string

	Body []byte
}

// ParseRequest parses raw bytes read from a connection into a Request.
//
// The head is split from the body on the first blank line. The request line
// must contain method, path and version separated by single spaces. Header
// lines missing the ": " delimiter are skipped, not fatal.
func ParseRequest(raw []byte) (*Request, error) {
	head, body, found := bytes.Cut(raw, []byte(headSeparator))
	if !found {
		return nil, fmt.Errorf("missing head/body separator: %w", ErrMalformedRequest)
	}

	lines := strings.Split(string(head), lineSeparator)

	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("bad request line %q: %w", lines[0], ErrMalformedRequest)
	}

	headers := make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		headers[strings.ToLower(name)] = value
	}

	return &Request{
		Method:  parts[0],
		Path:    parts[1],
		Version: parts[2],
		Headers: headers,
		Body:    body,
	}, nil
}

// Header returns the value of the named header (case-insensitive) or "".
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// IsHTTP11 reports whether the request declared HTTP/1.1.
func (r *Request) IsHTTP11() bool {
	return strings.HasSuffix(r.Version, "/1.1")
}

// IsHTTP10 reports whether the request declared HTTP/1.0.
func (r *Request) IsHTTP10() bool {
	return strings.HasSuffix(r.Version, "/1.0")
}

// Encode serializes the request back to wire format. Header order is not
// preserved from the original bytes; names are emitted in canonical
// lower-case form.
func (r *Request) Encode() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s %s %s%s", r.Method, r.Path, r.Version, lineSeparator)
	for name, value := range r.Headers {
		fmt.Fprintf(&buf, "%s: %s%s", name, value, lineSeparator)
	}
	buf.WriteString(lineSeparator)
	buf.Write(r.Body)

	return buf.Bytes()
}
