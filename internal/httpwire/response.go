package httpwire

import (
	"bytes"
	"fmt"
	"time"
)

// ServerName is the fixed Server header value sent on every response.
const ServerName = "DittoWeb/0.1"

const (
	// KeepAliveTimeout is the idle window advertised in the Keep-Alive
	// header and enforced by the connection read deadline.
	KeepAliveTimeout = 30 * time.Second

	// MaxRequestsPerConn is the advertised and enforced per-connection
	// request ceiling.
	MaxRequestsPerConn = 100
)

// rfc1123GMT is the Date header layout. RFC 1123 with the zone pinned to
// GMT, which is what HTTP requires for times rendered from UTC.
const rfc1123GMT = "Mon, 02 Jan 2006 15:04:05 GMT"

// headerField is a single response header. Headers are kept as a slice so
// the caller-supplied order survives serialization.
type headerField struct {
	name  string
	value string
}

// Response is an HTTP response under construction. Encode always emits
// Content-Length matching the body, Date, Server and exactly one Connection
// variant, so every response satisfies the wire contract regardless of which
// handler built it.
type Response struct {
	StatusCode int
	StatusText string

	// KeepAlive selects between "Connection: keep-alive" (plus the
	// Keep-Alive parameters) and "Connection: close".
	KeepAlive bool

	headers []headerField
	Body    []byte
}

// NewResponse builds a response with the given status, content type and body.
func NewResponse(status int, contentType string, body []byte) *Response {
	r := &Response{
		StatusCode: status,
		StatusText: StatusText(status),
		Body:       body,
	}
	r.AddHeader("Content-Type", contentType)
	return r
}

// NewErrorResponse builds the standard HTML error page for a status code.
func NewErrorResponse(status int) *Response {
	body := fmt.Sprintf("<html><body><h1>%d %s</h1></body></html>", status, StatusText(status))
	return NewResponse(status, "text/html; charset=utf-8", []byte(body))
}

// AddHeader appends a header, preserving insertion order.
func (r *Response) AddHeader(name, value string) {
	r.headers = append(r.headers, headerField{name: name, value: value})
}

// Header returns the first value set for the named header, or "".
func (r *Response) Header(name string) string {
	for _, h := range r.headers {
		if h.name == name {
			return h.value
		}
	}
	return ""
}

// Encode serializes the response: status line, caller headers in order, then
// Content-Length, Date (RFC 1123 GMT), Server and the Connection headers,
// a blank line, and the raw body.
func (r *Response) Encode() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "HTTP/1.1 %d %s%s", r.StatusCode, r.StatusText, lineSeparator)

	for _, h := range r.headers {
		fmt.Fprintf(&buf, "%s: %s%s", h.name, h.value, lineSeparator)
	}

	fmt.Fprintf(&buf, "Content-Length: %d%s", len(r.Body), lineSeparator)
	fmt.Fprintf(&buf, "Date: %s%s", time.Now().UTC().Format(rfc1123GMT), lineSeparator)
	fmt.Fprintf(&buf, "Server: %s%s", ServerName, lineSeparator)

	if r.KeepAlive {
		fmt.Fprintf(&buf, "Connection: keep-alive%s", lineSeparator)
		fmt.Fprintf(&buf, "Keep-Alive: timeout=%d, max=%d%s",
			int(KeepAliveTimeout.Seconds()), MaxRequestsPerConn, lineSeparator)
	} else {
		fmt.Fprintf(&buf, "Connection: close%s", lineSeparator)
	}

	buf.WriteString(lineSeparator)
	buf.Write(r.Body)

	return buf.Bytes()
}

// StatusText returns the reason phrase for the status codes this server
// emits. Unknown codes map to "Unknown".
func StatusText(status int) string {
	switch status {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 400:
		return "Bad Request"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 415:
		return "Unsupported Media Type"
	case 500:
		return "Internal Server Error"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}
