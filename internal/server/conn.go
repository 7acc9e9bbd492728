package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/marmos91/dittoweb/internal/httpwire"
	"github.com/marmos91/dittoweb/internal/logger"
)

// connState tags the per-connection protocol state machine. The states
// mirror the request lifecycle; keeping them explicit (rather than encoding
// the flow in nested control structures) makes the keep-alive, timeout and
// request-cap interactions testable in isolation.
type connState int

const (
	stateAwaitRequest connState = iota
	stateParsed
	stateRouted
	stateResponded
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitRequest:
		return "AwaitRequest"
	case stateParsed:
		return "Parsed"
	case stateRouted:
		return "Routed"
	case stateResponded:
		return "Responded"
	case stateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// readBufferSize bounds a single request read. Bodies are assumed to fit in
// one read; chunked transfer and large-body streaming are out of scope.
const readBufferSize = 8192

// conn owns one live connection and drives its request/response loop. It is
// owned exclusively by the worker currently processing it and never shared.
type conn struct {
	server   *Server
	conn     net.Conn
	workerID int

	state          connState
	requestsServed int

	// keepAlive is the decision computed from the current request's
	// version and Connection header; it governs every response sent in the
	// same iteration.
	keepAlive bool
}

// serve runs the state machine until it reaches Closed.
//
// Any panic during request handling is fatal to this connection only: a 500
// is attempted, the connection closes, and the worker returns to the queue.
// No failure propagates to the worker loop or to other connections.
func (c *conn) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[worker-%d] Panic handling %s: %v", c.workerID, c.remoteAddr(), r)
			c.writeResponse(httpwire.NewErrorResponse(500))
		}
		_ = c.conn.Close()
	}()

	c.state = stateAwaitRequest

	for c.state != stateClosed {
		select {
		case <-ctx.Done():
			logger.Debug("[worker-%d] Connection from %s closed: server shutdown", c.workerID, c.remoteAddr())
			return
		case <-c.server.shutdown:
			logger.Debug("[worker-%d] Connection from %s closed: server shutdown", c.workerID, c.remoteAddr())
			return
		default:
		}

		c.serveOne(ctx)
	}
}

// serveOne handles a single request/response exchange and leaves the state
// machine in either AwaitRequest (keep-alive) or Closed.
func (c *conn) serveOne(ctx context.Context) {
	raw, ok := c.readRequest()
	if !ok {
		c.transition(stateClosed)
		return
	}

	c.requestsServed++

	req, err := httpwire.ParseRequest(raw)
	if err != nil {
		// A parse failure leaves the next request's byte offset unknown,
		// so the connection cannot be safely reused.
		logger.Debug("[worker-%d] Parse error from %s: %v", c.workerID, c.remoteAddr(), err)
		c.writeResponse(httpwire.NewErrorResponse(400))
		c.transition(stateClosed)
		return
	}
	c.transition(stateParsed)

	c.keepAlive = decideKeepAlive(req, c.requestsServed, httpwire.MaxRequestsPerConn)

	// Mandatory Host validation, before any routing.
	host := req.Header("Host")
	if host == "" {
		c.respond(c.errorResponse(400))
		return
	}
	if host != c.server.hostPort {
		logger.Debug("[worker-%d] Host mismatch from %s: got %q want %q",
			c.workerID, c.remoteAddr(), host, c.server.hostPort)
		c.respond(c.errorResponse(403))
		return
	}

	c.transition(stateRouted)

	var resp *httpwire.Response
	switch req.Method {
	case "GET":
		resp = c.handleGet(ctx, req)
	case "POST":
		resp = c.handlePost(ctx, req)
	default:
		resp = c.errorResponse(405)
	}

	c.respond(resp)
}

// respond writes the response and advances the state machine: back to
// AwaitRequest when the response allows keep-alive, otherwise to Closed.
func (c *conn) respond(resp *httpwire.Response) {
	if !c.writeResponse(resp) {
		c.transition(stateClosed)
		return
	}
	c.transition(stateResponded)

	if resp.KeepAlive {
		c.transition(stateAwaitRequest)
	} else {
		c.transition(stateClosed)
	}
}

// decideKeepAlive computes the persistent-connection decision for one
// request:
//   - HTTP/1.1 stays open unless the client sent "Connection: close"
//   - HTTP/1.0 stays open only on an explicit "Connection: keep-alive"
//   - the per-connection request cap forces closure regardless of headers
func decideKeepAlive(req *httpwire.Request, requestsServed, maxRequests int) bool {
	if requestsServed >= maxRequests {
		return false
	}

	connHeader := strings.ToLower(req.Header("Connection"))
	switch {
	case req.IsHTTP11():
		return connHeader != "close"
	case req.IsHTTP10():
		return connHeader == "keep-alive"
	default:
		return false
	}
}

// readRequest blocks for the next request with the idle timeout armed.
// Returns false when the connection should close silently: idle timeout,
// peer half-close, or a read error.
func (c *conn) readRequest() ([]byte, bool) {
	if c.server.config.IdleTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
			logger.Warn("[worker-%d] Failed to set read deadline for %s: %v", c.workerID, c.remoteAddr(), err)
		}
	}

	buf := make([]byte, readBufferSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF):
			logger.Debug("[worker-%d] Connection from %s closed by client", c.workerID, c.remoteAddr())
		case errors.As(err, &netErr) && netErr.Timeout():
			logger.Debug("[worker-%d] Idle connection from %s timed out", c.workerID, c.remoteAddr())
		default:
			logger.Debug("[worker-%d] Read error from %s: %v", c.workerID, c.remoteAddr(), err)
		}
		return nil, false
	}
	if n == 0 {
		return nil, false
	}

	return buf[:n], true
}

// writeResponse encodes and writes a response under the write deadline,
// recording the status in metrics. Returns false if the write failed.
func (c *conn) writeResponse(resp *httpwire.Response) bool {
	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			logger.Warn("[worker-%d] Failed to set write deadline for %s: %v", c.workerID, c.remoteAddr(), err)
		}
	}

	c.server.metrics.RecordRequest(resp.StatusCode)

	if _, err := c.conn.Write(resp.Encode()); err != nil {
		logger.Debug("[worker-%d] Write error to %s: %v", c.workerID, c.remoteAddr(), err)
		return false
	}

	logger.Debug("[worker-%d] %s -> %d %s (keep-alive=%v, request %d)",
		c.workerID, c.remoteAddr(), resp.StatusCode, resp.StatusText, resp.KeepAlive, c.requestsServed)
	return true
}

// errorResponse builds an error page honoring the iteration's keep-alive
// decision. Used for policy errors (missing/mismatched Host, 405) that do
// not poison the connection.
func (c *conn) errorResponse(status int) *httpwire.Response {
	resp := httpwire.NewErrorResponse(status)
	resp.KeepAlive = c.keepAlive
	return resp
}

func (c *conn) transition(to connState) {
	c.state = to
}

func (c *conn) remoteAddr() string {
	return c.conn.RemoteAddr().String()
}
