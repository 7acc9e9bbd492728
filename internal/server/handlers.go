package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"path"
	"strings"
	"time"

	"github.com/marmos91/dittoweb/internal/httpwire"
	"github.com/marmos91/dittoweb/internal/logger"
	"github.com/marmos91/dittoweb/pkg/store"
)

// inlineTypes maps extensions served inline to their content type.
// Extensions in downloadTypes are forced to download via
// Content-Disposition; anything else is refused before touching the store.
var inlineTypes = map[string]string{
	".html": "text/html; charset=utf-8",
}

var downloadTypes = map[string]bool{
	".txt":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// handleGet serves a static resource.
//
// Error responses here force the connection closed; only a successful 200
// honors the keep-alive decision.
func (c *conn) handleGet(ctx context.Context, req *httpwire.Request) *httpwire.Response {
	reqPath := req.Path
	if reqPath == "/" {
		reqPath = "/" + c.server.config.DefaultResource
	}

	// Path-traversal defense on the literal, undecoded path, before the
	// store is ever consulted.
	if strings.Contains(reqPath, "..") {
		logger.Warn("[worker-%d] Path traversal attempt from %s: %q", c.workerID, c.remoteAddr(), req.Path)
		return httpwire.NewErrorResponse(403)
	}

	ext := strings.ToLower(path.Ext(reqPath))
	contentType, inline := inlineTypes[ext]
	if !inline {
		if !downloadTypes[ext] {
			return httpwire.NewErrorResponse(415)
		}
		contentType = "application/octet-stream"
	}

	name := strings.TrimPrefix(reqPath, "/")
	data, err := c.server.store.ReadResource(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrResourceNotFound) {
			return httpwire.NewErrorResponse(404)
		}
		logger.Error("[worker-%d] Store error reading %s: %v", c.workerID, name, err)
		return httpwire.NewErrorResponse(500)
	}

	resp := httpwire.NewResponse(200, contentType, data)
	if !inline {
		resp.AddHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(reqPath)))
	}
	resp.KeepAlive = c.keepAlive

	return resp
}

// uploadResult is the 201 response body for a persisted upload.
type uploadResult struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Filepath string `json:"filepath"`
}

// handlePost accepts a JSON document and persists it under a generated name.
func (c *conn) handlePost(ctx context.Context, req *httpwire.Request) *httpwire.Response {
	if !strings.HasPrefix(req.Header("Content-Type"), "application/json") {
		return httpwire.NewErrorResponse(415)
	}

	var payload any
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		logger.Debug("[worker-%d] Invalid JSON body from %s: %v", c.workerID, c.remoteAddr(), err)
		return httpwire.NewErrorResponse(400)
	}

	name := generateUploadName(time.Now().UTC())

	// Pretty-print so stored documents are readable as-is.
	pretty, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		logger.Error("[worker-%d] Failed to re-encode upload: %v", c.workerID, err)
		return httpwire.NewErrorResponse(500)
	}

	if err := c.server.store.WriteUpload(ctx, store.UploadsDir+"/"+name, pretty); err != nil {
		logger.Error("[worker-%d] Failed to persist upload %s: %v", c.workerID, name, err)
		return httpwire.NewErrorResponse(500)
	}

	body, err := json.Marshal(uploadResult{
		Status:   "success",
		Message:  "File created successfully",
		Filepath: "/" + store.UploadsDir + "/" + name,
	})
	if err != nil {
		return httpwire.NewErrorResponse(500)
	}

	logger.Info("[worker-%d] Upload stored: %s (%d bytes)", c.workerID, name, len(pretty))

	resp := httpwire.NewResponse(201, "application/json", body)
	resp.KeepAlive = c.keepAlive

	return resp
}

const uploadSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// generateUploadName builds a fresh upload identifier: a timestamp plus a
// short random suffix. Collisions are treated as negligible, not
// deduplicated; two uploads of the same body always get distinct names.
func generateUploadName(now time.Time) string {
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = uploadSuffixAlphabet[rand.Intn(len(uploadSuffixAlphabet))]
	}

	return fmt.Sprintf("upload_%s_%s.json", now.Format("20060102_150405"), suffix)
}
