// Package store defines the resource provider boundary of the DittoWeb
// server: the interface the protocol layer uses to fetch static resources and
// persist uploaded JSON documents.
//
// Implementations live in subpackages (fs, memory, badger, s3) and are
// selected via configuration. The protocol layer never touches a concrete
// backend directly.
package store

import "context"

// UploadsDir is the name prefix under which uploaded documents are stored,
// shared by the protocol layer (which generates "uploads/<name>" keys) and
// the filesystem backend (which creates the directory).
const UploadsDir = "uploads"

// ResourceStore provides read access to named resources and write access for
// uploads.
//
// Resource names are slash-separated relative paths without a leading "/"
// (e.g. "index.html", "uploads/upload_20240101_120000_ab12.json"). Path
// traversal defense happens in the protocol layer before names reach a
// store; implementations may apply their own containment checks on top.
//
// Thread safety:
// All implementations must be safe for concurrent use by many workers. The
// server guarantees upload names are unique per call, so conflicting writes
// to the same name do not occur in normal operation.
type ResourceStore interface {
	// ReadResource returns the full content of the named resource.
	// Returns an error wrapping ErrResourceNotFound if it does not exist.
	ReadResource(ctx context.Context, name string) ([]byte, error)

	// WriteUpload persists data under the given name, overwriting any
	// previous content.
	WriteUpload(ctx context.Context, name string, data []byte) error
}
