package objstore

import "context"

// Store abstracts the object-storage service holding generated covers and
// audio tracks. Implementations must be safe for concurrent use; the
// pipeline receives a Store explicitly rather than reaching for a global.
type Store interface {
	// Upload writes the blob at path, overwriting any existing object.
	Upload(ctx context.Context, path, contentType string, data []byte) error
	// PublicURL constructs the public URL for path deterministically,
	// without a round-trip to the service.
	PublicURL(path string) string
	// RequestPublicURL asks the storage client for the public URL and
	// fails when the service does not yield one.
	RequestPublicURL(path string) (string, error)
	// Probe performs a lightweight reachability check against a public URL.
	Probe(ctx context.Context, publicURL string) error
	// Remove deletes the given objects, best effort.
	Remove(ctx context.Context, paths ...string) error
}
