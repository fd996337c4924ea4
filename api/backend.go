package api

// BackendEntry describes one stored cache blob.
type BackendEntry struct {
	Key  string
	Size int64
}

// CacheBackend is the storage contract for serialized cache buffers.
// The store hands the backend an opaque byte buffer on write and expects
// the same bytes back on read; it never performs storage I/O itself.
//
// Callers choose the backend explicitly at construction time; there is
// no environment-sniffing singleton.
type CacheBackend interface {
	// Get returns the blob for key. ok is false when the key is absent;
	// err is reserved for storage failures.
	Get(key string) (data []byte, ok bool, err error)
	// Put stores the blob under key, replacing any previous value.
	Put(key string, data []byte) error
	// Delete removes the blob. Deleting an absent key is not an error.
	Delete(key string) error
	// Entries lists stored blobs with their sizes.
	Entries() ([]BackendEntry, error)
}
