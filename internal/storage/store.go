package storage

// Store is a small durable key/value store for secrets. Get returns
// apperrors.ErrNotFound when the key is absent.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Ensure implementations satisfy Store
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
