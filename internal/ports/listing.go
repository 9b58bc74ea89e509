package ports

// ListingStorePort persists raw registry listings for offline use.
type ListingStorePort interface {
	Put(registry string, name string, data []byte) error
	Get(registry string, name string) ([]byte, bool, error)
	Close() error
}
