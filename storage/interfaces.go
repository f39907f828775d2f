package storage

import "propscout/models"

// Cache is the key/value store that sits between scrapes and every consumer.
// Payloads are opaque JSON bytes; Set always replaces the whole value.
// Implementations report backend failures as misses, never as errors.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, payload []byte) bool
	Keys() []string
	FlushAll()
	Stats() models.CacheStats
	Close() error
}

// PropertyWriter is the interface any export sink must satisfy.
type PropertyWriter interface {
	Write(properties []models.Property) error
	Close() error
}
