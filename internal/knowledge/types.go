package knowledge

import "time"

// Document is one indexed passage from a user upload.
// Metadata must be map[string]string to comply with chromem-go requirements.
type Document struct {
	ID        string            // Unique identifier
	Content   string            // Passage text
	Metadata  map[string]string // Optional metadata (source file, page, etc.)
	CreatedAt time.Time         // Ingestion timestamp
}

// Result is a single search hit with its similarity score.
type Result struct {
	Document   Document
	Similarity float32 // Cosine similarity (0-1)
}

// SearchOption configures search behavior using the functional options
// pattern, as in context.WithTimeout or grpc.Dial.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int
	filter map[string]string
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter restricts results to documents whose metadata matches the
// given key/value. Multiple filters combine with AND logic.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
