package vector

import "context"

// Vector is one embedded profile headed for the index.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]interface{}
}

// Match is one similarity hit, higher score is better.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]interface{}
}

// Store is the persistent approximate-nearest-neighbor index. Filters are
// structured equality / range predicates over metadata fields.
type Store interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	QueryMatches(ctx context.Context, namespace string, q []float32, topK int, filter map[string]interface{}) ([]Match, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
	// ListIDs walks every vector ID in the namespace; used for orphan repair.
	ListIDs(ctx context.Context, namespace string) ([]string, error)
}

// EmbedFunc is the injected embedding capability: text in, fixed-length
// vector out. The core treats it as opaque.
type EmbedFunc func(ctx context.Context, inputs []string) ([][]float32, error)
