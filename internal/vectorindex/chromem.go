// Package vectorindex wraps an embedded chromem-go collection as an optional
// semantic retrieval channel. The index is strictly best-effort: write and
// query failures degrade to empty results at the call site, never to a failed
// engine operation.
package vectorindex

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// Index is the minimal vector search surface the retrieval path consumes.
type Index interface {
	// Add indexes one document under id with the given metadata.
	Add(ctx context.Context, id, text string, metadata map[string]string) error

	// Query returns up to k ids ranked by similarity to the query text.
	Query(ctx context.Context, query string, k int) ([]Result, error)
}

// Result is one vector search hit.
type Result struct {
	ID         string
	Similarity float32
}

// ChromemIndex is an Index backed by a persistent chromem-go collection.
type ChromemIndex struct {
	collection *chromem.Collection
}

// Options configures the chromem index.
type Options struct {
	// Path is the on-disk location of the database. Empty means in-memory.
	Path string

	// Collection names the collection holding memory embeddings.
	Collection string

	// EmbeddingFunc produces the vectors. Nil falls back to chromem's
	// default provider, which reads its API key from the environment.
	EmbeddingFunc chromem.EmbeddingFunc
}

// New opens or creates the collection described by opts.
func New(opts Options) (*ChromemIndex, error) {
	if opts.Collection == "" {
		opts.Collection = "memories"
	}

	var db *chromem.DB
	var err error
	if opts.Path != "" {
		db, err = chromem.NewPersistentDB(opts.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening vector database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(opts.Collection, nil, opts.EmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("opening collection %q: %w", opts.Collection, err)
	}
	return &ChromemIndex{collection: collection}, nil
}

// Add indexes one document. Re-adding an id overwrites its embedding.
func (x *ChromemIndex) Add(ctx context.Context, id, text string, metadata map[string]string) error {
	err := x.collection.AddDocument(ctx, chromem.Document{
		ID:       id,
		Content:  text,
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("indexing document %s: %w", id, err)
	}
	return nil
}

// Query returns up to k hits. k is clamped to the collection size because
// chromem rejects queries asking for more results than documents.
func (x *ChromemIndex) Query(ctx context.Context, query string, k int) ([]Result, error) {
	count := x.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := x.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{ID: r.ID, Similarity: r.Similarity})
	}
	return out, nil
}
