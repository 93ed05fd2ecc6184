package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/ctxgen/ragserve-go/internal/rag"
)

// payloadDocID is the Qdrant payload key carrying the ragserve document id.
// Qdrant point ids must be UUIDs or integers, so the document id is stored
// in the payload and the point id is derived deterministically from it.
const payloadDocID = "document_id"

// pointIDNamespace namespaces the deterministic UUID derivation for point ids.
var pointIDNamespace = uuid.MustParse("3f1f9a52-7a6d-4e5c-9d1e-6f2b8c4a0d7e")

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant implements rag.VectorIndex backed by a Qdrant collection configured
// for cosine distance. Tie-break ordering for equal scores follows Qdrant's
// internal ordering rather than insertion order; exact-tie ordering is a
// single-node in-process guarantee only.
type Qdrant struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrant creates a Qdrant-backed index, ensuring the target collection
// exists (creating it with cosine distance if necessary).
func NewQdrant(ctx context.Context, cfg *QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &Qdrant{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", q.cfg.Collection, err)
	}
	return nil
}

// pointID derives the deterministic UUID point id for a document id.
func pointID(docID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(docID)).String()
}

// Insert upserts the vector for id. Upserting an existing point replaces its
// vector, matching the replace semantics of the in-process index.
func (q *Qdrant) Insert(ctx context.Context, id string, vec []float32) error {
	if id == "" {
		return fmt.Errorf("qdrant: id must not be empty")
	}
	if q.cfg.VectorSize != 0 && uint64(len(vec)) != q.cfg.VectorSize {
		return fmt.Errorf("qdrant: vector dimension %d does not match collection dimension %d", len(vec), q.cfg.VectorSize)
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.Collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID(id)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{payloadDocID: id}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Remove deletes the point for id. Absent ids are a no-op on the server side.
func (q *Qdrant) Remove(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.Collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointID(id))),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Query performs a cosine similarity search and returns the top-k hits.
func (q *Qdrant) Query(ctx context.Context, vec []float32, k int) ([]rag.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	limit := uint64(k)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.Collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	hits := make([]rag.Hit, 0, len(results))
	for _, r := range results {
		docID := ""
		if p := r.Payload; p != nil {
			if v, ok := p[payloadDocID]; ok {
				docID = v.GetStringValue()
			}
		}
		if docID == "" {
			// Point written outside ragserve; nothing to resolve it against.
			continue
		}
		hits = append(hits, rag.Hit{ID: docID, Score: r.Score})
	}
	return hits, nil
}

// Ping verifies the Qdrant server is reachable. Used by the readiness probe.
func (q *Qdrant) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
