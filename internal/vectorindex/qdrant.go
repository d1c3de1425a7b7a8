package vectorindex

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// searchMaxAttempts bounds retries of one Search call on transient
// transport failures.
const searchMaxAttempts = 3

// payload key carrying the catalog identifier. Qdrant point IDs must be UUIDs
// or integers, so the catalog ID is stored in the payload and the point ID is
// a UUIDv5 derived from it.
const itemIDKey = "item_id"

// QdrantIndex implements Index against a single Qdrant collection.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantIndex creates a Qdrant-backed index.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantIndex(ctx context.Context, url, collection string) (*QdrantIndex, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantIndex{client: client, collection: collection}, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// EnsureCollection creates the collection if it does not exist.
func (s *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// Upsert inserts or replaces points in the collection.
func (s *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qpoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: map[string]*qdrant.Value{
				itemIDKey: qdrant.NewValueString(p.ID),
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search performs cosine similarity search, retrying transient failures.
func (s *QdrantIndex) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	response, err := backoff.Retry(ctx, func() ([]*qdrant.ScoredPoint, error) {
		return s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(topK)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(searchMaxAttempts))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0, len(response))
	for _, point := range response {
		hit := Hit{Score: point.Score}
		if payload := point.Payload; payload != nil {
			if id, ok := payload[itemIDKey]; ok {
				hit.ID = id.GetStringValue()
			}
		}
		if hit.ID == "" {
			continue
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// pointID derives a stable UUID from a catalog identifier.
func pointID(itemID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(itemID)).String()
}

// Ensure QdrantIndex implements Index.
var _ Index = (*QdrantIndex)(nil)
