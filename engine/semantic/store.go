// Package semantic implements the embedding index: vector persistence and
// nearest-neighbor search over outlet summaries in Qdrant.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// SearchResult is a single raw vector search hit.
type SearchResult struct {
	OutletID     string  `json:"outlet_id"`
	Score        float32 `json:"score"`
	Summary      string  `json:"summary"`
	ModelVersion string  `json:"model_version"`
}

// VectorRecord is one outlet vector to store. Every record carries the model
// version that produced it so incompatible embedding spaces never meet.
type VectorRecord struct {
	OutletID     string
	Embedding    []float32
	ModelVersion string
	Summary      string
}

// pointsClient and collectionsClient are the slices of the Qdrant API the
// store uses; the test fakes implement them.
type pointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

type collectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsClient
	collections collectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a VectorStore from pre-built clients. Used in tests.
func NewWithClients(points pointsClient, collections collectionsClient, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the cosine-distance collection if it doesn't exist.
// Cosine is the right metric here: embedding magnitude carries no meaning for
// this model family.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// pointID derives a deterministic point UUID from the outlet ID, so a second
// upsert for the same outlet overwrites the first.
func pointID(outletID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("outlet:"+outletID)).String()
}

// Upsert stores one vector record. Visible to readers as soon as it commits.
func (v *VectorStore) Upsert(ctx context.Context, rec VectorRecord) error {
	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID(rec.OutletID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: rec.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				"outlet_id":     {Kind: &pb.Value_StringValue{StringValue: rec.OutletID}},
				"summary":       {Kind: &pb.Value_StringValue{StringValue: rec.Summary}},
				"model_version": {Kind: &pb.Value_StringValue{StringValue: rec.ModelVersion}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert outlet %s: %w", rec.OutletID, err)
	}
	return nil
}

// Search performs k-NN similarity search restricted to vectors of the given
// model version. Vectors from any other version are excluded, not compared.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int, modelVersion string) ([]SearchResult, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			Must: []*pb.Condition{fieldMatch("model_version", modelVersion)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		sr := SearchResult{Score: r.GetScore()}
		for k, val := range r.GetPayload() {
			s := val.GetStringValue()
			switch k {
			case "outlet_id":
				sr.OutletID = s
			case "summary":
				sr.Summary = s
			case "model_version":
				sr.ModelVersion = s
			}
		}
		results[i] = sr
	}
	return results, nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
