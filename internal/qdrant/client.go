package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"securecode/internal/config"
	"securecode/internal/models"
)

type Client struct {
	client      qdrant.PointsClient
	collections qdrant.CollectionsClient
	grpcConn    *grpc.ClientConn
	log         zerolog.Logger
}

// NewClient dials Qdrant over gRPC using QDRANT_URL and the first API key
// variable that is set.
func NewClient(log zerolog.Logger) (*Client, error) {
	host, port, err := parseQdrantAddress(config.Get("QDRANT_URL", "qdrant_url"))
	if err != nil {
		return nil, fmt.Errorf("parse QDRANT_URL: %w", err)
	}

	cfg := &qdrant.Config{
		Host: host,
		Port: port,
	}
	if apiKey := getQdrantAPIKey(); apiKey != "" {
		cfg.APIKey = apiKey
	}

	grpcClient, err := qdrant.NewGrpcClient(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("host", host).Int("port", port).Msg("connected to qdrant")

	return &Client{
		client:      grpcClient.Points(),
		collections: grpcClient.Collections(),
		grpcConn:    grpcClient.Conn(),
		log:         log,
	}, nil
}

func parseQdrantAddress(raw string) (string, int, error) {
	const (
		defaultHost = "localhost"
		defaultPort = 6334
	)

	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return defaultHost, defaultPort, nil
	}

	if strings.Contains(endpoint, "://") {
		parsed, err := neturl.Parse(endpoint)
		if err != nil {
			return "", 0, err
		}
		if parsed.Host == "" {
			return defaultHost, defaultPort, nil
		}
		endpoint = parsed.Host
	}

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && strings.Contains(addrErr.Err, "missing port") {
			return endpoint, defaultPort, nil
		}
		return "", 0, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		host = defaultHost
	}
	return host, port, nil
}

func getQdrantAPIKey() string {
	return config.Get(
		"QDRANT_API_KEY",
		"qdrant_api_key",
		"QDRANT_API_TOKEN",
		"qdrant_api_token",
	)
}

func (c *Client) Close() error {
	return c.grpcConn.Close()
}

// EnsureCollection creates the collection, recreating it when an existing one
// has a different vector size.
func (c *Client) EnsureCollection(ctx context.Context, name string, vectorSize uint64) error {
	info, err := c.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: name,
	})
	if err == nil {
		params := info.GetResult().GetConfig().GetParams()
		if params == nil {
			return nil
		}
		existing := params.GetVectorsConfig().GetParams().GetSize()
		if existing == vectorSize {
			return nil
		}
		c.log.Warn().
			Str("collection", name).
			Uint64("expected", vectorSize).
			Uint64("actual", existing).
			Msg("collection has wrong dimension, recreating")
		if err := c.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("delete collection %s: %w", name, err)
		}
	}

	_, err = c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     vectorSize,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	c.log.Info().Str("collection", name).Uint64("size", vectorSize).Msg("created collection")
	return nil
}

// DeleteCollection removes the entire collection and all its points.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	_, err := c.collections.Delete(ctx, &qdrant.DeleteCollection{
		CollectionName: name,
	})
	return err
}

func (c *Client) Upsert(ctx context.Context, collectionName string, points []*qdrant.PointStruct) error {
	wait := true
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           &wait,
	})
	return err
}

func (c *Client) Search(ctx context.Context, collectionName string, vector []float32, limit uint64) ([]*qdrant.ScoredPoint, error) {
	resp, err := c.client.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collectionName,
		Vector:         vector,
		Limit:          limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *Client) DeleteByFilter(ctx context.Context, collectionName string, filter *qdrant.Filter) error {
	wait := true
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: filter,
			},
		},
	})
	return err
}

// Count returns the exact number of points in a collection.
func (c *Client) Count(ctx context.Context, collectionName string) (uint64, error) {
	exact := true
	resp, err := c.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collectionName,
		Exact:          &exact,
	})
	if err != nil {
		return 0, err
	}
	return resp.GetResult().GetCount(), nil
}

// FileFilter matches points whose file_path payload equals path.
func FileFilter(path string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "file_path",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{
								Keyword: path,
							},
						},
					},
				},
			},
		},
	}
}

// FunctionPoint builds a point carrying a function payload.
func FunctionPoint(id uint64, vector []float32, payload models.FunctionPayload) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Num{Num: id},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: vector},
			},
		},
		Payload: MapToPayload(payload.ToMap()),
	}
}

// ToSearchHits decodes scored points into typed hits.
func ToSearchHits(points []*qdrant.ScoredPoint) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, models.SearchHit{
			FunctionPayload: models.FunctionPayloadFromMap(PayloadToMap(p.GetPayload())),
			Score:           p.GetScore(),
		})
	}
	return hits
}

func PayloadToMap(payload map[string]*qdrant.Value) map[string]interface{} {
	result := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		result[k] = valueToInterface(v)
	}
	return result
}

func valueToInterface(v *qdrant.Value) interface{} {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return fmt.Sprintf("%v", v)
	}
}

func MapToPayload(m map[string]interface{}) map[string]*qdrant.Value {
	result := make(map[string]*qdrant.Value, len(m))
	for k, v := range m {
		result[k] = interfaceToValue(v)
	}
	return result
}

func interfaceToValue(i interface{}) *qdrant.Value {
	switch v := i.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(v)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: v}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: v}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", v)}}
	}
}
