package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"securecode/internal/config"
)

var ErrNoEmbeddings = errors.New("no embeddings returned")

type Client struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// Options configures a Client; empty fields use the OpenAI defaults.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
}

func New(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := openai.SmallEmbedding3
	if opts.Model != "" {
		model = openai.EmbeddingModel(opts.Model)
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// NewClient reads OPENAI_* settings from the environment.
func NewClient(log zerolog.Logger) *Client {
	apiKey := config.Get("OPENAI_API_KEY", "openai_key")
	if apiKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set")
	}

	baseURL := config.Get("OPENAI_BASE_URL", "openai_base_url")
	if baseURL != "" {
		log.Debug().Str("endpoint", baseURL).Msg("using custom API endpoint")
	}

	modelName := config.Get("OPENAI_EMBEDDING_MODEL", "openai_embedding_model")
	if modelName != "" {
		log.Debug().Str("model", modelName).Msg("using embedding model")
	}

	return New(Options{APIKey: apiKey, BaseURL: baseURL, Model: modelName})
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrNoEmbeddings
	}
	return vectors[0], nil
}

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: c.model,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddings
	}
	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		results[data.Index] = data.Embedding
	}
	return results, nil
}
