package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"securecode/internal/config"
)

// DefaultMaxInputChars approximates the 512-token window of the fine-tuned
// code models this stands in for.
const DefaultMaxInputChars = 2048

const systemPrompt = `You are a static analysis model that classifies C functions.
Given one C function, estimate the probability that it contains a memory-safety or
input-validation vulnerability (buffer overflow, use after free, integer overflow,
format string, NULL dereference, command injection and similar CWE classes).
Respond with JSON only: {"vulnerable": <probability between 0 and 1>}`

var ErrEmptyResponse = errors.New("classifier returned no choices")

// Options configures an OpenAIClassifier.
type Options struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxInputChars int
	Logger        zerolog.Logger
}

// OpenAIClassifier scores functions with a chat model behind any
// OpenAI-compatible endpoint.
type OpenAIClassifier struct {
	client   *openai.Client
	model    string
	maxChars int
	log      zerolog.Logger
}

func NewOpenAIClassifier(opts Options) *OpenAIClassifier {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = config.DefaultModel
	}
	maxChars := opts.MaxInputChars
	if maxChars == 0 {
		maxChars = DefaultMaxInputChars
	}
	return &OpenAIClassifier{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		maxChars: maxChars,
		log:      opts.Logger,
	}
}

// NewFromEnv builds a classifier from OPENAI_* variables. A non-empty model
// overrides the environment.
func NewFromEnv(model string, log zerolog.Logger) *OpenAIClassifier {
	apiKey := config.Get("OPENAI_API_KEY", "openai_key")
	if apiKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set")
	}
	baseURL := config.Get("OPENAI_BASE_URL", "openai_base_url")
	if baseURL != "" {
		log.Debug().Str("endpoint", baseURL).Msg("using custom API endpoint")
	}
	if model == "" {
		model = config.Get("SECURECODE_MODEL", "securecode_model", "OPENAI_MODEL", "openai_model")
	}
	return NewOpenAIClassifier(Options{
		APIKey:        apiKey,
		BaseURL:       baseURL,
		Model:         model,
		MaxInputChars: config.GetInt(DefaultMaxInputChars, "SECURECODE_MAX_INPUT_CHARS"),
		Logger:        log,
	})
}

func (c *OpenAIClassifier) Classify(ctx context.Context, codes []string) ([][]Prediction, error) {
	out := make([][]Prediction, 0, len(codes))
	for i, code := range codes {
		p, err := c.classifyOne(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("classify input %d: %w", i, err)
		}
		out = append(out, Binary(p))
	}
	return out, nil
}

func (c *OpenAIClassifier) classifyOne(ctx context.Context, code string) (float64, error) {
	if len(code) > c.maxChars {
		c.log.Debug().Int("length", len(code)).Int("max", c.maxChars).Msg("truncating classifier input")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Truncate(code, c.maxChars)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Choices) == 0 {
		return 0, ErrEmptyResponse
	}
	return parseScore(resp.Choices[0].Message.Content)
}

// parseScore accepts {"vulnerable": p} and the pipeline-style
// {"label": "LABEL_1", "score": p}.
func parseScore(content string) (float64, error) {
	var result struct {
		Vulnerable *float64 `json:"vulnerable"`
		Label      string   `json:"label"`
		Score      *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return 0, fmt.Errorf("decode classifier response: %w", err)
	}
	switch {
	case result.Vulnerable != nil:
		return *result.Vulnerable, nil
	case result.Score != nil && result.Label == LabelVulnerable:
		return *result.Score, nil
	case result.Score != nil && result.Label == LabelSafe:
		return 1 - *result.Score, nil
	}
	return 0, fmt.Errorf("classifier response has no score: %q", content)
}
