// Package enhance widens retrieval queries with related tokens from an
// LLM. It is the only networked package in the repository and it is
// strictly optional: every failure, timeout, or misconfiguration falls
// back to the deterministic tokenizer-only query.
package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/cairnhq/cairn/internal/token"
)

// Enhancer expands a free-text query into extra search tokens.
type Enhancer interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

// Noop is the deterministic default: no expansion.
type Noop struct{}

func (Noop) Expand(context.Context, string) ([]string, error) { return nil, nil }

const systemPrompt = "You expand search queries over a software project's " +
	"decision log. Reply with up to eight single words closely related to " +
	"the query: synonyms, expansions of abbreviations, and tool names. " +
	"Space-separated, lowercase, no punctuation, no explanations."

// Config configures the OpenAI-backed enhancer.
type Config struct {
	APIKey string
	// BaseURL overrides the endpoint, for local or proxied models.
	BaseURL string
	Model   string
	Timeout time.Duration
}

type completionClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type completionServiceAdapter struct {
	service openai.ChatCompletionService
}

func (a completionServiceAdapter) New(
	ctx context.Context,
	body openai.ChatCompletionNewParams,
	opts ...option.RequestOption,
) (*openai.ChatCompletion, error) {
	return a.service.New(ctx, body, opts...)
}

// OpenAI expands queries through a chat completion.
type OpenAI struct {
	completions completionClient
	model       string
	timeout     time.Duration
}

// NewOpenAI builds the enhancer. The key is required; the base URL is
// validated when set.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("new enhancer: missing api key")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("new enhancer: missing model")
	}
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("new enhancer: parse base url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("new enhancer: base url must include scheme and host")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(options...)

	return &OpenAI{
		completions: completionServiceAdapter{service: client.Chat.Completions},
		model:       cfg.Model,
		timeout:     cfg.Timeout,
	}, nil
}

// Expand asks the model for related words and normalizes the reply
// through the shared tokenizer, so whatever comes back obeys the same
// rules as indexed content. Tokens already present in the query are
// dropped.
func (o *OpenAI) Expand(ctx context.Context, query string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	completion, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(query),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("expand query: empty completion")
	}

	have := token.NewSet(token.Tokenize(query))
	var extra []string
	for _, tok := range token.Tokenize(completion.Choices[0].Message.Content) {
		if !have.Contains(tok) {
			extra = append(extra, tok)
		}
	}
	return extra, nil
}

// Tokens runs the enhancer and swallows its failure: on any error the
// query proceeds tokenizer-only, which is always a correct answer, just
// a narrower one.
func Tokens(ctx context.Context, e Enhancer, query string, logger *slog.Logger) []string {
	if e == nil {
		return nil
	}
	extra, err := e.Expand(ctx, query)
	if err != nil {
		logger.Warn("query enhancement failed, continuing tokenizer-only", "error", err)
		return nil
	}
	return extra
}
