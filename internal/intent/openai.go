package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// systemPrompt instructs the model to emit exactly one JSON object matching
// the [Analysis] schema. The category list must stay in sync with the
// Category constants.
const systemPrompt = `You are the intent resolver of a voice-controlled food-ordering app.
Given a customer utterance and session context, respond with a single JSON object:
{"intent": string, "category": "order"|"navigation"|"information"|"help"|"unknown",
 "confidence": number between 0 and 1,
 "entities": [{"type": "product"|"quantity"|"modifier", "value": string, "position": integer word index}],
 "suggested_items": [{"product": string, "quantity": integer, "modifiers": [string]}],
 "reply": optional short answer in the utterance's language}
Respond with the JSON object only, no prose, no code fences.`

// OpenAIResolver implements [Resolver] against an OpenAI-compatible chat
// completion endpoint.
type OpenAIResolver struct {
	client oai.Client
	model  string
}

// OpenAIOption is a functional option for [NewOpenAIResolver].
type OpenAIOption func(*openaiConfig)

type openaiConfig struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL overrides the default API base URL, e.g. for a local
// OpenAI-compatible server.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openaiConfig) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *openaiConfig) { c.timeout = d }
}

// NewOpenAIResolver constructs a resolver for the given model.
func NewOpenAIResolver(apiKey, model string, opts ...OpenAIOption) (*OpenAIResolver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("intent: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("intent: model must not be empty")
	}

	cfg := &openaiConfig{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &OpenAIResolver{client: oai.NewClient(reqOpts...), model: model}, nil
}

var _ Resolver = (*OpenAIResolver)(nil)

// Resolve implements [Resolver].
func (r *OpenAIResolver) Resolve(ctx context.Context, transcript string, sctx SessionContext) (Analysis, error) {
	resp, err := r.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(r.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(buildUserPrompt(transcript, sctx)),
		},
		Temperature:         param.NewOpt(0.1),
		MaxCompletionTokens: param.NewOpt(int64(512)),
	})
	if err != nil {
		return Analysis{}, fmt.Errorf("intent: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, fmt.Errorf("intent: empty choices in response")
	}

	analysis, err := parseAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

// buildUserPrompt renders the transcript and context into the user message.
func buildUserPrompt(transcript string, sctx SessionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Utterance (%s): %q\n", sctx.Language, transcript)
	if sctx.Page != "" {
		fmt.Fprintf(&b, "Current page: %s\n", sctx.Page)
	}
	if sctx.CartSummary != "" {
		fmt.Fprintf(&b, "Cart: %s\n", sctx.CartSummary)
	}
	if len(sctx.History) > 0 {
		fmt.Fprintf(&b, "Recent utterances: %s\n", strings.Join(sctx.History, " | "))
	}
	return b.String()
}

// parseAnalysis decodes the model output, tolerating stray code fences.
func parseAnalysis(content string) (Analysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var a Analysis
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return Analysis{}, fmt.Errorf("intent: decode resolver output: %w", err)
	}
	switch a.Category {
	case CategoryOrder, CategoryNavigation, CategoryInformation, CategoryHelp:
	default:
		a.Category = CategoryUnknown
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a, nil
}
