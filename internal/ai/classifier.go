// file: internal/ai/classifier.go
// version: 2.0.0
// guid: 9a0b1c2d-3e4f-5a6b-7c8d-9e0f1a2b3c4d

package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	// DefaultModel is the chat model used for classification.
	DefaultModel = "gpt-4o"
	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 30 * time.Second
)

// Classifier sends one system prompt and one user prompt to a language
// model and returns the raw text answer.
type Classifier interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// OpenAIOptions configures an OpenAIClassifier.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string // empty uses the public API
	Model   string
	Timeout time.Duration
	Enabled bool
}

// OpenAIClassifier implements Classifier with the OpenAI chat completions API.
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	enabled bool
}

// NewOpenAIClassifier creates a classifier. It is disabled when the switch
// is off or no API key is set.
func NewOpenAIClassifier(opts OpenAIOptions) *OpenAIClassifier {
	if !opts.Enabled || opts.APIKey == "" {
		return &OpenAIClassifier{enabled: false}
	}

	c := &OpenAIClassifier{
		model:   opts.Model,
		timeout: opts.Timeout,
		enabled: true,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithRequestTimeout(c.timeout),
		option.WithMaxRetries(2),
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	client := openai.NewClient(reqOpts...)
	c.client = &client
	return c
}

// IsEnabled returns whether the classifier can make requests.
func (c *OpenAIClassifier) IsEnabled() bool {
	return c != nil && c.enabled
}

// Model returns the configured chat model.
func (c *OpenAIClassifier) Model() string {
	return c.model
}

// Complete runs a single chat completion.
func (c *OpenAIClassifier) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.IsEnabled() {
		return "", fmt.Errorf("OpenAI classifier is not enabled")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       shared.ChatModel(c.model),
		Temperature: param.NewOpt(0.0),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return completion.Choices[0].Message.Content, nil
}
