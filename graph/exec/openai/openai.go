// Package openai provides NodeExecutors backed by the OpenAI API:
// chat completion nodes and image generation nodes.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/nodeflow-go/graph"
	"github.com/dshills/nodeflow-go/graph/exec"
)

// Node kinds this package executes.
const (
	KindChat  = "openai.chat"
	KindImage = "openai.image"
)

// Default models for nodes that do not name one.
const (
	DefaultChatModel  = "gpt-4o"
	DefaultImageModel = "dall-e-3"
)

const (
	defaultMaxTokens = 1024
	maxAttempts      = 3
	baseBackoff      = 500 * time.Millisecond
)

// Pricing per million tokens (chat) and per image, used for cost
// attribution.
const (
	inputPricePerMTok  = 2.5
	outputPricePerMTok = 10.0
	pricePerImage      = 0.04
)

// generation is one completed chat API call.
type generation struct {
	text         string
	inputTokens  int64
	outputTokens int64
}

// apiClient defines the API surface the executor needs. This allows
// for easy mocking in tests.
type apiClient interface {
	chat(ctx context.Context, model, prompt string, maxTokens int64) (generation, error)
	image(ctx context.Context, model, prompt string) (url string, err error)
}

// Executor implements exec.NodeExecutor for OpenAI nodes. It dispatches
// on node kind: KindChat runs a chat completion and returns the text as
// a data URL, KindImage generates an image and returns its hosted URL.
//
// Node params:
//   - "prompt" (string, required): the instruction for the model
//   - "model" (string): model name, per-kind default when absent
//   - "max_tokens" (number, chat only): response budget, 1024 when absent
//
// Image results are returned with RequiresAck set, so the workflow
// surfaces them for user confirmation before dependent paid nodes are
// considered satisfied.
type Executor struct {
	client apiClient
}

// NewExecutor creates an Executor using the official SDK client with
// the given API key.
func NewExecutor(apiKey string) *Executor {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Executor{client: &defaultClient{client: &client}}
}

// Execute implements exec.NodeExecutor.
func (e *Executor) Execute(ctx context.Context, node graph.Node, inputs map[string]exec.Input, progress exec.ProgressFunc) (exec.Output, error) {
	prompt, err := buildPrompt(node, inputs)
	if err != nil {
		return exec.Output{}, err
	}

	switch node.Kind {
	case KindImage:
		return e.executeImage(ctx, node, prompt, progress)
	case KindChat:
		return e.executeChat(ctx, node, prompt, progress)
	default:
		return exec.Output{}, fmt.Errorf("unsupported node kind %q", node.Kind)
	}
}

func (e *Executor) executeChat(ctx context.Context, node graph.Node, prompt string, progress exec.ProgressFunc) (exec.Output, error) {
	model := stringParam(node.Params, "model", DefaultChatModel)
	maxTokens := int64Param(node.Params, "max_tokens", defaultMaxTokens)

	if progress != nil {
		progress(10, "calling openai")
	}

	var gen generation
	err := withRetry(ctx, func() error {
		var err error
		gen, err = e.client.chat(ctx, model, prompt, maxTokens)
		return err
	})
	if err != nil {
		return exec.Output{}, fmt.Errorf("openai chat failed: %w", err)
	}

	if progress != nil {
		progress(100, "done")
	}

	cost := float64(gen.inputTokens)*inputPricePerMTok/1e6 +
		float64(gen.outputTokens)*outputPricePerMTok/1e6

	return exec.Output{
		URLs: []string{exec.EncodeTextURL(gen.text)},
		Cost: cost,
	}, nil
}

func (e *Executor) executeImage(ctx context.Context, node graph.Node, prompt string, progress exec.ProgressFunc) (exec.Output, error) {
	model := stringParam(node.Params, "model", DefaultImageModel)

	if progress != nil {
		progress(10, "generating image")
	}

	var url string
	err := withRetry(ctx, func() error {
		var err error
		url, err = e.client.image(ctx, model, prompt)
		return err
	})
	if err != nil {
		return exec.Output{}, fmt.Errorf("openai image generation failed: %w", err)
	}

	if progress != nil {
		progress(100, "done")
	}

	return exec.Output{
		URLs:        []string{url},
		Cost:        pricePerImage,
		RequiresAck: true,
	}, nil
}

// withRetry runs fn, retrying transient failures with exponential
// backoff. Context cancellation is observed before and between
// attempts.
func withRetry(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil {
			return nil
		}
		if attempt+1 >= maxAttempts || !isTransient(err) {
			return err
		}
		select {
		case <-time.After(baseBackoff << attempt):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// buildPrompt combines the node's prompt param with upstream results.
func buildPrompt(node graph.Node, inputs map[string]exec.Input) (string, error) {
	prompt := stringParam(node.Params, "prompt", "")
	if prompt == "" {
		return "", errors.New("node is missing a prompt param")
	}

	var sb strings.Builder
	sb.WriteString(prompt)

	var refs []string
	for _, in := range inputs {
		for _, url := range in.URLs {
			if text, ok := exec.DecodeTextURL(url); ok {
				sb.WriteString("\n\n")
				sb.WriteString(text)
			} else {
				refs = append(refs, url)
			}
		}
	}
	if len(refs) > 0 {
		sb.WriteString("\n\nReference material:\n")
		for _, url := range refs {
			sb.WriteString("- ")
			sb.WriteString(url)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// isTransient reports whether the API error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "429", "too many requests",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable",
		"connection", "timeout", "network",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func int64Param(params map[string]any, key string, fallback int64) int64 {
	switch v := params[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		// JSON numbers decode as float64.
		return int64(v)
	}
	return fallback
}

// defaultClient wraps the official openai-go client.
type defaultClient struct {
	client *sdk.Client
}

func (c *defaultClient) chat(ctx context.Context, model, prompt string, maxTokens int64) (generation, error) {
	completion, err := c.client.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:               shared.ChatModel(model),
		MaxCompletionTokens: sdk.Int(maxTokens),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			{
				OfUser: &sdk.ChatCompletionUserMessageParam{
					Content: sdk.ChatCompletionUserMessageParamContentUnion{
						OfString: sdk.String(prompt),
					},
				},
			},
		},
	})
	if err != nil {
		return generation{}, err
	}
	if len(completion.Choices) == 0 {
		return generation{}, errors.New("empty completion response")
	}
	return generation{
		text:         completion.Choices[0].Message.Content,
		inputTokens:  completion.Usage.PromptTokens,
		outputTokens: completion.Usage.CompletionTokens,
	}, nil
}

func (c *defaultClient) image(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Images.Generate(ctx, sdk.ImageGenerateParams{
		Model:  sdk.ImageModel(model),
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", errors.New("empty image response")
	}
	return resp.Data[0].URL, nil
}
