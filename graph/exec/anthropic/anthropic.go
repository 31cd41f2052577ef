// Package anthropic provides a NodeExecutor backed by Anthropic's
// Claude API for text generation nodes.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/nodeflow-go/graph"
	"github.com/dshills/nodeflow-go/graph/exec"
)

// DefaultModel is used when a node does not name a model.
const DefaultModel = "claude-3-5-sonnet-20241022"

const (
	defaultMaxTokens = 1024
	maxAttempts      = 3
	baseBackoff      = 500 * time.Millisecond
)

// Pricing per million tokens, used for cost attribution.
const (
	inputPricePerMTok  = 3.0
	outputPricePerMTok = 15.0
)

// generation is one completed API call.
type generation struct {
	text         string
	inputTokens  int64
	outputTokens int64
}

// textClient defines the API surface the executor needs. This allows
// for easy mocking in tests.
type textClient interface {
	generate(ctx context.Context, model, prompt string, maxTokens int64) (generation, error)
}

// Executor implements exec.NodeExecutor for Claude text nodes
// (node kind "anthropic.text").
//
// Node params:
//   - "prompt" (string, required): the instruction for the model
//   - "model" (string): model name, DefaultModel when absent
//   - "max_tokens" (number): response budget, 1024 when absent
//
// Text results from upstream nodes are appended to the prompt as
// context; other upstream URLs are listed as references. The generated
// text is returned as a data URL so downstream nodes can chain on it.
//
// Transient API failures (rate limits, overload, network) are retried
// up to three times with exponential backoff; context cancellation is
// observed before and between attempts.
type Executor struct {
	client textClient
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
	model := stringParam(node.Params, "model", DefaultModel)
	maxTokens := int64Param(node.Params, "max_tokens", defaultMaxTokens)

	if progress != nil {
		progress(10, "calling claude")
	}

	var gen generation
	for attempt := 0; ; attempt++ {
		if err = ctx.Err(); err != nil {
			return exec.Output{}, err
		}
		gen, err = e.client.generate(ctx, model, prompt, maxTokens)
		if err == nil {
			break
		}
		if attempt+1 >= maxAttempts || !isTransient(err) {
			return exec.Output{}, fmt.Errorf("anthropic generation failed: %w", err)
		}
		select {
		case <-time.After(baseBackoff << attempt):
		case <-ctx.Done():
			return exec.Output{}, ctx.Err()
		}
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
		"rate limit", "429", "overloaded", "529",
		"500", "502", "503", "504",
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

// defaultClient wraps the official anthropic-sdk-go client.
type defaultClient struct {
	client *sdk.Client
}

func (c *defaultClient) generate(ctx context.Context, model, prompt string, maxTokens int64) (generation, error) {
	message, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return generation{}, err
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return generation{
		text:         text.String(),
		inputTokens:  message.Usage.InputTokens,
		outputTokens: message.Usage.OutputTokens,
	}, nil
}
