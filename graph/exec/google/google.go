// Package google provides a NodeExecutor backed by Google's Gemini API
// for text generation nodes.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/nodeflow-go/graph"
	"github.com/dshills/nodeflow-go/graph/exec"
)

// DefaultModel is used when a node does not name a model.
const DefaultModel = "gemini-1.5-flash"

const (
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

// Pricing per million tokens, used for cost attribution.
const (
	inputPricePerMTok  = 0.075
	outputPricePerMTok = 0.30
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
	generate(ctx context.Context, model, prompt string) (generation, error)
}

// Executor implements exec.NodeExecutor for Gemini text nodes
// (node kind "google.text").
//
// Node params:
//   - "prompt" (string, required): the instruction for the model
//   - "model" (string): model name, DefaultModel when absent
//
// Generated text is returned as a data URL so downstream nodes can
// chain on it. Transient API failures are retried with exponential
// backoff.
type Executor struct {
	client textClient
	closer func() error
}

// NewExecutor creates an Executor using the official genai client with
// the given API key. Call Close when done to release the client.
func NewExecutor(ctx context.Context, apiKey string) (*Executor, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Executor{
		client: &defaultClient{client: client},
		closer: client.Close,
	}, nil
}

// Close releases the underlying genai client.
func (e *Executor) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// Execute implements exec.NodeExecutor.
func (e *Executor) Execute(ctx context.Context, node graph.Node, inputs map[string]exec.Input, progress exec.ProgressFunc) (exec.Output, error) {
	prompt, err := buildPrompt(node, inputs)
	if err != nil {
		return exec.Output{}, err
	}
	model := stringParam(node.Params, "model", DefaultModel)

	if progress != nil {
		progress(10, "calling gemini")
	}

	var gen generation
	for attempt := 0; ; attempt++ {
		if err = ctx.Err(); err != nil {
			return exec.Output{}, err
		}
		gen, err = e.client.generate(ctx, model, prompt)
		if err == nil {
			break
		}
		if attempt+1 >= maxAttempts || !isTransient(err) {
			return exec.Output{}, fmt.Errorf("gemini generation failed: %w", err)
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
		"rate limit", "429", "resource exhausted", "quota",
		"500", "502", "503", "504", "unavailable",
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

// defaultClient wraps the official generative-ai-go client.
type defaultClient struct {
	client *genai.Client
}

func (c *defaultClient) generate(ctx context.Context, model, prompt string) (generation, error) {
	resp, err := c.client.GenerativeModel(model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return generation{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return generation{}, errors.New("empty generation response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	var gen generation
	gen.text = text.String()
	if resp.UsageMetadata != nil {
		gen.inputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		gen.outputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return gen, nil
}
