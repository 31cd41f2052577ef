// Package httpfetch provides a NodeExecutor that imports external media
// into a workflow by URL (node kind "http.fetch").
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dshills/nodeflow-go/graph"
	"github.com/dshills/nodeflow-go/graph/exec"
)

// Kind is the node kind this package executes.
const Kind = "http.fetch"

const defaultTimeout = 30 * time.Second

// Executor validates an external URL with an HTTP request and surfaces
// it as a node result, so downstream nodes can consume media that was
// produced outside the workflow.
//
// Node params:
//   - "url" (string, required): the media URL to import
//   - "header_<name>" (string): extra request headers, e.g.
//     "header_Authorization" for protected media
//
// The target is probed with HEAD, falling back to GET for servers that
// reject HEAD. Only http and https URLs are accepted; a non-2xx final
// status fails the node.
type Executor struct {
	client *http.Client
}

// NewExecutor creates an Executor with a default HTTP client.
func NewExecutor() *Executor {
	return &Executor{client: &http.Client{Timeout: defaultTimeout}}
}

// NewExecutorWithClient creates an Executor using the given client.
// Useful for tests and custom transports.
func NewExecutorWithClient(client *http.Client) *Executor {
	return &Executor{client: client}
}

// Execute implements exec.NodeExecutor.
func (e *Executor) Execute(ctx context.Context, node graph.Node, inputs map[string]exec.Input, progress exec.ProgressFunc) (exec.Output, error) {
	target, ok := node.Params["url"].(string)
	if !ok || target == "" {
		return exec.Output{}, errors.New("node is missing a url param")
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return exec.Output{}, fmt.Errorf("invalid url %q: %w", target, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return exec.Output{}, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	if progress != nil {
		progress(10, "probing "+parsed.Host)
	}

	status, err := e.probe(ctx, http.MethodHead, target, node.Params)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = e.probe(ctx, http.MethodGet, target, node.Params)
	}
	if err != nil {
		return exec.Output{}, fmt.Errorf("failed to fetch %q: %w", target, err)
	}
	if status < 200 || status > 299 {
		return exec.Output{}, fmt.Errorf("fetch of %q returned status %d", target, status)
	}

	if progress != nil {
		progress(100, "done")
	}
	return exec.Output{URLs: []string{target}}, nil
}

func (e *Executor) probe(ctx context.Context, method, target string, params map[string]any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	for key, value := range params {
		name, found := strings.CutPrefix(key, "header_")
		if !found {
			continue
		}
		if v, ok := value.(string); ok {
			req.Header.Set(name, v)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}
