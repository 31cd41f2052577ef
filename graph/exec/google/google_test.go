package google

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/nodeflow-go/graph"
	"github.com/dshills/nodeflow-go/graph/exec"
)

type mockClient struct {
	gen     generation
	errs    []error // consumed per call; nil entry means success
	calls   int
	prompts []string
	models  []string
}

func (m *mockClient) generate(ctx context.Context, model, prompt string) (generation, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.models = append(m.models, model)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return generation{}, err
		}
	}
	return m.gen, nil
}

func textNode(params map[string]any) graph.Node {
	return graph.Node{ID: "n1", Kind: "google.text", Params: params}
}

func TestExecuteSuccess(t *testing.T) {
	client := &mockClient{gen: generation{text: "shot list for scene two", inputTokens: 40, outputTokens: 120}}
	e := &Executor{client: client}

	out, err := e.Execute(context.Background(), textNode(map[string]any{"prompt": "List the shots"}), nil, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	text, ok := exec.DecodeTextURL(out.URLs[0])
	if !ok || text != "shot list for scene two" {
		t.Errorf("expected generated text in data URL, got %q (%v)", text, ok)
	}
	if out.Cost <= 0 {
		t.Error("expected positive cost from token usage")
	}
	if client.models[0] != DefaultModel {
		t.Errorf("expected default model, got %q", client.models[0])
	}
}

func TestExecutePromptIncludesUpstream(t *testing.T) {
	client := &mockClient{gen: generation{text: "ok"}}
	e := &Executor{client: client}

	inputs := map[string]exec.Input{
		"context": {SourceNodeID: "up1", URLs: []string{exec.EncodeTextURL("moody noir aesthetic")}},
	}
	_, err := e.Execute(context.Background(), textNode(map[string]any{"prompt": "Describe the scene"}), inputs, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(client.prompts[0], "moody noir aesthetic") {
		t.Errorf("expected upstream text inlined, got %q", client.prompts[0])
	}
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	client := &mockClient{
		gen:  generation{text: "ok"},
		errs: []error{errors.New("resource exhausted"), nil},
	}
	e := &Executor{client: client}

	if _, err := e.Execute(context.Background(), textNode(map[string]any{"prompt": "go"}), nil, nil); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", client.calls)
	}
}

func TestExecuteMissingPrompt(t *testing.T) {
	client := &mockClient{}
	e := &Executor{client: client}

	if _, err := e.Execute(context.Background(), textNode(nil), nil, nil); err == nil {
		t.Error("expected error for missing prompt param")
	}
	if client.calls != 0 {
		t.Errorf("expected no API call, got %d", client.calls)
	}
}

func TestCloseWithoutClient(t *testing.T) {
	e := &Executor{client: &mockClient{}}
	if err := e.Close(); err != nil {
		t.Errorf("Close without client failed: %v", err)
	}
}
