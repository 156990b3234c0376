// Package testutil provides the shared fakes and builders the engine's
// tests are written against: a recording API client, a scriptable HTTP
// transport, and pipeline document builders.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/vk/pipecanvas/internal/model"
)

// Call records one request seen by the MockClient.
type Call struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

// MockClient is a recording executor.APIClient with canned responses keyed
// by URL. Unmatched URLs get the Default response or a plain 200.
type MockClient struct {
	mu        sync.Mutex
	calls     []Call
	Responses map[string]*model.Response
	Default   *model.Response
	Err       error
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{Responses: make(map[string]*model.Response)}
}

// Get implements executor.APIClient.
func (m *MockClient) Get(ctx context.Context, url string, headers map[string]string) (*model.Response, error) {
	return m.record("GET", url, nil, headers)
}

// Post implements executor.APIClient.
func (m *MockClient) Post(ctx context.Context, url string, body any, headers map[string]string) (*model.Response, error) {
	return m.record("POST", url, body, headers)
}

func (m *MockClient) record(method, url string, body any, headers map[string]string) (*model.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Method: method, URL: url, Body: body, Headers: headers})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if resp, ok := m.Responses[url]; ok {
		return resp, nil
	}
	if m.Default != nil {
		return m.Default, nil
	}
	return &model.Response{Status: 200, StatusText: "OK"}, nil
}

// Calls returns a copy of the recorded calls in order.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// NewHTTPClient returns an http.Client whose transport is the given
// function, for exercising the executor's direct-fetch path without a
// network.
func NewHTTPClient(fn func(r *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: roundTripFunc(fn)}
}

// JSONResponse builds an *http.Response with a JSON body for NewHTTPClient
// handlers.
func JSONResponse(status int, v any) *http.Response {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

// NewNode builds a pipeline node in idle state.
func NewNode(id, nodeType string, config map[string]any) *model.PipelineNode {
	return &model.PipelineNode{
		ID:     id,
		Type:   nodeType,
		Label:  id,
		Config: config,
		Status: model.NodeIdle,
	}
}

// NewPipeline builds a draft pipeline document around the given nodes and
// edges.
func NewPipeline(name string, nodes []*model.PipelineNode, edges []model.Edge) *model.Pipeline {
	p := model.NewPipeline(name)
	p.Nodes = nodes
	p.Edges = edges
	return p
}
