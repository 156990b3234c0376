package executor

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pipecanvas/internal/model"
	"github.com/vk/pipecanvas/internal/testutil"
)

func apiPipeline(node *model.PipelineNode) *model.Pipeline {
	return testutil.NewPipeline("t", []*model.PipelineNode{node}, nil)
}

func TestAPICallAbsoluteGet(t *testing.T) {
	var seen *http.Request
	client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
		seen = r
		return testutil.JSONResponse(200, map[string]any{"id": 1}), nil
	})

	node := testutil.NewNode("api-1", "api_node", map[string]any{
		"url":    "https://api.example.com/items/1",
		"method": "GET",
	})
	ec := execContext(apiPipeline(node))
	ec.HTTP = client

	env, err := Execute(context.Background(), node, ec)
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "GET", seen.Method)
	assert.Equal(t, "https://api.example.com/items/1", seen.URL.String())

	assert.Equal(t, map[string]any{"id": float64(1)}, env.Data["data"])
	assert.Equal(t, 200, env.Data["status"])
	require.NotNil(t, env.Response)
	assert.Equal(t, 200, env.Response.Status)
	require.NotNil(t, env.Request)
	assert.Equal(t, "GET", env.Request.Method)
}

func TestAPICallHttpError(t *testing.T) {
	client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
		return testutil.JSONResponse(404, map[string]any{"error": "not found"}), nil
	})

	node := testutil.NewNode("api-1", "api_node", map[string]any{
		"url": "https://api.example.com/missing",
	})
	ec := execContext(apiPipeline(node))
	ec.HTTP = client

	_, err := Execute(context.Background(), node, ec)

	var httpErr *HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "api-1", httpErr.NodeID)
	assert.Equal(t, 404, httpErr.Status)
	require.NotNil(t, httpErr.Response)
	assert.Equal(t, 404, httpErr.Response.Status)
	require.NotNil(t, httpErr.Request)
	assert.Equal(t, "https://api.example.com/missing", httpErr.Request.URL)
}

func TestAPICallNetworkError(t *testing.T) {
	client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	node := testutil.NewNode("api-1", "api_node", map[string]any{
		"url": "https://api.example.com/down",
	})
	ec := execContext(apiPipeline(node))
	ec.HTTP = client

	_, err := Execute(context.Background(), node, ec)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "api-1", netErr.NodeID)
	assert.NotNil(t, netErr.Request)
}

func TestAPICallInternalRouting(t *testing.T) {
	t.Run("relative endpoints go through the API client", func(t *testing.T) {
		mock := testutil.NewMockClient()
		mock.Responses["/api/rfdiffusion/run"] = &model.Response{
			Status: 200,
			Data:   map[string]any{"output_file": "design_0.pdb"},
		}

		input := testutil.NewNode("input-1", "input_node", map[string]any{"filename": "target.pdb"})
		input.Status = model.NodeSuccess
		design := testutil.NewNode("design-1", "rfdiffusion", map[string]any{
			"contigs":     "A1-100",
			"num_designs": float64(4),
		})
		p := testutil.NewPipeline("t",
			[]*model.PipelineNode{input, design},
			[]model.Edge{{Source: "input-1", Target: "design-1", TargetHandle: "structure"}},
		)
		ec := execContext(p)
		ec.Client = mock

		env, err := Execute(context.Background(), design, ec)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"output_file": "design_0.pdb"}, env.Data["data"])

		calls := mock.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "POST", calls[0].Method)
		assert.Equal(t, "/api/rfdiffusion/run", calls[0].URL)

		body, ok := calls[0].Body.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "target.pdb", body["pdb_file"])
		assert.Equal(t, "A1-100", body["contigs"])
		assert.Equal(t, float64(4), body["num_designs"])
	})

	t.Run("definition defaults fill unconfigured fields", func(t *testing.T) {
		mock := testutil.NewMockClient()

		input := testutil.NewNode("input-1", "input_node", map[string]any{"filename": "target.pdb"})
		design := testutil.NewNode("design-1", "rfdiffusion", map[string]any{
			"contigs": "A1-100",
			// num_designs deliberately unset; the declared default is 1.
		})
		p := testutil.NewPipeline("t",
			[]*model.PipelineNode{input, design},
			[]model.Edge{{Source: "input-1", Target: "design-1", TargetHandle: "structure"}},
		)
		ec := execContext(p)
		ec.Client = mock

		_, err := Execute(context.Background(), design, ec)
		require.NoError(t, err)

		calls := mock.Calls()
		require.Len(t, calls, 1)
		body := calls[0].Body.(map[string]any)
		assert.Equal(t, 1, body["num_designs"])
		// The stored document is not widened with defaults.
		assert.NotContains(t, design.Config, "num_designs")
	})

	t.Run("relative endpoint without a client is a configuration error", func(t *testing.T) {
		design := testutil.NewNode("design-1", "rfdiffusion", map[string]any{"contigs": "A1-100"})
		input := testutil.NewNode("input-1", "input_node", map[string]any{"filename": "t.pdb"})
		p := testutil.NewPipeline("t",
			[]*model.PipelineNode{input, design},
			[]model.Edge{{Source: "input-1", Target: "design-1", TargetHandle: "structure"}},
		)
		ec := execContext(p)

		_, err := Execute(context.Background(), design, ec)

		var cfgErr *InvalidConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "design-1", cfgErr.NodeID)
	})
}

func TestAPICallEndpointPrecedence(t *testing.T) {
	t.Run("endpoint map overrides the descriptor", func(t *testing.T) {
		var seen string
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r.URL.String()
			return testutil.JSONResponse(200, nil), nil
		})

		input := testutil.NewNode("input-1", "input_node", map[string]any{"filename": "t.pdb"})
		design := testutil.NewNode("design-1", "rfdiffusion", map[string]any{"contigs": "A1-100"})
		p := testutil.NewPipeline("t",
			[]*model.PipelineNode{input, design},
			[]model.Edge{{Source: "input-1", Target: "design-1", TargetHandle: "structure"}},
		)
		ec := execContext(p)
		ec.HTTP = client
		ec.Endpoints = map[string]string{"rfdiffusion": "https://gpu-worker.internal/run"}

		_, err := Execute(context.Background(), design, ec)
		require.NoError(t, err)
		assert.Equal(t, "https://gpu-worker.internal/run", seen)
	})

	t.Run("an absolute config url overrides everything", func(t *testing.T) {
		var seen string
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r.URL.String()
			return testutil.JSONResponse(200, nil), nil
		})

		node := testutil.NewNode("api-1", "api_node", map[string]any{
			"url": "https://override.example.com/x",
		})
		ec := execContext(apiPipeline(node))
		ec.HTTP = client
		ec.Endpoints = map[string]string{"api_node": "https://mapped.example.com/y"}

		_, err := Execute(context.Background(), node, ec)
		require.NoError(t, err)
		assert.Equal(t, "https://override.example.com/x", seen)
	})

	t.Run("no resolvable endpoint is a configuration error", func(t *testing.T) {
		node := testutil.NewNode("api-1", "api_node", nil)
		ec := execContext(apiPipeline(node))

		_, err := Execute(context.Background(), node, ec)

		var cfgErr *InvalidConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "url", cfgErr.Field)
	})
}

func TestAPICallAuth(t *testing.T) {
	headerOf := func(t *testing.T, config map[string]any, name string) string {
		t.Helper()
		var seen http.Header
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r.Header
			return testutil.JSONResponse(200, nil), nil
		})
		config["url"] = "https://api.example.com/x"
		node := testutil.NewNode("api-1", "api_node", config)
		ec := execContext(apiPipeline(node))
		ec.HTTP = client
		_, err := Execute(context.Background(), node, ec)
		require.NoError(t, err)
		return seen.Get(name)
	}

	t.Run("basic", func(t *testing.T) {
		got := headerOf(t, map[string]any{
			"auth_type": "basic",
			"username":  "alice",
			"password":  "s3cret",
		}, "Authorization")
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))
		assert.Equal(t, want, got)
	})

	t.Run("bearer", func(t *testing.T) {
		got := headerOf(t, map[string]any{
			"auth_type": "bearer",
			"token":     "tok-123",
		}, "Authorization")
		assert.Equal(t, "Bearer tok-123", got)
	})

	t.Run("custom header", func(t *testing.T) {
		got := headerOf(t, map[string]any{
			"auth_type":    "custom",
			"header_name":  "X-Api-Key",
			"header_value": "k-9",
		}, "X-Api-Key")
		assert.Equal(t, "k-9", got)
	})

	t.Run("custom headers merge on top", func(t *testing.T) {
		got := headerOf(t, map[string]any{
			"custom_headers": map[string]any{"X-Trace": "abc"},
		}, "X-Trace")
		assert.Equal(t, "abc", got)
	})
}

func TestAPICallQueryParams(t *testing.T) {
	t.Run("absolute url", func(t *testing.T) {
		var seen *http.Request
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r
			return testutil.JSONResponse(200, nil), nil
		})

		node := testutil.NewNode("api-1", "api_node", map[string]any{
			"url":          "https://api.example.com/search",
			"query_params": map[string]any{"q": "protein", "limit": float64(10)},
		})
		ec := execContext(apiPipeline(node))
		ec.HTTP = client

		_, err := Execute(context.Background(), node, ec)
		require.NoError(t, err)
		assert.Equal(t, "protein", seen.URL.Query().Get("q"))
		assert.Equal(t, "10", seen.URL.Query().Get("limit"))
	})

	t.Run("relative url keeps sorted key order", func(t *testing.T) {
		got, err := appendQuery("/api/search", map[string]string{"b": "2", "a": "1"})
		require.NoError(t, err)
		assert.Equal(t, "/api/search?a=1&b=2", got)
	})

	t.Run("existing query string is extended", func(t *testing.T) {
		got, err := appendQuery("/api/search?x=0", map[string]string{"a": "1"})
		require.NoError(t, err)
		assert.Equal(t, "/api/search?x=0&a=1", got)
	})

	t.Run("json string config is accepted", func(t *testing.T) {
		var seen *http.Request
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r
			return testutil.JSONResponse(200, nil), nil
		})

		node := testutil.NewNode("api-1", "api_node", map[string]any{
			"url":          "https://api.example.com/search",
			"query_params": `{"q": "fold"}`,
		})
		ec := execContext(apiPipeline(node))
		ec.HTTP = client

		_, err := Execute(context.Background(), node, ec)
		require.NoError(t, err)
		assert.Equal(t, "fold", seen.URL.Query().Get("q"))
	})
}

func TestAPICallBody(t *testing.T) {
	readBody := func(t *testing.T, r *http.Request) string {
		t.Helper()
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		return string(raw)
	}

	t.Run("json body keeps typed template values", func(t *testing.T) {
		var seen *http.Request
		var body string
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r
			body = readBody(t, r)
			return testutil.JSONResponse(200, nil), nil
		})

		node := testutil.NewNode("api-1", "api_node", map[string]any{
			"url":          "https://api.example.com/jobs",
			"method":       "POST",
			"body_specify": "json",
			"body_json":    `{"count": {{config.count}}, "name": "{{config.name}}"}`,
			"count":        float64(3),
			"name":         "run-a",
		})
		ec := execContext(apiPipeline(node))
		ec.HTTP = client

		_, err := Execute(context.Background(), node, ec)
		require.NoError(t, err)
		assert.JSONEq(t, `{"count": 3, "name": "run-a"}`, body)
		assert.Equal(t, "application/json", seen.Header.Get("Content-Type"))
	})

	t.Run("malformed json body", func(t *testing.T) {
		node := testutil.NewNode("api-1", "api_node", map[string]any{
			"url":          "https://api.example.com/jobs",
			"method":       "POST",
			"body_specify": "json",
			"body_json":    `{"count": }`,
		})
		ec := execContext(apiPipeline(node))

		_, err := Execute(context.Background(), node, ec)

		var bodyErr *MalformedBodyError
		require.ErrorAs(t, err, &bodyErr)
		assert.Equal(t, "api-1", bodyErr.NodeID)
	})

	t.Run("raw body with explicit content type", func(t *testing.T) {
		var seen *http.Request
		var body string
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r
			body = readBody(t, r)
			return testutil.JSONResponse(200, nil), nil
		})

		node := testutil.NewNode("api-1", "api_node", map[string]any{
			"url":               "https://api.example.com/jobs",
			"method":            "POST",
			"body_specify":      "raw",
			"body_raw":          "plain payload",
			"body_content_type": "text",
		})
		ec := execContext(apiPipeline(node))
		ec.HTTP = client

		_, err := Execute(context.Background(), node, ec)
		require.NoError(t, err)
		assert.Equal(t, "plain payload", body)
		assert.Equal(t, "text/plain", seen.Header.Get("Content-Type"))
	})

	t.Run("no body sends no content type", func(t *testing.T) {
		var seen *http.Request
		client := testutil.NewHTTPClient(func(r *http.Request) (*http.Response, error) {
			seen = r
			return testutil.JSONResponse(200, nil), nil
		})

		node := testutil.NewNode("api-1", "api_node", map[string]any{
			"url": "https://api.example.com/x",
		})
		ec := execContext(apiPipeline(node))
		ec.HTTP = client

		_, err := Execute(context.Background(), node, ec)
		require.NoError(t, err)
		assert.Empty(t, seen.Header.Get("Content-Type"))
	})
}

func TestCoerceParam(t *testing.T) {
	assert.Equal(t, "plain", coerceParam("plain"))
	// Quotes inside a string value survive untouched.
	assert.Equal(t, `say "hi"`, coerceParam(`say "hi"`))
	assert.Equal(t, "2.5", coerceParam(float64(2.5)))
	assert.Equal(t, "10", coerceParam(float64(10)))
	assert.Equal(t, "true", coerceParam(true))
	assert.Equal(t, "", coerceParam(nil))
	assert.Equal(t, `["a","b"]`, coerceParam([]any{"a", "b"}))
}

func TestAutoQuoteTemplates(t *testing.T) {
	assert.Equal(t,
		`{"count": "{{config.n}}"}`,
		autoQuoteTemplates(`{"count": {{config.n}}}`),
	)
	assert.Equal(t,
		`{"list": ["{{input.a}}", "{{input.b}}"]}`,
		autoQuoteTemplates(`{"list": [{{input.a}}, {{input.b}}]}`),
	)
	// Already-quoted placeholders are left alone.
	assert.Equal(t,
		`{"name": "{{config.name}}"}`,
		autoQuoteTemplates(`{"name": "{{config.name}}"}`),
	)
}
