package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vk/pipecanvas/internal/ctxlog"
	"github.com/vk/pipecanvas/internal/model"
	"github.com/vk/pipecanvas/internal/schema"
	"github.com/vk/pipecanvas/internal/template"
)

// runAPICall performs the full HTTP negotiation for an api_call descriptor:
// endpoint and method resolution, query parameters, headers and auth, body
// construction, and transport dispatch.
func runAPICall(ctx context.Context, def *schema.NodeDefinition, node *model.PipelineNode, inputData map[string]any, ec *Context) (*model.Envelope, error) {
	logger := ctxlog.FromContext(ctx).With("node", node.ID)

	endpoint, err := resolveEndpoint(def, node, inputData, ec)
	if err != nil {
		return nil, err
	}

	method, err := template.ResolveString(def.Execution.Method, node, inputData)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "GET"
	}

	queryParams, err := buildQueryParams(def, node, inputData)
	if err != nil {
		return nil, err
	}
	requestURL, err := appendQuery(endpoint, queryParams)
	if err != nil {
		return nil, &InvalidConfigurationError{NodeID: node.ID, Field: "url", Reason: err.Error()}
	}

	body, bodyKind, err := buildBody(def, node, inputData)
	if err != nil {
		return nil, err
	}

	headers, err := buildHeaders(def, node, inputData)
	if err != nil {
		return nil, err
	}
	if body != nil && headers["Content-Type"] == "" {
		headers["Content-Type"] = contentTypeFor(bodyKind)
	}

	req := &model.Request{
		Method:      method,
		URL:         requestURL,
		Headers:     headers,
		QueryParams: queryParams,
		Body:        body,
	}

	logger.Info("🌐 Issuing request", "method", method, "url", requestURL)

	var resp *model.Response
	if isAbsolute(requestURL) {
		resp, err = httpDo(ctx, ec.httpClient(), req)
	} else {
		resp, err = internalDo(ctx, ec, node.ID, req)
	}
	if err != nil {
		if cfgErr, ok := err.(*InvalidConfigurationError); ok {
			return nil, cfgErr
		}
		return nil, &NetworkError{NodeID: node.ID, URL: requestURL, Request: req, Err: err}
	}

	logger.Debug("Received response.", "status", resp.Status)

	if resp.Status < 200 || resp.Status >= 300 {
		return nil, &HttpError{NodeID: node.ID, Status: resp.Status, Request: req, Response: resp}
	}

	return &model.Envelope{
		Data: map[string]any{
			"data":   resp.Data,
			"status": resp.Status,
		},
		Request:  req,
		Response: resp,
	}, nil
}

// internalDo routes a relative/internal endpoint through the injected API
// client capability.
func internalDo(ctx context.Context, ec *Context, nodeID string, req *model.Request) (*model.Response, error) {
	if ec.Client == nil {
		return nil, &InvalidConfigurationError{
			NodeID: nodeID,
			Field:  "url",
			Reason: fmt.Sprintf("no API client configured for internal endpoint %q", req.URL),
		}
	}
	if req.Method == "GET" {
		return ec.Client.Get(ctx, req.URL, req.Headers)
	}
	// The capability exposes only get/post; every body-carrying method
	// (POST, PUT, PATCH, DELETE) collapses to Post.
	return ec.Client.Post(ctx, req.URL, req.Body, req.Headers)
}

// resolveEndpoint applies the override precedence: descriptor template,
// then the application endpoint map keyed by node type, then an explicit
// absolute URL in the node's own config.
func resolveEndpoint(def *schema.NodeDefinition, node *model.PipelineNode, inputData map[string]any, ec *Context) (string, error) {
	endpoint, err := template.ResolveString(def.Execution.Endpoint, node, inputData)
	if err != nil {
		return "", err
	}

	if override, ok := ec.Endpoints[node.Type]; ok && override != "" {
		endpoint = override
	}

	if raw := configString(node, "url"); isAbsolute(raw) {
		resolved, err := template.ResolveString(raw, node, inputData)
		if err != nil {
			return "", err
		}
		endpoint = resolved
	}

	if strings.TrimSpace(endpoint) == "" {
		return "", &InvalidConfigurationError{
			NodeID: node.ID,
			Field:  "url",
			Reason: "api_call has no resolvable endpoint",
		}
	}
	return endpoint, nil
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// buildQueryParams merges descriptor query parameters with the node's
// query_params config (a JSON object, possibly hand-edited). All values are
// template-resolved and string-coerced.
func buildQueryParams(def *schema.NodeDefinition, node *model.PipelineNode, inputData map[string]any) (map[string]string, error) {
	params := make(map[string]string)
	for name, tmpl := range def.Execution.QueryParams {
		value, err := template.ResolveString(tmpl, node, inputData)
		if err != nil {
			return nil, err
		}
		params[name] = value
	}

	extra, err := configObject(node, "query_params")
	if err != nil {
		return nil, err
	}
	for name, raw := range extra {
		resolved, err := template.Resolve(raw, node, inputData)
		if err != nil {
			return nil, err
		}
		params[name] = coerceParam(resolved)
	}

	if len(params) == 0 {
		return nil, nil
	}
	return params, nil
}

func coerceParam(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// appendQuery attaches query parameters to the endpoint. Absolute URLs go
// through net/url; relative ones are assembled by hand in sorted key order
// so the request log is deterministic.
func appendQuery(endpoint string, params map[string]string) (string, error) {
	if len(params) == 0 {
		return endpoint, nil
	}

	if isAbsolute(endpoint) {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("parse url %q: %w", endpoint, err)
		}
		q := u.Query()
		for name, value := range params {
			q.Set(name, value)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+url.QueryEscape(params[name]))
	}

	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + strings.Join(pairs, "&"), nil
}

// buildHeaders resolves descriptor headers, applies the configured auth
// mode, merges explicit custom headers, and drops any header whose resolved
// value came out empty.
func buildHeaders(def *schema.NodeDefinition, node *model.PipelineNode, inputData map[string]any) (map[string]string, error) {
	headers := make(map[string]string)
	for name, tmpl := range def.Execution.Headers {
		value, err := template.ResolveString(tmpl, node, inputData)
		if err != nil {
			return nil, err
		}
		headers[name] = value
	}

	switch configString(node, "auth_type") {
	case "basic":
		user := configString(node, "username")
		pass := configString(node, "password")
		if user != "" || pass != "" {
			headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
		}
	case "bearer":
		if token := configString(node, "token"); token != "" {
			headers["Authorization"] = "Bearer " + token
		}
	case "custom":
		name := configString(node, "header_name")
		value := configString(node, "header_value")
		if name != "" {
			headers[name] = value
		}
	}

	custom, err := configObject(node, "custom_headers")
	if err != nil {
		return nil, err
	}
	for name, raw := range custom {
		value, err := template.Resolve(raw, node, inputData)
		if err != nil {
			return nil, err
		}
		headers[name] = coerceParam(value)
	}

	for name, value := range headers {
		if strings.TrimSpace(value) == "" {
			delete(headers, name)
		}
	}
	return headers, nil
}

// buildBody negotiates the request body from body_specify/body_content_type
// config, falling back to the descriptor's legacy fixed payload. The second
// return names the body kind for Content-Type defaulting.
func buildBody(def *schema.NodeDefinition, node *model.PipelineNode, inputData map[string]any) (any, string, error) {
	switch configString(node, "body_specify") {
	case "json":
		raw := configString(node, "body_json")
		if strings.TrimSpace(raw) == "" {
			return nil, "", nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(autoQuoteTemplates(raw)), &parsed); err != nil {
			return nil, "", &MalformedBodyError{NodeID: node.ID, Err: err}
		}
		resolved, err := template.Resolve(parsed, node, inputData)
		if err != nil {
			return nil, "", err
		}
		return resolved, "json", nil

	case "expression":
		resolved, err := template.Resolve(configString(node, "body_expression"), node, inputData)
		if err != nil {
			return nil, "", err
		}
		return resolved, "json", nil

	case "raw":
		resolved, err := template.ResolveString(configString(node, "body_raw"), node, inputData)
		if err != nil {
			return nil, "", err
		}
		if resolved == "" {
			return nil, "", nil
		}
		return resolved, configString(node, "body_content_type"), nil
	}

	if len(def.Execution.Payload) > 0 {
		resolved, err := template.Resolve(def.Execution.Payload, node, inputData)
		if err != nil {
			return nil, "", err
		}
		return resolved, "json", nil
	}
	return nil, "", nil
}

func contentTypeFor(kind string) string {
	switch kind {
	case "text":
		return "text/plain"
	case "xml":
		return "application/xml"
	default:
		return "application/json"
	}
}

// templateToken matches an unquoted {{...}} appearing in a value position.
var templateToken = regexp.MustCompile(`([:,\[]\s*)(\{\{[^{}]+\}\})`)

// autoQuoteTemplates wraps bare template placeholders in quotes so
// hand-edited JSON like {"count": {{config.n}}} parses. The typed value is
// restored afterwards by exact-match template resolution.
func autoQuoteTemplates(raw string) string {
	return templateToken.ReplaceAllString(raw, `$1"$2"`)
}

// configObject reads a config field that holds a JSON object, accepting
// either a decoded map or a JSON string as the canvas stores it.
func configObject(node *model.PipelineNode, field string) (map[string]any, error) {
	switch v := node.ConfigValue(field).(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(autoQuoteTemplates(v)), &out); err != nil {
			return nil, &InvalidConfigurationError{
				NodeID: node.ID,
				Field:  field,
				Reason: fmt.Sprintf("not a valid JSON object: %v", err),
			}
		}
		return out, nil
	default:
		return nil, &InvalidConfigurationError{
			NodeID: node.ID,
			Field:  field,
			Reason: "expected a JSON object",
		}
	}
}
