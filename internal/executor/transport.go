package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vk/pipecanvas/internal/model"
)

// APIClient is the injected capability for same-origin/internal endpoints.
// Absolute external URLs bypass it and go through the direct HTTP transport.
type APIClient interface {
	Get(ctx context.Context, url string, headers map[string]string) (*model.Response, error)
	Post(ctx context.Context, url string, body any, headers map[string]string) (*model.Response, error)
}

// httpDo issues one request with the given client and captures the full
// response envelope. A transport-level failure (no response at all) comes
// back as a plain error for the caller to wrap as a NetworkError.
func httpDo(ctx context.Context, client *http.Client, req *model.Request) (*model.Response, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		switch b := req.Body.(type) {
		case string:
			bodyReader = strings.NewReader(b)
		case []byte:
			bodyReader = bytes.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			bodyReader = bytes.NewReader(encoded)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}

	out := &model.Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    headers,
	}

	// Decode JSON bodies into structured data; keep anything else as text.
	var data any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = string(raw)
		}
	}
	out.Data = data

	return out, nil
}
