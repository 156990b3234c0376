package model

// Request captures the outbound side of a node execution for forensics.
// Every field is optional; non-HTTP executions leave most of them empty.
type Request struct {
	Method      string            `json:"method,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"queryParams,omitempty"`
	Body        any               `json:"body,omitempty"`
}

// Response captures the inbound side of a node execution. It is recorded on
// both success and failure paths so the canvas can render diagnostics either
// way.
type Response struct {
	Status     int               `json:"status"`
	StatusText string            `json:"statusText,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Data       any               `json:"data,omitempty"`
}

// Envelope is the normalized result of executing one node.
type Envelope struct {
	Data     map[string]any `json:"data,omitempty"`
	Request  *Request       `json:"request,omitempty"`
	Response *Response      `json:"response,omitempty"`
}
