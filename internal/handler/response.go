// Package handler holds the shared response envelope and the operational
// endpoints (health, metrics) used by both binaries.
package handler

// Response is the envelope every API endpoint returns: a status of
// "success" or "error", an optional message, and the payload under data.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{Status: "success", Data: data}
}

func NewErrorResponse(message string) *Response {
	return &Response{Status: "error", Message: message}
}
