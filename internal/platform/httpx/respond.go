// Package httpx provides the JSON envelope shared by every API handler.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body of every API endpoint.
type Envelope struct {
	OK    bool         `json:"ok"`
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries a machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes {"ok":true,"data":...}.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{OK: true, Data: data})
}

// Problem writes {"ok":false,"error":{...}}.
func Problem(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, Envelope{OK: false, Error: &ErrorDetail{Code: code, Message: message}})
}
