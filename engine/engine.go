// Package engine holds what the search engine adapters share: the request
// body encoding and the error returned for non-2xx engine responses.
package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Alp4ka/searchpager"
)

// Error is an engine response with a non-2xx status.
type Error struct {
	Engine     string
	StatusCode int
	Type       string
	Reason     string
}

func (e *Error) Error() string {
	if e.Type == "" && e.Reason == "" {
		return fmt.Sprintf("%s: status %d", e.Engine, e.StatusCode)
	}

	return fmt.Sprintf("%s: status %d: %s: %s", e.Engine, e.StatusCode, e.Type, e.Reason)
}

// IsNotFound reports whether err is an engine 404, e.g. a missing index.
func IsNotFound(err error) bool {
	var engineErr *Error
	return errors.As(err, &engineErr) && engineErr.StatusCode == http.StatusNotFound
}

// NewError reads an error body of the form
//
//	{"error": {"type": "...", "reason": "..."}, "status": 400}
//
// The "error" member may also be a plain string. Unreadable bodies still
// yield an *Error carrying the status code.
func NewError(engine string, statusCode int, body io.Reader) *Error {
	ret := &Error{Engine: engine, StatusCode: statusCode}
	if body == nil {
		return ret
	}

	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || len(payload.Error) == 0 {
		return ret
	}

	var cause struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload.Error, &cause); err == nil {
		ret.Type, ret.Reason = cause.Type, cause.Reason
		return ret
	}

	var reason string
	if err := json.Unmarshal(payload.Error, &reason); err == nil {
		ret.Reason = reason
	}

	return ret
}

// EncodeBody renders req as a JSON search body.
func EncodeBody(req *searchpager.Request) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req.Body()); err != nil {
		return nil, fmt.Errorf("cannot encode search body: %w", err)
	}

	return &buf, nil
}
