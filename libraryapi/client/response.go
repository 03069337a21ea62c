package client

import (
	"errors"
	"fmt"
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

// ErrDecodingResponseBodyFailed is returned by Response.Decode when the body is not the expected JSON.
var ErrDecodingResponseBodyFailed = errors.New("decoding response body failed")

// Response is the raw outcome of one request: status, headers and body, untouched.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(r.Body, v); err != nil {
		return errors.Join(ErrDecodingResponseBodyFailed, err)
	}

	return nil
}

// Err returns a *ResponseError for non-2xx responses and nil otherwise.
func (r *Response) Err() error {
	if r.IsSuccess() {
		return nil
	}

	return &ResponseError{StatusCode: r.StatusCode, Body: r.Body}
}

// ResponseError describes a response the backend answered with a non-2xx status.
type ResponseError struct {
	StatusCode int
	Body       []byte
}

func (e *ResponseError) Error() string {
	if detail := e.Detail(); detail != "" {
		return fmt.Sprintf("library api responded %d: %s", e.StatusCode, detail)
	}

	return fmt.Sprintf("library api responded %d", e.StatusCode)
}

// Detail extracts the human-readable message of an error body ("detail" or "message"),
// falling back to the raw body.
func (e *ResponseError) Detail() string {
	var msg struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}

	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(e.Body, &msg); err == nil {
		if msg.Detail != "" {
			return msg.Detail
		}
		if msg.Message != "" {
			return msg.Message
		}
	}

	return string(e.Body)
}
