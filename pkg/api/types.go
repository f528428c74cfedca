package api

import (
	"errors"
	"fmt"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrMalformedEvent is wrapped by the error of an event whose payload could not
// be decoded. Such an event carries no content and can be skipped.
var ErrMalformedEvent = errors.New("malformed event")

// ChatMessage represents a single message in the LLM chat.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of a /v1/chat/completions call.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// StatusError is returned when the API answers with a non-200 status code.
type StatusError struct {
	Code int
	// Body is a prefix of the response body. It is empty for streaming calls,
	// where the body is not read on failure.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status code of the failed call.
func (e *StatusError) StatusCode() int { return e.Code }

// ChatCompletionEvent represents a single event from the Chat-Completion API response stream.
type ChatCompletionEvent struct {
	Choices []ChatCompletionChoice `json:"choices"`

	Created           int    `json:"created"`
	Id                string `json:"id"`
	Model             string `json:"model"`
	SystemFingerprint string `json:"system_fingerprint"`
	Object            string `json:"object"`

	// index is the line position of the event in the response body.
	index int
	// timestamp is the local time of event reception. It is not received from the API.
	timestamp time.Time
	// err is set if the event could not be read or decoded.
	err error
}

func (cce ChatCompletionEvent) Index() int           { return cce.index }
func (cce ChatCompletionEvent) Timestamp() time.Time { return cce.timestamp }
func (cce ChatCompletionEvent) Err() error           { return cce.err }

// Content returns the generated text carried by the first choice, if any.
func (cce ChatCompletionEvent) Content() string {
	if len(cce.Choices) == 0 {
		return ""
	}
	return cce.Choices[0].Delta.Content
}

type ChatCompletionChoice struct {
	Delta ChatCompletionDelta `json:"delta"`

	FinishReason *string `json:"finish_reason"`
	Index        int     `json:"index"`
}

type ChatCompletionDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// ChatCompletion is the response of a non-streaming /v1/chat/completions call.
type ChatCompletion struct {
	Id      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Content returns the text of the first choice, if any.
func (cc *ChatCompletion) Content() string {
	if len(cc.Choices) == 0 {
		return ""
	}
	return cc.Choices[0].Message.Content
}
