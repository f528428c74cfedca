// Package api implements a client for OpenAI compatible chat-completion APIs.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/shivanshkc/tokbench/pkg/httpx"
	"github.com/shivanshkc/tokbench/pkg/streams"
)

// chatCompletionsPath is joined to the base URL for every call.
const chatCompletionsPath = "v1/chat/completions"

// Client represents an LLM REST API client.
type Client struct {
	baseURL    string
	httpClient *httpx.RetryClient
}

// NewClient returns a new Client instance.
//
// The retry policy applies to ChatCompletion only. Streaming calls are made
// exactly once, since they are what gets measured.
func NewClient(baseURL string, httpClient *http.Client, retry httpx.RetryPolicy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &httpx.RetryClient{Client: httpClient, Policy: retry},
	}
}

// ChatCompletionStream is a wrapper for the /chat/completions API with stream enabled.
//
// A non-200 status is returned as a *StatusError without reading the body.
// Events that fail to decode are delivered with an error wrapping
// ErrMalformedEvent, and the stream continues after them.
func (c *Client) ChatCompletionStream(
	ctx context.Context, request ChatCompletionRequest,
) (*streams.Stream[ChatCompletionEvent], error) {
	request.Stream = true

	httpRequest, err := c.newRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Accept", "text/event-stream")

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()
		return nil, &StatusError{Code: response.StatusCode}
	}

	// ReadFrames owns the body from here on.
	return streams.Map(httpx.ReadFrames(ctx, response.Body), convertFrame), nil
}

// ChatCompletion is a wrapper for the /chat/completions API with stream disabled.
// It retries as per the client's retry policy.
func (c *Client) ChatCompletion(ctx context.Context, request ChatCompletionRequest) (*ChatCompletion, error) {
	request.Stream = false

	httpRequest, err := c.newRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.DoRetry(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		responseBody, err := io.ReadAll(io.LimitReader(response.Body, 512))
		if err != nil {
			responseBody = []byte("failed to read response body: " + err.Error())
		}
		return nil, &StatusError{Code: response.StatusCode, Body: string(responseBody)}
	}

	var completion ChatCompletion
	if err := json.NewDecoder(response.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return &completion, nil
}

// newRequest builds a rewindable JSON POST request for the chat-completions endpoint.
func (c *Client) newRequest(ctx context.Context, request ChatCompletionRequest) (*http.Request, error) {
	endpoint, err := url.JoinPath(c.baseURL, chatCompletionsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to form API endpoint URL: %w", err)
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}

	return httpRequest, nil
}

// convertFrame converts the given frame to a ChatCompletionEvent.
func convertFrame(frame httpx.Frame) ChatCompletionEvent {
	event := ChatCompletionEvent{index: frame.Index, timestamp: frame.Received}

	if frame.Error != nil {
		event.err = fmt.Errorf("failed to read event: %w", frame.Error)
		return event
	}

	if err := json.Unmarshal([]byte(frame.Data), &event); err != nil {
		// Drop whatever was decoded before the failure.
		return ChatCompletionEvent{
			index:     frame.Index,
			timestamp: frame.Received,
			err:       fmt.Errorf("%w: %w", ErrMalformedEvent, err),
		}
	}

	return event
}
