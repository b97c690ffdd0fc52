package huggingface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/mri-highlighter/pkg/response"
	"github.com/menta2k/mri-highlighter/pkg/types"
)

// DefaultURL is the hosted inference endpoint for the default vision model
const DefaultURL = "https://api-inference.huggingface.co/models/meta-llama/Llama-3.2-11B-Vision-Instruct"

// Client calls the hosted inference API
type Client struct {
	url        string
	token      string
	textField  string
	httpClient *http.Client
}

// Inputs is the request body sent to the model endpoint
type Inputs struct {
	Image string `json:"image"`
	Text  string `json:"text"`
}

type request struct {
	Inputs Inputs `json:"inputs"`
}

// NewClient creates a client for modelURL authenticating with token
func NewClient(modelURL, token string) (*Client, error) {
	if modelURL == "" {
		modelURL = DefaultURL
	}
	if !strings.HasPrefix(modelURL, "http://") && !strings.HasPrefix(modelURL, "https://") {
		return nil, fmt.Errorf("invalid URL: %s", modelURL)
	}
	return &Client{
		url:       modelURL,
		token:     token,
		textField: response.DefaultTextField,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// SetTextField changes which response field carries the generated text
func (c *Client) SetTextField(field string) {
	if field != "" {
		c.textField = field
	}
}

// Infer posts the image and prompt and decodes whatever shape comes back.
// Non-2xx responses become error payloads that keep the status code.
func (c *Client) Infer(ctx context.Context, image []byte, prompt string) (types.Payload, error) {
	body, err := json.Marshal(request{Inputs: Inputs{
		Image: base64.StdEncoding.EncodeToString(image),
		Text:  prompt,
	}})
	if err != nil {
		return types.Payload{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.Payload{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.Payload{}, &types.UpstreamError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Payload{}, &types.UpstreamError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	payload := response.DecodeWithField(respBody, c.textField)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if payload.Kind == types.PayloadError {
			payload.Status = resp.StatusCode
			return payload, nil
		}
		return response.Errorf(resp.StatusCode, "%s: %s", resp.Status, strings.TrimSpace(string(respBody))), nil
	}
	return payload, nil
}
