package sowgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultResponsesURL = "https://api.openai.com/v1/responses"

// OpenAI calls the OpenAI responses endpoint with a plain HTTP client.
type OpenAI struct {
	ResponsesURL string
	Model        string
	Credential   string
	HTTPClient   *http.Client
}

// NewOpenAI builds the live generator. The credential must be non-empty;
// callers select the fallback before reaching this point otherwise.
func NewOpenAI(endpoint, model, credential string) *OpenAI {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultResponsesURL
	}
	return &OpenAI{
		ResponsesURL: endpoint,
		Model:        model,
		Credential:   credential,
		HTTPClient:   http.DefaultClient,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Generate(ctx context.Context, brief Brief) (string, error) {
	credential := strings.TrimSpace(o.Credential)
	model := strings.TrimSpace(o.Model)
	if credential == "" {
		return "", fmt.Errorf("credential is required")
	}
	if model == "" {
		return "", fmt.Errorf("model is required")
	}

	requestBody, err := json.Marshal(map[string]any{
		"model": model,
		"input": Prompt(brief),
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.ResponsesURL, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Credential material is sent only as an Authorization header and is
	// never echoed in errors or response payloads.
	req.Header.Set("Authorization", "Bearer "+credential)

	res, err := o.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
		if err != nil {
			return "", fmt.Errorf("read generate error body: %w", err)
		}
		return "", fmt.Errorf("generate request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	outputText := strings.TrimSpace(payload.OutputText)
	if outputText == "" {
		for _, item := range payload.Output {
			for _, content := range item.Content {
				if strings.TrimSpace(content.Text) != "" {
					outputText = strings.TrimSpace(content.Text)
					break
				}
			}
			if outputText != "" {
				break
			}
		}
	}
	if outputText == "" {
		return "", fmt.Errorf("generate response missing output text")
	}
	return outputText, nil
}

// Select picks the live generator when a credential is present and the
// configured provider names it, and the deterministic fallback otherwise.
func Select(provider, endpoint, model, credential string) Generator {
	if strings.TrimSpace(credential) != "" && strings.TrimSpace(provider) == "openai" {
		return NewOpenAI(endpoint, model, credential)
	}
	return Static{}
}
