package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiCompleter calls the Gemini API through the Google Gen AI SDK. A
// client is built per request because the credential belongs to the caller.
type GeminiCompleter struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeminiCompleter returns a Completer for the Gemini API. baseURL may be
// empty to use the SDK default endpoint.
func NewGeminiCompleter(baseURL string, httpClient *http.Client) *GeminiCompleter {
	return &GeminiCompleter{baseURL: baseURL, httpClient: httpClient}
}

func (g *GeminiCompleter) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:     req.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	temperature := req.Temperature
	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Content), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Temperature:       &temperature,
	})
	if err != nil {
		return "", wrapAPIError(err)
	}
	return responseText(resp), nil
}

func wrapAPIError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrCredentialRejected, err)
	}
	return err
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
