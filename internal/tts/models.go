package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Model describes one entry of the models listing
type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	Description                string   `json:"description,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// Supports reports whether the model lists method among its generation methods
func (m Model) Supports(method string) bool {
	for _, s := range m.SupportedGenerationMethods {
		if s == method {
			return true
		}
	}
	return false
}

type listModelsResponse struct {
	Models        []Model `json:"models"`
	NextPageToken string  `json:"nextPageToken"`
}

// ListModels returns every model visible to the API key, following pagination
func (c *GeminiClient) ListModels(ctx context.Context) ([]Model, error) {
	var models []Model
	pageToken := ""

	for {
		page, err := c.listModelsPage(ctx, pageToken, 0)
		if err != nil {
			return nil, err
		}
		models = append(models, page.Models...)

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Debug().Int("count", len(models)).Msg("Listed models")
	return models, nil
}

// ListGenerativeModels returns the models that support generateContent
func (c *GeminiClient) ListGenerativeModels(ctx context.Context) ([]Model, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	generative := make([]Model, 0, len(models))
	for _, m := range models {
		if m.Supports("generateContent") {
			generative = append(generative, m)
		}
	}
	return generative, nil
}

// HealthCheck fetches a single model page to verify the key and endpoint
func (c *GeminiClient) HealthCheck(ctx context.Context) (bool, error) {
	if _, err := c.listModelsPage(ctx, "", 1); err != nil {
		return false, err
	}
	return true, nil
}

func (c *GeminiClient) listModelsPage(ctx context.Context, pageToken string, pageSize int) (*listModelsResponse, error) {
	query := url.Values{}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	if pageSize > 0 {
		query.Set("pageSize", fmt.Sprint(pageSize))
	}

	endpoint := c.baseURL + "/models"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var page listModelsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to unmarshal models response: %w", err)
	}
	return &page, nil
}
