package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fincaops/incident-service/internal/config"
)

// httpClassifier calls an external text-classification endpoint. Any backend
// honoring the request/response contract is substitutable.
type httpClassifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type classifyRequest struct {
	Text         string `json:"text"`
	PriorContext string `json:"prior_context,omitempty"`
}

// NewHTTPClassifier creates a classifier backed by a remote endpoint.
func NewHTTPClassifier(cfg config.ClassifierConfig) Classifier {
	return &httpClassifier{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout()},
	}
}

func (c *httpClassifier) Classify(ctx context.Context, text, priorContext string) (*Classification, error) {
	body, err := json.Marshal(classifyRequest{Text: text, PriorContext: priorContext})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, string(payload))
	}

	var result Classification
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("classifier response: %w", err)
	}
	if result.Category == "" {
		result.Category = "OTHER"
	}
	if result.Urgency == "" {
		result.Urgency = "MEDIUM"
	}
	return &result, nil
}
