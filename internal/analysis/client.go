package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ewastehub/appraisal-relay/internal/models"
	"github.com/ewastehub/appraisal-relay/pkg/infra"
	"github.com/ewastehub/appraisal-relay/pkg/metrics"
)

// ErrNoRecord means the analysis service could not produce a usable result.
// The caller surfaces this to the operator; it never reaches the coordinator.
var ErrNoRecord = errors.New("analysis produced no record")

const appraisalPrompt = `You are an electronics scrap appraiser. Identify the component in the image.
Respond with a single JSON object with exactly these keys:
"model" (component name/model), "category" (component type), "condition" (physical condition),
"gold_mg" (estimated recoverable gold in milligrams, number), "value_usd" (estimated scrap value in USD, number).
If an attribute cannot be determined, use "unspecified" for text and 0 for numbers.`

// Client calls an OpenAI-compatible multimodal chat endpoint with the
// component photo inlined as a base64 image. Models from the fallback list
// are tried in order with a short jittered backoff between attempts.
type Client struct {
	apiKey  string
	baseURL string
	models  []string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(apiKey, baseURL string, modelList []string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		models:  modelList,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// Appraise sends the image to the analysis service and returns the raw result
// for normalization. Any service failure, across the whole fallback list,
// collapses into ErrNoRecord.
func (c *Client) Appraise(ctx context.Context, image []byte, mimeType string) (models.RawAnalysis, error) {
	if len(image) == 0 {
		return models.RawAnalysis{}, fmt.Errorf("%w: empty image", ErrNoRecord)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	backoff := infra.NewBackoff(500*time.Millisecond, 5*time.Second, 2.0)

	var lastErr error
	for _, model := range c.models {
		content, err := c.complete(ctx, model, imageURL)
		if err == nil {
			if mapping, ok := Repair(content); ok {
				return models.RawMapping(mapping), nil
			}
			// Not JSON; hand the text to the normalizer as delimited output
			return models.RawText(content), nil
		}

		lastErr = err
		c.logger.Warn("Analysis attempt failed, trying next model", "model", model, "error", err)

		select {
		case <-ctx.Done():
			return models.RawAnalysis{}, fmt.Errorf("%w: %v", ErrNoRecord, ctx.Err())
		case <-time.After(backoff.Next()):
		}
	}

	return models.RawAnalysis{}, fmt.Errorf("%w: %v", ErrNoRecord, lastErr)
}

func (c *Client) complete(ctx context.Context, model, imageURL string) (string, error) {
	start := time.Now()

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: appraisalPrompt},
					{Type: "image_url", ImageURL: &imagePayload{URL: imageURL}},
				},
			},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.AnalysisRequests.WithLabelValues("error", model).Inc()
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.AnalysisDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		metrics.AnalysisRequests.WithLabelValues("error", model).Inc()
		return "", fmt.Errorf("analysis service status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.AnalysisRequests.WithLabelValues("error", model).Inc()
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		metrics.AnalysisRequests.WithLabelValues("empty", model).Inc()
		return "", fmt.Errorf("analysis service returned empty content")
	}

	metrics.AnalysisRequests.WithLabelValues("ok", model).Inc()
	return parsed.Choices[0].Message.Content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Chat completion wire types
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imagePayload `json:"image_url,omitempty"`
}

type imagePayload struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
