package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// VisionAnswer is the answer from a vision-language query about an image.
type VisionAnswer struct {
	Answer    string
	RequestID string
}

// VisionClient answers a natural-language question about an image on disk.
type VisionClient interface {
	Query(ctx context.Context, imagePath, question string) (VisionAnswer, error)
}

// VisionConfig holds client configuration for the vision-language API.
type VisionConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// moondreamClient implements VisionClient against the Moondream cloud API.
// The image is inlined as a base64 data URL; no file ever leaves disk except
// through the request body.
type moondreamClient struct {
	apiKey     string `json:"-"` // Never serialize API keys
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewVisionClient creates a vision-language client.
func NewVisionClient(cfg VisionConfig) (VisionClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision API key required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.moondream.ai"
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	return &moondreamClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries: defaultMaxRetries,
	}, nil
}

// moondreamRequest represents the request format for the query endpoint.
type moondreamRequest struct {
	ImageURL string `json:"image_url"`
	Question string `json:"question"`
	Stream   bool   `json:"stream"`
}

// moondreamResponse represents the response from the query endpoint.
type moondreamResponse struct {
	Answer    string `json:"answer"`
	RequestID string `json:"request_id"`
}

// Query asks a question about the image at imagePath.
func (m *moondreamClient) Query(ctx context.Context, imagePath, question string) (VisionAnswer, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return VisionAnswer{}, fmt.Errorf("rate limiter error: %w", err)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return VisionAnswer{}, fmt.Errorf("failed to read image %s: %w", imagePath, err)
	}

	req := moondreamRequest{
		ImageURL: dataURL(imagePath, data),
		Question: question,
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return VisionAnswer{}, ctx.Err()
			}
		}

		answer, err := m.doRequest(ctx, req)
		if err == nil {
			return answer, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return VisionAnswer{}, err
		}
	}

	return VisionAnswer{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs the actual HTTP request to the vision API.
func (m *moondreamClient) doRequest(ctx context.Context, req moondreamRequest) (VisionAnswer, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return VisionAnswer{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/v1/query", bytes.NewBuffer(jsonData))
	if err != nil {
		return VisionAnswer{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Moondream-Auth", m.apiKey)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return VisionAnswer{}, &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return VisionAnswer{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return VisionAnswer{}, &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return VisionAnswer{}, &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return VisionAnswer{}, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var mdResp moondreamResponse
	if err := json.Unmarshal(body, &mdResp); err != nil {
		return VisionAnswer{}, fmt.Errorf("failed to parse response: %w", err)
	}

	if mdResp.Answer == "" {
		return VisionAnswer{}, fmt.Errorf("empty answer from API")
	}

	return VisionAnswer{Answer: mdResp.Answer, RequestID: mdResp.RequestID}, nil
}

// dataURL encodes image bytes as a base64 data URL with a content type guessed
// from the file extension.
func dataURL(path string, data []byte) string {
	contentType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Ensure interfaces are implemented at compile time.
var _ VisionClient = (*moondreamClient)(nil)
