package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/songhatch/api/internal/config"
)

// MusicGenerator defines the interface for the music generation provider
type MusicGenerator interface {
	GenerateMusic(ctx context.Context, req *GenerateMusicRequest) (*GenerateMusicResponse, error)
	GetConversionDetails(ctx context.Context, conversionID string) (*ConversionDetails, error)
	IsConfigured() bool
}

// SunoClient implements MusicGenerator for the Suno-style API
type SunoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// GenerateMusicRequest represents the request for music generation
type GenerateMusicRequest struct {
	Prompt           string `json:"prompt"`
	Style            string `json:"style,omitempty"`
	Title            string `json:"title,omitempty"`
	MakeInstrumental bool   `json:"make_instrumental,omitempty"`
	CallbackURL      string `json:"callback_url,omitempty"`
}

// GenerateMusicResponse represents the response from music generation.
// ConversionIDs lists the output variants the provider will deliver via
// webhook; older provider plans omit it.
type GenerateMusicResponse struct {
	TaskID        string   `json:"task_id"`
	Status        string   `json:"status"`
	ConversionIDs []string `json:"conversion_ids,omitempty"`
}

// ConversionDetails is the enrichment metadata for one conversion. Any
// field may be absent; the payload is best-effort.
type ConversionDetails struct {
	Success    bool       `json:"success"`
	Conversion Conversion `json:"conversion"`
}

// Conversion carries the provider's detail record for one output variant
type Conversion struct {
	ID                  string  `json:"id,omitempty"`
	Status              string  `json:"status,omitempty"`
	Duration            float64 `json:"duration,omitempty"`
	Lyrics              string  `json:"lyrics,omitempty"`
	LyricsTimestamped   any     `json:"lyrics_timestamped,omitempty"`
	AlbumCoverPath      string  `json:"album_cover_path,omitempty"`
	AlbumCoverThumbnail string  `json:"album_cover_thumbnail,omitempty"`
	CreatedAt           string  `json:"createdAt,omitempty"`
	UpdatedAt           string  `json:"updatedAt,omitempty"`
}

// NewSunoClient creates a new Suno API client
func NewSunoClient(cfg *config.SunoConfig) *SunoClient {
	return &SunoClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// GenerateMusic initiates music generation
func (c *SunoClient) GenerateMusic(ctx context.Context, req *GenerateMusicRequest) (*GenerateMusicResponse, error) {
	var result GenerateMusicResponse
	if err := c.post(ctx, "/v1/music/generate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetConversionDetails retrieves detail metadata for one conversion
func (c *SunoClient) GetConversionDetails(ctx context.Context, conversionID string) (*ConversionDetails, error) {
	endpoint := fmt.Sprintf("/v1/music/conversion/%s", conversionID)
	var result ConversionDetails
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends a POST request with JSON body
func (c *SunoClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request and parses JSON response
func (c *SunoClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// doRequest executes an HTTP request and parses the response
func (c *SunoClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[Suno API] → %s %s", req.Method, req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Suno API] ✗ %s %s — request failed: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("[Suno API] ✗ %s %s — failed to read response: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[Suno API] ← %d %s %s", resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("suno API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		log.Printf("[Suno API] ✗ unmarshal error for %s %s: %v", req.Method, req.URL.String(), err)
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *SunoClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}
