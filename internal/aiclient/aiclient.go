// Package aiclient talks to the external Awaaz AI service over HTTP.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gauravmishra2744/Awaaj/internal/config"
	"github.com/gauravmishra2744/Awaaj/internal/jsonextract"
	"github.com/gauravmishra2744/Awaaj/internal/models"
)

// ErrMalformed is returned when the service answers with an unusable payload.
var ErrMalformed = errors.New("malformed AI service response")

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client calls the classify, embed, prioritize, and health endpoints.
type Client struct {
	baseURL   string
	apiKey    string
	threshold float64
	client    *http.Client
	limiter   *rate.Limiter
}

// New creates a Client from the AI section of the configuration.
func New(cfg config.AIConfig) *Client {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		threshold: cfg.Threshold,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
	}
}

type classifyRequest struct {
	Text      string  `json:"text"`
	Threshold float64 `json:"threshold"`
}

// classifyResponse accepts both the backend's and the AI service's field names.
type classifyResponse struct {
	Category        string             `json:"category"`
	PrimaryCategory string             `json:"primary_category"`
	Confidence      *float64           `json:"confidence"`
	Scores          map[string]float64 `json:"scores"`
}

// Classify predicts the civic category of text.
func (c *Client) Classify(ctx context.Context, text string) (*models.Classification, error) {
	var resp classifyResponse
	if err := c.post(ctx, "/classify", classifyRequest{Text: text, Threshold: c.threshold}, &resp); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	category := resp.Category
	if category == "" {
		category = resp.PrimaryCategory
	}
	if category == "" {
		return nil, fmt.Errorf("classify: %w: missing category", ErrMalformed)
	}
	if resp.Confidence == nil {
		return nil, fmt.Errorf("classify: %w: missing confidence", ErrMalformed)
	}
	if *resp.Confidence < 0 || *resp.Confidence > 1 {
		return nil, fmt.Errorf("classify: %w: confidence %v outside [0,1]", ErrMalformed, *resp.Confidence)
	}

	return &models.Classification{
		Category:   category,
		Confidence: *resp.Confidence,
		Scores:     resp.Scores,
	}, nil
}

type embedRequest struct {
	Text  string   `json:"text"`
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embedding  []float64   `json:"embedding"`
	Embeddings [][]float64 `json:"embeddings"`
	ModelInfo  struct {
		Model string `json:"model"`
	} `json:"model_info"`
}

// Embed returns the semantic embedding of text.
func (c *Client) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	var resp embedResponse
	if err := c.post(ctx, "/embed", embedRequest{Text: text, Texts: []string{text}}, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	vector := resp.Embedding
	if len(vector) == 0 && len(resp.Embeddings) > 0 {
		vector = resp.Embeddings[0]
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embed: %w: empty vector", ErrMalformed)
	}
	return &models.Embedding{Vector: vector, Model: resp.ModelInfo.Model}, nil
}

type priorityResponse struct {
	PriorityScore *float64           `json:"priority_score"`
	PriorityLevel string             `json:"priority_level"`
	Factors       map[string]float64 `json:"factors"`
	Reasoning     string             `json:"reasoning"`
	SLAHours      float64            `json:"sla_hours"`
}

// Prioritize asks the service for a priority assessment.
func (c *Client) Prioritize(ctx context.Context, req models.PriorityRequest) (*models.PriorityAssessment, error) {
	var resp priorityResponse
	if err := c.post(ctx, "/prioritize", req, &resp); err != nil {
		return nil, fmt.Errorf("prioritize: %w", err)
	}
	if resp.PriorityScore == nil {
		return nil, fmt.Errorf("prioritize: %w: missing priority_score", ErrMalformed)
	}
	score := *resp.PriorityScore
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("prioritize: %w: score %v outside [0,100]", ErrMalformed, score)
	}

	level, err := models.ParsePriorityLevel(resp.PriorityLevel)
	if err != nil {
		level = models.LevelForScore(score)
	}

	out := &models.PriorityAssessment{
		Score:     int(score + 0.5),
		Level:     level,
		Reasoning: resp.Reasoning,
	}
	if resp.SLAHours > 0 {
		out.SLAHours = int(resp.SLAHours + 0.5)
	}
	if len(resp.Factors) > 0 {
		out.Factors = FactorsFromMap(resp.Factors)
	}
	return out, nil
}

// Healthy reports whether the service answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return false
	}
	return body.Status == "healthy"
}

// FactorsFromMap converts a factor map using either the camelCase or the
// snake_case names the AI service emits.
func FactorsFromMap(m map[string]float64) *models.PriorityFactors {
	pick := func(keys ...string) float64 {
		for _, k := range keys {
			if v, ok := m[k]; ok {
				return v
			}
		}
		return 0
	}
	return &models.PriorityFactors{
		CategoryRisk:    pick("categoryRisk", "category_risk"),
		LocationDensity: pick("locationDensity", "location_density"),
		CitizenUpvotes:  pick("citizenUpvotes", "citizen_upvotes", "citizen_engagement"),
		AgeInDays:       pick("ageInDays", "age_in_days", "age_factor"),
		SafetyRating:    pick("safetyRating", "safety_rating"),
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// post sends body as JSON and decodes the first JSON object of the reply into out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("AI service request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("AI service returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if err := jsonextract.Decode(string(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
