package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/gauravmishra2744/Awaaj/internal/aiclient"
	"github.com/gauravmishra2744/Awaaj/internal/enrich"
	"github.com/gauravmishra2744/Awaaj/internal/jsonextract"
	"github.com/gauravmishra2744/Awaaj/internal/models"
)

// ErrEmbeddingsUnsupported is returned by Embed; the Messages API has no embedding endpoint.
var ErrEmbeddingsUnsupported = fmt.Errorf("embeddings are not supported by the anthropic provider: %w", enrich.ErrUnsupported)

// Client wraps the Anthropic API for issue classification and prioritization.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildClassifyPrompt constructs the system and user prompts for categorization.
func buildClassifyPrompt(text string) (system string, user string) {
	system = `You categorize civic complaints filed by citizens with their municipality. Return ONLY a JSON object with these fields:
- "category": exactly one of ` + quoteList(models.Categories) + `
- "confidence": a number between 0 and 1
- "scores": an object mapping every category to a number between 0 and 1

Rules:
- Pick "` + models.CategoryOther + `" when no category clearly fits
- Return valid JSON only, no markdown fencing or explanation`

	user = "Categorize this complaint:\n\n" + text
	return
}

// buildPriorityPrompt constructs the system and user prompts for priority assessment.
func buildPriorityPrompt(req models.PriorityRequest) (system string, user string) {
	system = `You triage civic complaints for a municipal operations team. Return ONLY a JSON object with these fields:
- "priority_score": an integer from 0 to 100
- "priority_level": one of "High", "Medium", "Low" ("High" when score >= 70, "Medium" when score >= 40)
- "factors": an object with numbers from 0 to 100 for "category_risk", "location_density", "citizen_upvotes", "age_in_days", "safety_rating"
- "reasoning": one or two sentences explaining the score

Rules:
- Hazards to life or health (exposed wiring, open manholes, contaminated water) score highest
- More upvotes and comments mean more citizens are affected
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Title: ")
	sb.WriteString(req.Title)
	sb.WriteString("\n")
	if req.Description != "" {
		sb.WriteString("Description: ")
		sb.WriteString(req.Description)
		sb.WriteString("\n")
	}
	if req.Category != "" {
		sb.WriteString("Category: ")
		sb.WriteString(req.Category)
		sb.WriteString("\n")
	}
	if req.Location != "" {
		sb.WriteString("Location: ")
		sb.WriteString(req.Location)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Upvotes: %d\nComments: %d\n", req.Upvotes, req.CommentCount)
	user = sb.String()
	return
}

// Classify asks the model to categorize text.
func (c *Client) Classify(ctx context.Context, text string) (*models.Classification, error) {
	systemPrompt, userPrompt := buildClassifyPrompt(text)
	reply, err := c.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return parseClassification(reply)
}

// Prioritize asks the model for a priority assessment.
func (c *Client) Prioritize(ctx context.Context, req models.PriorityRequest) (*models.PriorityAssessment, error) {
	systemPrompt, userPrompt := buildPriorityPrompt(req)
	reply, err := c.complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("prioritize: %w", err)
	}
	return parsePriority(reply)
}

// Embed is not available through the Messages API.
func (c *Client) Embed(ctx context.Context, text string) (*models.Embedding, error) {
	return nil, ErrEmbeddingsUnsupported
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

func parseClassification(reply string) (*models.Classification, error) {
	var out struct {
		Category   string             `json:"category"`
		Confidence *float64           `json:"confidence"`
		Scores     map[string]float64 `json:"scores"`
	}
	if err := jsonextract.Decode(reply, &out); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}
	category := matchCategory(out.Category)
	if category == "" {
		return nil, fmt.Errorf("parse classification: unknown category %q", out.Category)
	}
	if out.Confidence == nil || *out.Confidence < 0 || *out.Confidence > 1 {
		return nil, fmt.Errorf("parse classification: missing or out-of-range confidence")
	}
	return &models.Classification{
		Category:   category,
		Confidence: *out.Confidence,
		Scores:     out.Scores,
	}, nil
}

func parsePriority(reply string) (*models.PriorityAssessment, error) {
	var out struct {
		Score     *float64           `json:"priority_score"`
		Level     string             `json:"priority_level"`
		Factors   map[string]float64 `json:"factors"`
		Reasoning string             `json:"reasoning"`
	}
	if err := jsonextract.Decode(reply, &out); err != nil {
		return nil, fmt.Errorf("parse priority: %w", err)
	}
	if out.Score == nil || *out.Score < 0 || *out.Score > 100 {
		return nil, fmt.Errorf("parse priority: missing or out-of-range priority_score")
	}
	level, err := models.ParsePriorityLevel(out.Level)
	if err != nil {
		level = models.LevelForScore(*out.Score)
	}
	a := &models.PriorityAssessment{
		Score:     int(*out.Score + 0.5),
		Level:     level,
		Reasoning: out.Reasoning,
		SLAHours:  models.SLAHoursForLevel(level),
	}
	if len(out.Factors) > 0 {
		a.Factors = aiclient.FactorsFromMap(out.Factors)
	}
	return a, nil
}

// matchCategory maps a model answer onto a known category, case-insensitively.
func matchCategory(s string) string {
	s = strings.TrimSpace(s)
	for _, c := range models.Categories {
		if strings.EqualFold(c, s) {
			return c
		}
	}
	if strings.EqualFold(s, "others") {
		return models.CategoryOther
	}
	return ""
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = `"` + it + `"`
	}
	return strings.Join(quoted, ", ")
}
