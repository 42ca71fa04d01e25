package cmd

import (
	"fmt"
	"strings"

	"github.com/gauravmishra2744/Awaaj/internal/aiclient"
	"github.com/gauravmishra2744/Awaaj/internal/config"
	"github.com/gauravmishra2744/Awaaj/internal/enrich"
	"github.com/gauravmishra2744/Awaaj/internal/issues"
	"github.com/gauravmishra2744/Awaaj/internal/llm"
)

// newClassifier builds the configured AI provider. The health checker is nil
// for providers without a health endpoint; the classifier is nil when AI is off.
func newClassifier(cfg *config.Config) (enrich.Classifier, issues.HealthChecker, error) {
	switch strings.ToLower(cfg.AI.Provider) {
	case config.ProviderService:
		c := aiclient.New(cfg.AI)
		return c, c, nil
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, nil, fmt.Errorf("ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
		}
		return llm.NewClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model), nil, nil
	default:
		return nil, nil, nil
	}
}
