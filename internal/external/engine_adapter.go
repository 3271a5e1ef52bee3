package external

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/jobscout/internal/engine"
)

// queryAnalysisPrompt instructs the model to answer with nothing but the
// JSON object EngineModelAdapter expects back.
const queryAnalysisPrompt = `Analyze this job search query. Respond with ONLY a JSON object of this exact shape, no surrounding prose:
{"keywords": ["..."], "job_type": "...", "experience_level": "...", "industry": "..."}`

// EngineModelAdapter narrows a ModelClient down to engine.ModelClient's
// TextAnalyze(ctx, text, prompt) (engine.QueryAnalysis, error) contract,
// parsing the backend's free-text response as the JSON object
// queryAnalysisPrompt asks for. A response that doesn't parse is treated as
// a failed analysis (engine.Engine falls back to its own keyword split),
// not a fatal error.
type EngineModelAdapter struct {
	client ModelClient
}

// NewEngineModelAdapter wraps client for use as an engine.ModelClient.
func NewEngineModelAdapter(client ModelClient) *EngineModelAdapter {
	return &EngineModelAdapter{client: client}
}

func (a *EngineModelAdapter) TextAnalyze(ctx context.Context, text string, prompt string) (engine.QueryAnalysis, error) {
	if prompt == "" {
		prompt = queryAnalysisPrompt
	}
	resp, err := a.client.TextAnalyze(ctx, text, prompt)
	if err != nil {
		return engine.QueryAnalysis{}, err
	}

	var parsed struct {
		Keywords        []string `json:"keywords"`
		JobType         string   `json:"job_type"`
		ExperienceLevel string   `json:"experience_level"`
		Industry        string   `json:"industry"`
	}
	if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
		return engine.QueryAnalysis{}, fmt.Errorf("parsing model query analysis: %w", err)
	}

	return engine.QueryAnalysis{
		Keywords:        parsed.Keywords,
		JobType:         parsed.JobType,
		ExperienceLevel: parsed.ExperienceLevel,
		Industry:        parsed.Industry,
	}, nil
}

var _ engine.ModelClient = (*EngineModelAdapter)(nil)
